package policy

import "testing"

func TestAllowedTable(t *testing.T) {
	cases := []struct {
		role Role
		op   Operation
		want bool
	}{
		{RoleDoctor, OpViewPatient, true},
		{RoleDoctor, OpListRecords, true},
		{RoleDoctor, OpDownloadRecord, true},
		{RoleDoctor, OpUploadRecord, true},
		{RoleDoctor, OpEnrollFace, true},
		{RoleDoctor, OpRecognizeFace, true},
		{RoleNurse, OpViewPatient, true},
		{RoleNurse, OpListRecords, false},
		{RoleNurse, OpDownloadRecord, false},
		{RoleNurse, OpUploadRecord, true},
		{RoleNurse, OpEnrollFace, true},
		{RoleNurse, OpRecognizeFace, true},
	}

	for _, c := range cases {
		if got := Allowed(c.role, c.op); got != c.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", c.role, c.op, got, c.want)
		}
	}
}

func TestAllowedUnknownRoleDenied(t *testing.T) {
	if Allowed(Role("admin"), OpListRecords) {
		t.Error("unknown role should be denied")
	}
	if Allowed(RoleDoctor, Operation("delete-everything")) {
		t.Error("unknown operation should be denied")
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"doctor", "Doctor", " DOCTOR "} {
		role, err := ParseRole(s)
		if err != nil || role != RoleDoctor {
			t.Errorf("ParseRole(%q) = %v, %v; want doctor", s, role, err)
		}
	}

	role, err := ParseRole("nurse")
	if err != nil || role != RoleNurse {
		t.Errorf("ParseRole(nurse) = %v, %v", role, err)
	}

	for _, s := range []string{"", "admin", "patient"} {
		if _, err := ParseRole(s); err == nil {
			t.Errorf("ParseRole(%q) should fail", s)
		}
	}
}

// Package policy decides which roles may perform which operations.
// The table lives in an embedded YAML file so the rules stay in one place.
package policy

import (
	_ "embed"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Role identifies a caller role. Roles are supplied per request and never
// persisted; the service trusts the declared role (see DESIGN.md).
type Role string

const (
	RoleDoctor Role = "doctor"
	RoleNurse  Role = "nurse"
)

// Operation names an action gated by the access table.
type Operation string

const (
	OpViewPatient    Operation = "view-patient"
	OpListRecords    Operation = "list-records"
	OpDownloadRecord Operation = "download-record"
	OpUploadRecord   Operation = "upload-record"
	OpEnrollFace     Operation = "enroll-face"
	OpRecognizeFace  Operation = "recognize-face"
)

// ErrInvalidRole is returned by ParseRole for anything but doctor/nurse.
var ErrInvalidRole = errors.New("invalid role")

type policyFile struct {
	Roles map[string]map[string]bool `yaml:"roles"`
}

var table map[Role]map[Operation]bool

func init() {
	var pf policyFile
	// Embedded file; a parse failure is a build defect, not a runtime condition.
	if err := yaml.Unmarshal(policyYAML, &pf); err != nil {
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	table = make(map[Role]map[Operation]bool, len(pf.Roles))
	for role, ops := range pf.Roles {
		m := make(map[Operation]bool, len(ops))
		for op, allowed := range ops {
			m[Operation(op)] = allowed
		}
		table[Role(role)] = m
	}
}

// ParseRole validates a caller-supplied role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleNurse:
		return RoleNurse, nil
	default:
		return "", ErrInvalidRole
	}
}

// Allowed reports whether role may perform op. Unknown roles and unknown
// operations are denied.
func Allowed(role Role, op Operation) bool {
	ops, ok := table[role]
	if !ok {
		return false
	}
	return ops[op]
}

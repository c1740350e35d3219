package handlers

import (
	"net/http"
	"testing"

	"github.com/facemed/face-med/internal/embedding"
)

func TestRecognizeMatch(t *testing.T) {
	e := newTestEnv(t)
	img := e.registerFace("alice", 0)
	id := e.enrollPatient(t, "Alice", img)

	body, ct := multipartBody(t, nil, map[string][]byte{"face": img})
	rec := e.do(t, http.MethodPost, "/recognize", body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON(t, rec)
	if resp["match"] != true {
		t.Errorf("expected match true: %v", resp)
	}
	if resp["patient_id"] != id || resp["face_id"] != id {
		t.Errorf("unexpected ids: %v", resp)
	}
	if resp["name"] != "Alice" || resp["blood_group"] != "O+" {
		t.Errorf("expected full patient record in response: %v", resp)
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	e := newTestEnv(t)
	e.enrollPatient(t, "Alice", e.registerFace("alice", 0))

	probe := e.registerFace("stranger", 7)
	body, ct := multipartBody(t, nil, map[string][]byte{"face": probe})
	rec := e.do(t, http.MethodPost, "/recognize", body, ct)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeJSON(t, rec)
	if resp["match"] != false || resp["reason"] != "no matching face found" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestRecognizeNoFace(t *testing.T) {
	e := newTestEnv(t)

	body, ct := multipartBody(t, nil, map[string][]byte{"face": []byte("blank wall")})
	rec := e.do(t, http.MethodPost, "/recognize", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeJSON(t, rec); resp["reason"] != "no face detected" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestRecognizeFaceAlwaysOK(t *testing.T) {
	e := newTestEnv(t)
	img := e.registerFace("alice", 0)
	id := e.enrollPatient(t, "Alice", img)

	// Match.
	body, ct := multipartBody(t, nil, map[string][]byte{"file": img})
	rec := e.do(t, http.MethodPost, "/recognize-face", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on match, got %d", rec.Code)
	}
	resp := decodeJSON(t, rec)
	if resp["match"] != true || resp["face_id"] != id {
		t.Errorf("unexpected match response: %v", resp)
	}

	// No face is still a 200 with match false.
	body, ct = multipartBody(t, nil, map[string][]byte{"file": []byte("blank wall")})
	rec = e.do(t, http.MethodPost, "/recognize-face", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on no face, got %d", rec.Code)
	}
	resp = decodeJSON(t, rec)
	if resp["match"] != false || resp["reason"] != "no face detected" {
		t.Errorf("unexpected no-face response: %v", resp)
	}
}

func TestRecognizeMultipleFaces(t *testing.T) {
	e := newTestEnv(t)
	e.extractor.DefaultErr = embedding.ErrMultipleFacesDetected

	body, ct := multipartBody(t, nil, map[string][]byte{"face": []byte("crowd")})
	rec := e.do(t, http.MethodPost, "/recognize", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeJSON(t, rec); resp["reason"] != "multiple faces detected" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestRegisterFaceReplacesEnrollment(t *testing.T) {
	e := newTestEnv(t)
	oldImg := e.registerFace("alice", 0)
	id := e.enrollPatient(t, "Alice", oldImg)

	newImg := e.registerFace("alice-v2", 3)
	body, ct := multipartBody(t,
		map[string]string{"patient_id": id},
		map[string][]byte{"file": newImg},
	)
	rec := e.do(t, http.MethodPost, "/register-face", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeJSON(t, rec); resp["face_id"] != id {
		t.Errorf("unexpected face_id: %v", resp)
	}

	// The new face matches, the old one does not.
	body, ct = multipartBody(t, nil, map[string][]byte{"face": newImg})
	if rec = e.do(t, http.MethodPost, "/recognize", body, ct); rec.Code != http.StatusOK {
		t.Errorf("new face: expected 200, got %d", rec.Code)
	}
	body, ct = multipartBody(t, nil, map[string][]byte{"face": oldImg})
	if rec = e.do(t, http.MethodPost, "/recognize", body, ct); rec.Code != http.StatusNotFound {
		t.Errorf("old face: expected 404, got %d", rec.Code)
	}
}

func TestRegisterFaceRequiresPatientID(t *testing.T) {
	e := newTestEnv(t)

	body, ct := multipartBody(t, nil, map[string][]byte{"file": []byte("img")})
	rec := e.do(t, http.MethodPost, "/register-face", body, ct)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRegisterFaceUnknownPatient(t *testing.T) {
	e := newTestEnv(t)
	img := e.registerFace("ghost", 0)

	body, ct := multipartBody(t,
		map[string]string{"patient_id": "no-such-id"},
		map[string][]byte{"file": img},
	)
	rec := e.do(t, http.MethodPost, "/register-face", body, ct)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

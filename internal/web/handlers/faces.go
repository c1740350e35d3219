package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/clinic"
)

// FacesHandler serves face enrollment and recognition.
type FacesHandler struct {
	service   *clinic.Service
	maxUpload int64
	logger    zerolog.Logger
}

func NewFacesHandler(service *clinic.Service, maxUpload int64, logger zerolog.Logger) *FacesHandler {
	return &FacesHandler{service: service, maxUpload: maxUpload, logger: logger}
}

// Register handles POST /register-face: it replaces the enrolled face of an
// existing patient.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	patientID := strings.TrimSpace(r.FormValue("patient_id"))
	if patientID == "" {
		respondError(w, http.StatusUnprocessableEntity, "patient_id is required")
		return
	}

	role, err := parseRole(r.FormValue("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	imageData, err := readUpload(r, h.maxUpload, "file", "face")
	if err != nil {
		respondServiceErrorOrBadUpload(w, err, "face image is required")
		return
	}

	if err := h.service.ReEnroll(r.Context(), role, patientID, imageData); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "face registered",
		"face_id": patientID,
	})
}

// recognitionFailure translates a recognition error into the reason string
// the browser client displays.
func recognitionFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, clinic.ErrNoFaceDetected):
		return "no face detected", true
	case errors.Is(err, clinic.ErrMultipleFacesDetected):
		return "multiple faces detected", true
	case errors.Is(err, clinic.ErrNoMatch):
		return "no matching face found", true
	}
	return "", false
}

// Recognize handles POST /recognize. On a match it returns the full patient
// record so the client can render it without a second request.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	role, err := parseRole(r.FormValue("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	imageData, err := readUpload(r, h.maxUpload, "face", "file")
	if err != nil {
		respondServiceErrorOrBadUpload(w, err, "face image is required")
		return
	}

	patient, err := h.service.Recognize(r.Context(), role, imageData)
	if err != nil {
		if reason, ok := recognitionFailure(err); ok {
			status := http.StatusNotFound
			if !errors.Is(err, clinic.ErrNoMatch) {
				status = http.StatusBadRequest
			}
			respondJSON(w, status, map[string]any{
				"match":  false,
				"reason": reason,
				"detail": reason,
			})
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"match":       true,
		"face_id":     patient.PatientID,
		"patient_id":  patient.PatientID,
		"name":        patient.Name,
		"age":         patient.Age,
		"blood_group": patient.BloodGroup,
	})
}

// RecognizeFace handles POST /recognize-face. Unlike /recognize, a probe
// that finds nobody is still a successful request.
func (h *FacesHandler) RecognizeFace(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	role, err := parseRole(r.FormValue("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	imageData, err := readUpload(r, h.maxUpload, "file", "face")
	if err != nil {
		respondServiceErrorOrBadUpload(w, err, "face image is required")
		return
	}

	patient, err := h.service.Recognize(r.Context(), role, imageData)
	if err != nil {
		if reason, ok := recognitionFailure(err); ok {
			respondJSON(w, http.StatusOK, map[string]any{
				"match":  false,
				"reason": reason,
			})
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"match":   true,
		"face_id": patient.PatientID,
	})
}

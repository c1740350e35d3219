package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/clinic"
)

// PatientsHandler serves patient registration and lookup.
type PatientsHandler struct {
	service   *clinic.Service
	maxUpload int64
	logger    zerolog.Logger
}

func NewPatientsHandler(service *clinic.Service, maxUpload int64, logger zerolog.Logger) *PatientsHandler {
	return &PatientsHandler{service: service, maxUpload: maxUpload, logger: logger}
}

// Register handles POST /register-patient. The multipart form carries name,
// age, blood_group and the captured face image.
func (h *PatientsHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	ageStr := strings.TrimSpace(r.FormValue("age"))
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "age must be an integer")
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

	patient, err := h.service.Enroll(r.Context(), role, clinic.EnrollRequest{
		Name:       r.FormValue("name"),
		Age:        age,
		BloodGroup: r.FormValue("blood_group"),
		ImageData:  imageData,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, patient)
}

// Get handles GET /patient/{id}.
func (h *PatientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	role, err := parseRole(r.URL.Query().Get("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	patient, err := h.service.GetPatient(r.Context(), role, patientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, patient)
}

// respondServiceErrorOrBadUpload distinguishes size-cap violations from a
// missing or unreadable file part.
func respondServiceErrorOrBadUpload(w http.ResponseWriter, err error, missingMsg string) {
	if errors.Is(err, http.ErrMissingFile) {
		respondError(w, http.StatusUnprocessableEntity, missingMsg)
		return
	}
	respondServiceError(w, err)
}

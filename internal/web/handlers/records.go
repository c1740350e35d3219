package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/clinic"
)

// RecordsHandler serves medical record listing, upload and download.
type RecordsHandler struct {
	service   *clinic.Service
	maxUpload int64
	logger    zerolog.Logger
}

func NewRecordsHandler(service *clinic.Service, maxUpload int64, logger zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{service: service, maxUpload: maxUpload, logger: logger}
}

// List handles GET /records/{patient_id}.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")

	role, err := parseRole(r.URL.Query().Get("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	files, err := h.service.ListRecords(r.Context(), role, patientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}

	// Both keys are populated; older clients read "files", newer ones
	// read "records".
	respondJSON(w, http.StatusOK, map[string]any{
		"patient_id": patientID,
		"files":      names,
		"records":    names,
	})
}

// Upload handles POST /upload-record/{patient_id}. The role form field
// decides whether the upload is attributed to a doctor or a nurse.
func (h *RecordsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	role, err := parseRole(r.FormValue("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	f, fh, err := formFile(r, "file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer f.Close()

	rec, err := h.service.UploadRecord(r.Context(), role, patientID, fh.Filename, io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("patient_id", sanitizeForLog(patientID)).
		Str("filename", sanitizeForLog(rec.Filename)).
		Msg("record uploaded")

	respondJSON(w, http.StatusOK, map[string]string{
		"message":  "file uploaded",
		"filename": rec.Filename,
	})
}

// DownloadUpload handles GET /data/uploads/{patient_id}/{filename}, the
// path the browser client builds directly from the records list.
func (h *RecordsHandler) DownloadUpload(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, chi.URLParam(r, "patient_id"), chi.URLParam(r, "filename"))
}

// Download handles GET /download/{filename}?patient_id=.
func (h *RecordsHandler) Download(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		respondError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	h.download(w, r, patientID, chi.URLParam(r, "filename"))
}

func (h *RecordsHandler) download(w http.ResponseWriter, r *http.Request, patientID, filename string) {
	role, err := parseRole(r.URL.Query().Get("role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	rc, size, err := h.service.OpenRecord(r.Context(), role, patientID, filename)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer rc.Close()

	safe := filepath.Base(filename)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", safe))
	io.Copy(w, rc)
}

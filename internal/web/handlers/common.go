package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/facemed/face-med/internal/clinic"
	"github.com/facemed/face-med/internal/policy"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response. The front-end reads the "detail" key.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}

// respondServiceError maps service errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrInvalidInput):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, clinic.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, clinic.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, clinic.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, clinic.ErrNoFaceDetected),
		errors.Is(err, clinic.ErrMultipleFacesDetected):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, clinic.ErrNoMatch):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, clinic.ErrPayloadTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, clinic.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "operation timed out")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseRole resolves the caller role from a form or query value. An absent
// value falls back to doctor, matching the browser client which only sends
// a role on record operations.
func parseRole(value string) (policy.Role, error) {
	if strings.TrimSpace(value) == "" {
		return policy.RoleDoctor, nil
	}
	role, err := policy.ParseRole(value)
	if err != nil {
		return "", clinic.ErrInvalidRole
	}
	return role, nil
}

// formFile finds the uploaded file under any of the given field names.
// The browser client uses "face" for camera captures and "file" elsewhere.
func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	var err error
	for _, name := range names {
		var f multipart.File
		var fh *multipart.FileHeader
		f, fh, err = r.FormFile(name)
		if err == nil {
			return f, fh, nil
		}
	}
	return nil, nil, err
}

// readUpload reads a multipart file field fully, bounded by maxSize.
func readUpload(r *http.Request, maxSize int64, names ...string) ([]byte, error) {
	f, _, err := formFile(r, names...)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, clinic.ErrPayloadTooLarge
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "backend running",
	})
}

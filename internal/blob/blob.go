// Package blob persists uploaded record files and face images on the local
// filesystem, addressed by patient id. Callers resolve filenames through the
// patient directory first; this package never treats request input as a path.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPayloadTooLarge means the upload exceeded the configured size cap.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidFilename means the filename was empty or not a plain name.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Store writes blobs under root: uploads/<patient_id>/<filename> for record
// files and faces/<patient_id>.jpg for enrollment images.
type Store struct {
	root    string
	maxSize int64
}

// NewStore creates the store and its directory layout under root.
func NewStore(root string, maxSize int64) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, "uploads"), filepath.Join(root, "faces")} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return &Store{root: root, maxSize: maxSize}, nil
}

// sanitizeFilename reduces a client-supplied filename to a safe base name.
func sanitizeFilename(name string) (string, error) {
	safe := filepath.Base(strings.TrimSpace(name))
	if safe == "" || safe == "." || safe == ".." || safe == string(filepath.Separator) {
		return "", ErrInvalidFilename
	}
	return safe, nil
}

// SaveRecord stores an uploaded record file and returns its storage path.
// The write stops with the context's error once the deadline passes.
func (s *Store) SaveRecord(ctx context.Context, patientID, filename string, r io.Reader) (string, error) {
	safe, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, "uploads", patientID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create patient directory: %w", err)
	}

	path := filepath.Join(dir, safe)
	if err := s.writeCapped(ctx, path, r); err != nil {
		return "", err
	}
	return path, nil
}

// OpenRecord opens a previously stored record file by its storage path.
func (s *Store) OpenRecord(storedPath string) (io.ReadCloser, int64, error) {
	f, err := os.Open(storedPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open record file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat record file: %w", err)
	}
	return f, stat.Size(), nil
}

// SaveFaceImage stores the enrollment image for a patient, replacing any
// previous one.
func (s *Store) SaveFaceImage(ctx context.Context, patientID string, imageData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, "faces", patientID+".jpg")
	if s.maxSize > 0 && int64(len(imageData)) > s.maxSize {
		return "", ErrPayloadTooLarge
	}
	if err := os.WriteFile(path, imageData, 0600); err != nil {
		return "", fmt.Errorf("failed to write face image: %w", err)
	}
	return path, nil
}

// RemovePatient deletes everything stored for a patient. Used by the
// enrollment rollback path; missing files are fine.
func (s *Store) RemovePatient(patientID string) error {
	var errs []error
	if err := os.Remove(filepath.Join(s.root, "faces", patientID+".jpg")); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(filepath.Join(s.root, "uploads", patientID)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ctxReader fails the next Read once its context is done, so a stalled
// or trickling upload cannot hold a write open past its deadline.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// writeCapped copies r to path, failing with ErrPayloadTooLarge if the
// content exceeds the cap. Partial files are removed on failure.
func (s *Store) writeCapped(ctx context.Context, path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	limit := s.maxSize
	if limit <= 0 {
		limit = 1 << 40
	}

	src := &ctxReader{ctx: ctx, r: io.LimitReader(r, limit+1)}
	n, err := io.Copy(out, src)
	closeErr := out.Close()
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if closeErr != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	if n > limit {
		os.Remove(path)
		return ErrPayloadTooLarge
	}
	return nil
}

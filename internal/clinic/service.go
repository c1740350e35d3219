// Package clinic implements the application core: face enrollment,
// face-based patient lookup and medical record management. Every operation
// checks the caller's role against the access policy before touching state.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/blob"
	"github.com/facemed/face-med/internal/embedding"
	"github.com/facemed/face-med/internal/faceindex"
	"github.com/facemed/face-med/internal/policy"
	"github.com/facemed/face-med/internal/store"
)

// Service wires the embedding extractor, the persistent store, the blob
// store and the in-memory face index together.
type Service struct {
	store     store.Store
	extractor embedding.Extractor
	blobs     *blob.Store
	index     *faceindex.Index
	logger    zerolog.Logger

	// writeTimeout bounds each blob write; zero means no deadline.
	writeTimeout time.Duration

	// enrollMu serializes new enrollments so the store insert and the
	// index insert cannot interleave between two requests.
	enrollMu sync.Mutex

	// patientMu guards per-patient mutations (re-enroll, upload).
	patientMu sync.Map // patient id -> *sync.Mutex
}

func New(st store.Store, extractor embedding.Extractor, blobs *blob.Store, index *faceindex.Index, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		blobs:     blobs,
		index:     index,
		logger:    logger,
	}
}

// WithWriteTimeout bounds blob writes so a stalled upload cannot hang the
// caller or hold a patient lock indefinitely.
func (s *Service) WithWriteTimeout(d time.Duration) *Service {
	s.writeTimeout = d
	return s
}

// writeContext derives the deadline-bounded context for a blob write.
func (s *Service) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.writeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.writeTimeout)
}

func (s *Service) lockPatient(patientID string) func() {
	v, _ := s.patientMu.LoadOrStore(patientID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) authorize(role policy.Role, op policy.Operation) error {
	if !policy.Allowed(role, op) {
		return fmt.Errorf("%w: role %q may not %s", ErrForbidden, role, op)
	}
	return nil
}

// extractFace runs the embedding extractor and maps its failures onto the
// service error taxonomy.
func (s *Service) extractFace(ctx context.Context, imageData []byte) ([]float32, error) {
	vec, err := s.extractor.ExtractSingleFace(ctx, imageData)
	switch {
	case err == nil:
		return vec, nil
	case errors.Is(err, embedding.ErrNoFaceDetected):
		return nil, ErrNoFaceDetected
	case errors.Is(err, embedding.ErrMultipleFacesDetected):
		return nil, ErrMultipleFacesDetected
	default:
		return nil, fmt.Errorf("failed to extract face embedding: %w", err)
	}
}

// EnrollRequest carries the fields of a new patient registration.
type EnrollRequest struct {
	Name       string
	Age        int
	BloodGroup string
	ImageData  []byte
}

func (r *EnrollRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if r.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrInvalidInput)
	}
	if strings.TrimSpace(r.BloodGroup) == "" {
		return fmt.Errorf("%w: blood group is required", ErrInvalidInput)
	}
	if len(r.ImageData) == 0 {
		return fmt.Errorf("%w: face image is required", ErrInvalidInput)
	}
	return nil
}

// Enroll registers a new patient: it extracts exactly one face from the
// image, stores the patient and the embedding in a single transaction and
// only then makes the face searchable. A failure after the store commit
// rolls the patient back so no unreachable record survives.
func (s *Service) Enroll(ctx context.Context, role policy.Role, req EnrollRequest) (*store.Patient, error) {
	if err := s.authorize(role, policy.OpEnrollFace); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	vec, err := s.extractFace(ctx, req.ImageData)
	if err != nil {
		return nil, err
	}

	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	patient := store.Patient{
		PatientID:  uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		Age:        req.Age,
		BloodGroup: strings.TrimSpace(req.BloodGroup),
	}
	emb := store.StoredEmbedding{
		PatientID: patient.PatientID,
		Embedding: vec,
		Dim:       len(vec),
	}

	if err := s.store.CreatePatientWithEmbedding(ctx, patient, emb); err != nil {
		return nil, fmt.Errorf("failed to store patient: %w", err)
	}

	writeCtx, cancel := s.writeContext(ctx)
	defer cancel()
	if _, err := s.blobs.SaveFaceImage(writeCtx, patient.PatientID, req.ImageData); err != nil {
		s.rollbackEnroll(ctx, patient.PatientID)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: storing face image", ErrTimeout)
		}
		return nil, fmt.Errorf("failed to store face image: %w", err)
	}

	s.index.Add(patient.PatientID, vec)

	s.logger.Info().
		Str("patient_id", patient.PatientID).
		Msg("enrolled new patient")
	return &patient, nil
}

func (s *Service) rollbackEnroll(ctx context.Context, patientID string) {
	if err := s.store.DeletePatient(ctx, patientID); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID).
			Msg("failed to roll back enrollment")
	}
	if err := s.blobs.RemovePatient(patientID); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID).
			Msg("failed to remove blobs during rollback")
	}
}

// ReEnroll replaces the stored face for an existing patient. The old
// embedding stops matching as soon as the new one is indexed.
func (s *Service) ReEnroll(ctx context.Context, role policy.Role, patientID string, imageData []byte) error {
	if err := s.authorize(role, policy.OpEnrollFace); err != nil {
		return err
	}
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if len(imageData) == 0 {
		return fmt.Errorf("%w: face image is required", ErrInvalidInput)
	}

	unlock := s.lockPatient(patientID)
	defer unlock()

	if _, err := s.store.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
		}
		return fmt.Errorf("failed to load patient: %w", err)
	}

	vec, err := s.extractFace(ctx, imageData)
	if err != nil {
		return err
	}

	emb := store.StoredEmbedding{
		PatientID: patientID,
		Embedding: vec,
		Dim:       len(vec),
	}
	if err := s.store.ReplaceEmbedding(ctx, patientID, emb); err != nil {
		return fmt.Errorf("failed to replace embedding: %w", err)
	}
	writeCtx, cancel := s.writeContext(ctx)
	defer cancel()
	if _, err := s.blobs.SaveFaceImage(writeCtx, patientID, imageData); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: storing face image", ErrTimeout)
		}
		return fmt.Errorf("failed to store face image: %w", err)
	}

	s.index.Add(patientID, vec)

	s.logger.Info().
		Str("patient_id", patientID).
		Msg("replaced patient face")
	return nil
}

// Recognize finds the patient whose enrolled face matches the probe image.
// An image without exactly one face, or without a confident unique match,
// fails with the corresponding sentinel error.
func (s *Service) Recognize(ctx context.Context, role policy.Role, imageData []byte) (*store.Patient, error) {
	if err := s.authorize(role, policy.OpRecognizeFace); err != nil {
		return nil, err
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: face image is required", ErrInvalidInput)
	}

	vec, err := s.extractFace(ctx, imageData)
	if err != nil {
		return nil, err
	}

	patientID, distance, ok := s.index.Match(vec)
	if !ok {
		return nil, ErrNoMatch
	}

	patient, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Index and store drifted apart; drop the stale entry.
			s.index.Remove(patientID)
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("failed to load matched patient: %w", err)
	}

	s.logger.Debug().
		Str("patient_id", patientID).
		Float64("distance", distance).
		Msg("recognized patient")
	return patient, nil
}

// GetPatient returns the demographic record for a patient.
func (s *Service) GetPatient(ctx context.Context, role policy.Role, patientID string) (*store.Patient, error) {
	if err := s.authorize(role, policy.OpViewPatient); err != nil {
		return nil, err
	}
	patient, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return patient, nil
}

// ListRecords returns the patient's record files in upload order.
func (s *Service) ListRecords(ctx context.Context, role policy.Role, patientID string) ([]store.RecordFile, error) {
	if err := s.authorize(role, policy.OpListRecords); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	files, err := s.store.ListRecordFiles(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list record files: %w", err)
	}
	return files, nil
}

// UploadRecord stores a record file for a patient. Uploading a file with
// an existing name replaces its content without creating a duplicate entry.
func (s *Service) UploadRecord(ctx context.Context, role policy.Role, patientID, filename string, r io.Reader) (*store.RecordFile, error) {
	if err := s.authorize(role, policy.OpUploadRecord); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}

	unlock := s.lockPatient(patientID)
	defer unlock()

	if _, err := s.store.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	writeCtx, cancel := s.writeContext(ctx)
	defer cancel()
	storedPath, err := s.blobs.SaveRecord(writeCtx, patientID, filename, r)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrPayloadTooLarge):
			return nil, ErrPayloadTooLarge
		case errors.Is(err, blob.ErrInvalidFilename):
			return nil, fmt.Errorf("%w: invalid filename", ErrInvalidInput)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: storing record file", ErrTimeout)
		}
		return nil, fmt.Errorf("failed to store record file: %w", err)
	}

	rec := store.RecordFile{
		PatientID:      patientID,
		Filename:       filepath.Base(storedPath),
		StoredPath:     storedPath,
		UploadedByRole: string(role),
	}
	if err := s.store.AddRecordFile(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	s.logger.Info().
		Str("patient_id", patientID).
		Str("filename", rec.Filename).
		Str("role", string(role)).
		Msg("uploaded record file")
	return &rec, nil
}

// OpenRecord opens a stored record file for download. The filename is
// resolved through the patient's record list, never interpreted as a path.
func (s *Service) OpenRecord(ctx context.Context, role policy.Role, patientID, filename string) (io.ReadCloser, int64, error) {
	if err := s.authorize(role, policy.OpDownloadRecord); err != nil {
		return nil, 0, err
	}

	rec, err := s.store.GetRecordFile(ctx, patientID, filepath.Base(filename))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: record %s", ErrNotFound, filename)
		}
		return nil, 0, fmt.Errorf("failed to load record file: %w", err)
	}

	rc, size, err := s.blobs.OpenRecord(rec.StoredPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: record %s", ErrNotFound, filename)
	}
	return rc, size, nil
}

// CountPatients reports how many patients are enrolled.
func (s *Service) CountPatients(ctx context.Context) (int, error) {
	return s.store.CountPatients(ctx)
}

// Package store defines the patient directory: demographics, face embeddings
// and record file metadata. The postgres subpackage is the production
// backend; the mock subpackage backs unit tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a patient or record file does not exist.
var ErrNotFound = errors.New("not found")

// Patient holds the demographic attributes captured at enrollment.
// Immutable after creation.
type Patient struct {
	PatientID  string    `json:"patient_id"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	BloodGroup string    `json:"blood_group"`
	CreatedAt  time.Time `json:"-"`
}

// StoredEmbedding is the persisted face embedding for a patient.
// Exactly one per enrolled patient; re-enrollment replaces it.
type StoredEmbedding struct {
	PatientID string
	Embedding []float32
	Dim       int
	Model     string
	CreatedAt time.Time
}

// RecordFile describes one uploaded medical record file.
type RecordFile struct {
	ID             int64
	PatientID      string
	Filename       string
	StoredPath     string
	UploadedByRole string
	UploadedAt     time.Time
}

// Store is the patient directory contract.
type Store interface {
	// CreatePatientWithEmbedding persists the patient and their embedding
	// atomically: either both rows exist afterwards or neither does.
	CreatePatientWithEmbedding(ctx context.Context, p Patient, emb StoredEmbedding) error

	// GetPatient returns ErrNotFound for unknown ids.
	GetPatient(ctx context.Context, patientID string) (*Patient, error)

	// DeletePatient removes the patient together with their embedding and
	// record rows. Used as the compensating action when a multi-step
	// enrollment fails halfway.
	DeletePatient(ctx context.Context, patientID string) error

	// ReplaceEmbedding overwrites the patient's embedding.
	// ErrNotFound if the patient is unknown.
	ReplaceEmbedding(ctx context.Context, patientID string, emb StoredEmbedding) error

	// AllEmbeddings returns every stored embedding, for index rebuilds.
	AllEmbeddings(ctx context.Context) ([]StoredEmbedding, error)

	// CountPatients returns the number of enrolled patients.
	CountPatients(ctx context.Context) (int, error)

	// AddRecordFile appends a record file reference. Re-uploading the same
	// filename for a patient replaces the existing reference.
	// ErrNotFound if the patient is unknown.
	AddRecordFile(ctx context.Context, rf RecordFile) error

	// ListRecordFiles returns the patient's files in upload order, oldest
	// first. An empty slice, not an error, when none exist.
	ListRecordFiles(ctx context.Context, patientID string) ([]RecordFile, error)

	// GetRecordFile resolves a filename within a patient's record set.
	// ErrNotFound if the file is not associated with that patient.
	GetRecordFile(ctx context.Context, patientID, filename string) (*RecordFile, error)
}

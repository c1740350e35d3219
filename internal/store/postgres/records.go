package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facemed/face-med/internal/store"
)

// AddRecordFile appends a record file reference for a patient. Re-uploading
// the same filename replaces the reference, keeping its position in upload
// order.
func (s *Store) AddRecordFile(ctx context.Context, rf store.RecordFile) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM patients WHERE patient_id = $1)", rf.PatientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check patient exists: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO record_files (patient_id, filename, stored_path, uploaded_by_role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id, filename) DO UPDATE
		SET stored_path = EXCLUDED.stored_path,
		    uploaded_by_role = EXCLUDED.uploaded_by_role,
		    uploaded_at = NOW()
	`, rf.PatientID, rf.Filename, rf.StoredPath, rf.UploadedByRole)
	if err != nil {
		return fmt.Errorf("insert record file: %w", err)
	}
	return nil
}

// ListRecordFiles returns the patient's files in upload order, oldest first.
func (s *Store) ListRecordFiles(ctx context.Context, patientID string) ([]store.RecordFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, filename, stored_path, uploaded_by_role, uploaded_at
		FROM record_files
		WHERE patient_id = $1
		ORDER BY id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query record files: %w", err)
	}
	defer rows.Close()

	files := make([]store.RecordFile, 0)
	for rows.Next() {
		var rf store.RecordFile
		if err := rows.Scan(&rf.ID, &rf.PatientID, &rf.Filename, &rf.StoredPath, &rf.UploadedByRole, &rf.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan record file: %w", err)
		}
		files = append(files, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record files: %w", err)
	}
	return files, nil
}

// GetRecordFile resolves a filename within a patient's record set.
func (s *Store) GetRecordFile(ctx context.Context, patientID, filename string) (*store.RecordFile, error) {
	var rf store.RecordFile
	err := s.pool.QueryRow(ctx, `
		SELECT id, patient_id, filename, stored_path, uploaded_by_role, uploaded_at
		FROM record_files
		WHERE patient_id = $1 AND filename = $2
	`, patientID, filename).Scan(&rf.ID, &rf.PatientID, &rf.Filename, &rf.StoredPath, &rf.UploadedByRole, &rf.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record file: %w", err)
	}
	return &rf, nil
}

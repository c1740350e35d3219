package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facemed/face-med/internal/store"
	"github.com/pgvector/pgvector-go"
)

// Store implements store.Store on a PostgreSQL pool.
type Store struct {
	pool *Pool
}

// NewStore creates a PostgreSQL-backed patient directory.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// CreatePatientWithEmbedding inserts the patient and their embedding in one
// transaction. Either both rows land or neither does.
func (s *Store) CreatePatientWithEmbedding(ctx context.Context, p store.Patient, emb store.StoredEmbedding) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patients (patient_id, name, age, blood_group)
		VALUES ($1, $2, $3, $4)
	`, p.PatientID, p.Name, p.Age, p.BloodGroup)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}

	vec := pgvector.NewVector(emb.Embedding)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO face_embeddings (patient_id, embedding, dim, model)
		VALUES ($1, $2, $3, $4)
	`, p.PatientID, vec, len(emb.Embedding), emb.Model)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// GetPatient returns the patient or store.ErrNotFound.
func (s *Store) GetPatient(ctx context.Context, patientID string) (*store.Patient, error) {
	var p store.Patient
	err := s.pool.QueryRow(ctx, `
		SELECT patient_id, name, age, blood_group, created_at
		FROM patients
		WHERE patient_id = $1
	`, patientID).Scan(&p.PatientID, &p.Name, &p.Age, &p.BloodGroup, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query patient: %w", err)
	}
	return &p, nil
}

// DeletePatient removes the patient; embeddings and record rows cascade.
func (s *Store) DeletePatient(ctx context.Context, patientID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM patients WHERE patient_id = $1", patientID)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// ReplaceEmbedding overwrites the patient's embedding row.
func (s *Store) ReplaceEmbedding(ctx context.Context, patientID string, emb store.StoredEmbedding) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM patients WHERE patient_id = $1)", patientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check patient exists: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}

	vec := pgvector.NewVector(emb.Embedding)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO face_embeddings (patient_id, embedding, dim, model)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    dim = EXCLUDED.dim,
		    model = EXCLUDED.model,
		    created_at = NOW()
	`, patientID, vec, len(emb.Embedding), emb.Model)
	if err != nil {
		return fmt.Errorf("replace embedding: %w", err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding, for index rebuilds.
func (s *Store) AllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT patient_id, embedding, dim, model, created_at
		FROM face_embeddings
		ORDER BY patient_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []store.StoredEmbedding
	for rows.Next() {
		var emb store.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.PatientID, &vec, &emb.Dim, &emb.Model, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = vec.Slice()
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// CountPatients returns the number of enrolled patients.
func (s *Store) CountPatients(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM patients").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return count, nil
}

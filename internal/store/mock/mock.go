// Package mock provides an in-memory Store implementation for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/facemed/face-med/internal/store"
)

// Store is a thread-safe in-memory store.Store.
type Store struct {
	mu         sync.RWMutex
	patients   map[string]store.Patient
	embeddings map[string]store.StoredEmbedding
	records    map[string][]store.RecordFile
	nextID     int64

	// Error injection
	CreateError  error
	GetError     error
	DeleteError  error
	ReplaceError error
	AddError     error
	ListError    error
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		patients:   make(map[string]store.Patient),
		embeddings: make(map[string]store.StoredEmbedding),
		records:    make(map[string][]store.RecordFile),
	}
}

func (m *Store) CreatePatientWithEmbedding(ctx context.Context, p store.Patient, emb store.StoredEmbedding) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.patients[p.PatientID] = p
	emb.PatientID = p.PatientID
	m.embeddings[p.PatientID] = emb
	return nil
}

func (m *Store) GetPatient(ctx context.Context, patientID string) (*store.Patient, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *Store) DeletePatient(ctx context.Context, patientID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, patientID)
	delete(m.embeddings, patientID)
	delete(m.records, patientID)
	return nil
}

func (m *Store) ReplaceEmbedding(ctx context.Context, patientID string, emb store.StoredEmbedding) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[patientID]; !ok {
		return store.ErrNotFound
	}
	emb.PatientID = patientID
	m.embeddings[patientID] = emb
	return nil
}

func (m *Store) AllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.StoredEmbedding, 0, len(m.embeddings))
	for _, emb := range m.embeddings {
		out = append(out, emb)
	}
	return out, nil
}

func (m *Store) CountPatients(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patients), nil
}

func (m *Store) AddRecordFile(ctx context.Context, rf store.RecordFile) error {
	if m.AddError != nil {
		return m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[rf.PatientID]; !ok {
		return store.ErrNotFound
	}

	if rf.UploadedAt.IsZero() {
		rf.UploadedAt = time.Now()
	}

	// Same filename replaces in place, keeping upload order stable.
	files := m.records[rf.PatientID]
	for i := range files {
		if files[i].Filename == rf.Filename {
			rf.ID = files[i].ID
			files[i] = rf
			return nil
		}
	}

	m.nextID++
	rf.ID = m.nextID
	m.records[rf.PatientID] = append(files, rf)
	return nil
}

func (m *Store) ListRecordFiles(ctx context.Context, patientID string) ([]store.RecordFile, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := m.records[patientID]
	out := make([]store.RecordFile, len(files))
	copy(out, files)
	return out, nil
}

func (m *Store) GetRecordFile(ctx context.Context, patientID, filename string) (*store.RecordFile, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rf := range m.records[patientID] {
		if rf.Filename == filename {
			out := rf
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

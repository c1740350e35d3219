// Package mock provides a canned Extractor implementation for testing.
package mock

import (
	"context"
	"sync"

	"github.com/facemed/face-med/internal/embedding"
)

// Extractor maps image bytes to pre-registered embeddings. Unknown images
// behave as configured by DefaultErr (ErrNoFaceDetected when unset).
type Extractor struct {
	mu      sync.RWMutex
	vectors map[string][]float32

	// Error injection
	ExtractErr error
	DefaultErr error

	// Calls counts ExtractSingleFace invocations.
	Calls int
}

// NewExtractor creates an empty mock extractor.
func NewExtractor() *Extractor {
	return &Extractor{vectors: make(map[string][]float32)}
}

// Register associates image bytes with an embedding vector.
func (m *Extractor) Register(imageData []byte, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[string(imageData)] = vec
}

// ExtractSingleFace returns the registered vector for the given image.
func (m *Extractor) ExtractSingleFace(ctx context.Context, imageData []byte) ([]float32, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if vec, ok := m.vectors[string(imageData)]; ok {
		return vec, nil
	}
	if m.DefaultErr != nil {
		return nil, m.DefaultErr
	}
	return nil, embedding.ErrNoFaceDetected
}

// Package faceindex maintains one embedding per enrolled patient and answers
// nearest-neighbor probes against them. An in-memory HNSW graph provides the
// candidate search; exact cosine distances decide the match.
package faceindex

import (
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph parameters for 512-dim face embeddings.
const (
	// maxNeighbors (M) is the maximum number of neighbors per node.
	maxNeighbors = 16

	// searchK is the candidate pool requested from the graph per probe.
	// Larger than 1 so replaced embeddings and near-ties are visible.
	searchK = 16
)

// Entry is one enrolled embedding.
type Entry struct {
	PatientID string
	Embedding []float32
}

// Index holds the enrolled face embeddings. The vectors map is the source of
// truth; the HNSW graph only accelerates candidate lookup. Entries removed or
// replaced stay in the graph until the next rebuild and are filtered out (or
// re-scored against the current vector) at query time, since HNSW has no true
// deletion.
type Index struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[string]
	vectors   map[string][]float32
	threshold float64
	epsilon   float64
}

// New creates an empty index. threshold is the maximum cosine distance for an
// accepted match; epsilon is the floating-point tolerance under which two
// different enrolled patients at near-equal distance are too close to call.
func New(threshold, epsilon float64) *Index {
	return &Index{
		vectors:   make(map[string][]float32),
		threshold: threshold,
		epsilon:   epsilon,
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Add inserts or replaces the embedding for a patient.
func (ix *Index) Add(patientID string, embedding []float32) {
	if len(embedding) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil {
		ix.graph = newGraph()
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	ix.vectors[patientID] = vec
	ix.graph.Add(hnsw.MakeNode(patientID, vec))
}

// Remove deletes a patient's embedding. The graph node lingers until the next
// rebuild but is filtered from all matches.
func (ix *Index) Remove(patientID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.vectors, patientID)
}

// Has reports whether the patient has an enrolled embedding.
func (ix *Index) Has(patientID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.vectors[patientID]
	return ok
}

// Count returns the number of enrolled embeddings.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Match finds the enrolled patient nearest to the probe. A match is returned
// only if the exact cosine distance is below the acceptance threshold AND the
// runner-up (a different patient) is not equidistant within epsilon — a
// too-close-to-call probe is rejected rather than arbitrarily resolved.
func (ix *Index) Match(probe []float32) (patientID string, distance float64, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil || len(ix.vectors) == 0 {
		return "", 0, false
	}

	neighbors := ix.graph.Search(probe, searchK)

	// Re-score candidates exactly against the live vectors. Graph nodes for
	// replaced embeddings carry stale values, and removed ids are skipped.
	best, second := 2.0, 2.0
	bestID := ""
	seen := make(map[string]bool, len(neighbors))
	for _, n := range neighbors {
		if seen[n.Key] {
			continue
		}
		seen[n.Key] = true

		vec, live := ix.vectors[n.Key]
		if !live {
			continue
		}
		d := CosineDistance(probe, vec)
		switch {
		case d < best:
			second = best
			best = d
			bestID = n.Key
		case d < second:
			second = d
		}
	}

	if bestID == "" || best >= ix.threshold {
		return "", best, false
	}
	if second-best < ix.epsilon {
		// Equidistant candidates: false positives are costlier than false
		// negatives here, so reject instead of picking one.
		return "", best, false
	}
	return bestID, best, true
}

// Rebuild replaces the index contents with the given entries and compacts the
// graph, dropping any lingering nodes from removals and re-enrollments.
func (ix *Index) Rebuild(entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.vectors = make(map[string][]float32, len(entries))
	if len(entries) == 0 {
		ix.graph = nil
		return
	}

	g := newGraph()
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		ix.vectors[e.PatientID] = vec
		g.Add(hnsw.MakeNode(e.PatientID, vec))
	}
	ix.graph = g
}

// Entries returns a snapshot of the live embeddings.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]Entry, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		out := make([]float32, len(vec))
		copy(out, vec)
		entries = append(entries, Entry{PatientID: id, Embedding: out})
	}
	return entries
}

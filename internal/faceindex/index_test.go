package faceindex

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

// unitVec builds a normalized vector pointing mostly along the given axis.
func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// nearVec returns a vector close to base: base rotated slightly toward axis.
func nearVec(base []float32, axis int, amount float32) []float32 {
	v := make([]float32, len(base))
	copy(v, base)
	v[axis] += amount
	// normalize
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func TestMatchRoundTrip(t *testing.T) {
	ix := New(0.35, 1e-6)
	ix.Add("p1", unitVec(8, 0))
	ix.Add("p2", unitVec(8, 1))

	id, dist, ok := ix.Match(unitVec(8, 0))
	if !ok {
		t.Fatal("expected a match for the enrolled vector")
	}
	if id != "p1" {
		t.Errorf("expected p1, got %s", id)
	}
	if dist > 1e-9 {
		t.Errorf("expected near-zero distance, got %f", dist)
	}
}

func TestMatchDissimilarProbe(t *testing.T) {
	ix := New(0.35, 1e-6)
	ix.Add("p1", unitVec(8, 0))
	ix.Add("p2", unitVec(8, 1))

	// Orthogonal to both enrolled vectors: distance 1.0, above threshold.
	if id, _, ok := ix.Match(unitVec(8, 2)); ok {
		t.Errorf("expected no match, got %s", id)
	}
}

func TestMatchEmptyIndex(t *testing.T) {
	ix := New(0.35, 1e-6)
	if _, _, ok := ix.Match(unitVec(8, 0)); ok {
		t.Error("empty index must not match")
	}
}

func TestMatchNearProbeWithinThreshold(t *testing.T) {
	ix := New(0.35, 1e-6)
	base := unitVec(8, 0)
	ix.Add("p1", base)
	ix.Add("p2", unitVec(8, 1))

	probe := nearVec(base, 3, 0.2)
	id, dist, ok := ix.Match(probe)
	if !ok {
		t.Fatalf("expected a match for near probe (distance %f)", dist)
	}
	if id != "p1" {
		t.Errorf("expected p1, got %s", id)
	}
}

func TestMatchEquidistantTieRejected(t *testing.T) {
	ix := New(0.9, 1e-6)
	// Two different patients with identical embeddings: every probe that
	// hits one is equidistant to the other.
	ix.Add("p1", unitVec(8, 0))
	ix.Add("p2", unitVec(8, 0))

	if id, _, ok := ix.Match(unitVec(8, 0)); ok {
		t.Errorf("equidistant candidates must reject, got %s", id)
	}
}

func TestAddReplacesEmbedding(t *testing.T) {
	ix := New(0.35, 1e-6)
	old := unitVec(8, 0)
	ix.Add("p1", old)
	ix.Add("p1", unitVec(8, 1)) // re-enrollment

	if ix.Count() != 1 {
		t.Fatalf("expected 1 entry after re-enrollment, got %d", ix.Count())
	}

	// The old face must no longer match.
	if id, _, ok := ix.Match(old); ok {
		t.Errorf("stale embedding matched as %s", id)
	}

	id, _, ok := ix.Match(unitVec(8, 1))
	if !ok || id != "p1" {
		t.Errorf("new embedding should match p1, got %s ok=%v", id, ok)
	}
}

func TestRemove(t *testing.T) {
	ix := New(0.35, 1e-6)
	ix.Add("p1", unitVec(8, 0))
	ix.Remove("p1")

	if ix.Count() != 0 {
		t.Errorf("expected empty index, got %d", ix.Count())
	}
	if _, _, ok := ix.Match(unitVec(8, 0)); ok {
		t.Error("removed patient must not match")
	}
}

func TestConcurrentAdds(t *testing.T) {
	ix := New(0.35, 1e-6)
	const n = 32

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ix.Add(fmt.Sprintf("p%d", i), unitVec(n, i))
		}(i)
	}
	wg.Wait()

	if ix.Count() != n {
		t.Fatalf("expected %d entries, got %d", n, ix.Count())
	}

	// After all enrollments complete, each probe matches exactly its own face.
	for i := range n {
		id, _, ok := ix.Match(unitVec(n, i))
		if !ok || id != fmt.Sprintf("p%d", i) {
			t.Errorf("probe %d matched %s (ok=%v)", i, id, ok)
		}
	}
}

func TestRebuildCompacts(t *testing.T) {
	ix := New(0.35, 1e-6)
	ix.Add("p1", unitVec(8, 0))
	ix.Add("p2", unitVec(8, 1))
	ix.Remove("p2")

	ix.Rebuild(ix.Entries())

	if ix.Count() != 1 {
		t.Fatalf("expected 1 entry after rebuild, got %d", ix.Count())
	}
	if _, _, ok := ix.Match(unitVec(8, 1)); ok {
		t.Error("compacted entry must not match")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.idx")

	ix := New(0.35, 1e-6)
	ix.Add("p1", unitVec(8, 0))
	ix.Add("p2", unitVec(8, 1))
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := New(0.35, 1e-6)
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if restored.Count() != 2 {
		t.Fatalf("expected 2 entries after load, got %d", restored.Count())
	}
	id, _, ok := restored.Match(unitVec(8, 1))
	if !ok || id != "p2" {
		t.Errorf("expected p2 after reload, got %s ok=%v", id, ok)
	}
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	ix := New(0.35, 1e-6)
	if err := ix.Load(filepath.Join(t.TempDir(), "absent.idx")); err != nil {
		t.Errorf("missing index file should not error: %v", err)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if d := CosineDistance(a, a); d > 1e-9 {
		t.Errorf("identical vectors should have distance 0, got %f", d)
	}
	if d := CosineDistance(a, b); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors should have distance 1, got %f", d)
	}
	if d := CosineDistance(a, []float32{-1, 0, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("opposite vectors should have distance 2, got %f", d)
	}
	if d := CosineDistance(a, []float32{1, 2}); d != 2.0 {
		t.Errorf("mismatched lengths should return max distance, got %f", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{0, 0}); d != 2.0 {
		t.Errorf("zero vectors should return max distance, got %f", d)
	}
}

package faceindex

import "math"

// maxDistance is returned for inputs no meaningful angle exists for:
// mismatched lengths, empty slices and zero vectors.
const maxDistance = 2.0

// CosineDistance returns 1 minus the cosine similarity of a and b, in the
// range 0 (same direction) to 2 (opposite direction).
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return maxDistance
	}

	var dot, sqA, sqB float64
	for i, av := range a {
		x, y := float64(av), float64(b[i])
		dot += x * y
		sqA += x * x
		sqB += y * y
	}
	if sqA == 0 || sqB == 0 {
		return maxDistance
	}

	sim := dot / math.Sqrt(sqA*sqB)
	// Rounding can push the ratio slightly outside [-1, 1].
	sim = math.Max(-1, math.Min(1, sim))

	return 1 - sim
}

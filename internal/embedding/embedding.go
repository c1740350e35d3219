// Package embedding talks to the face embedding server. The server is a
// pluggable capability: multipart image in, detected faces plus one
// fixed-length vector per face out. Everything the service knows about
// face detection comes from this package.
package embedding

import "errors"

var (
	// ErrNoFaceDetected means the image contained no detectable face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMultipleFacesDetected means the image contained more than one face.
	// Enrollment and probing both require an unambiguous single subject.
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
)

// FaceDetection represents a single detected face.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

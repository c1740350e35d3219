package embedding

import "context"

// Extractor turns a probe or enrollment image into a single face embedding.
// Implementations must return ErrNoFaceDetected / ErrMultipleFacesDetected
// when the image does not contain exactly one face.
type Extractor interface {
	ExtractSingleFace(ctx context.Context, imageData []byte) ([]float32, error)
}

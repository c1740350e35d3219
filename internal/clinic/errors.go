package clinic

import "errors"

// Sentinel errors returned by the service. The web layer maps these onto
// HTTP status codes; everything else is treated as an internal error.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidRole           = errors.New("invalid role")
	ErrForbidden             = errors.New("operation not permitted for role")
	ErrNotFound              = errors.New("not found")
	ErrNoFaceDetected        = errors.New("no face detected in the image")
	ErrMultipleFacesDetected = errors.New("multiple faces detected in the image")
	ErrNoMatch               = errors.New("no matching face found")
	ErrPayloadTooLarge       = errors.New("uploaded file too large")
	ErrTimeout               = errors.New("operation timed out")
)

package embedding

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// MaxImageSize is the maximum dimension (width or height) sent to the
// embedding server. Webcam frames above this are downscaled.
const MaxImageSize = 1280

// jpegQuality for re-encoded frames.
const jpegQuality = 90

// NormalizeImage decodes the image, downscales it if either dimension exceeds
// MaxImageSize, and re-encodes as JPEG. Images already within bounds are
// returned untouched so the original bytes (and format) pass through.
func NormalizeImage(imageData []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if cfg.Width <= MaxImageSize && cfg.Height <= MaxImageSize {
		return imageData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h := scaledSize(cfg.Width, cfg.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode scaled image: %w", err)
	}
	return buf.Bytes(), nil
}

// scaledSize shrinks (w, h) so the longer side equals MaxImageSize.
func scaledSize(w, h int) (int, int) {
	if w >= h {
		return MaxImageSize, max(h*MaxImageSize/w, 1)
	}
	return max(w*MaxImageSize/h, 1), MaxImageSize
}

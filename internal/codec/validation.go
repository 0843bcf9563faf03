package codec

import (
	"errors"
	"image"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidImageDimensions is returned when image dimensions are invalid
	ErrInvalidImageDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Decode limits, protecting against decompression bombs.
const (
	MaxImageWidth  = 20000
	MaxImageHeight = 20000
	MaxImagePixels = 250_000_000
)

// ValidateImage checks decoded image dimensions are within acceptable limits
func ValidateImage(img image.Image) error {
	if img == nil {
		return ErrUnsupportedFormat
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= 0 || height <= 0 {
		log.Warn().Int("width", width).Int("height", height).Msg("invalid dimensions")
		return ErrInvalidImageDimensions
	}

	if width > MaxImageWidth || height > MaxImageHeight {
		log.Warn().Int("width", width).Int("height", height).Msg("dimensions too large")
		return ErrImageTooLarge
	}

	// Check total pixel count (prevent decompression bomb attacks)
	totalPixels := int64(width) * int64(height)
	if totalPixels > MaxImagePixels {
		log.Warn().Int64("pixels", totalPixels).Msg("too many pixels")
		return ErrImageTooLarge
	}

	return nil
}

// EstimateEncodedSize gives a rough upper bound of the JPEG size for the given
// dimensions and quality. It sizes trial buffers before the first encode.
func EstimateEncodedSize(width, height, quality int) int64 {
	pixels := int64(width) * int64(height)

	var multiplier float64
	switch {
	case quality >= 90:
		multiplier = 2.0
	case quality >= 70:
		multiplier = 1.0
	case quality >= 50:
		multiplier = 0.5
	default:
		multiplier = 0.3
	}

	return int64(float64(pixels) * multiplier)
}

// Package jpeg encodes JPEG images for trial and final encodes. Building with
// the turbo tag (and cgo) routes YCbCr images through libjpeg-turbo, which is
// 2-4x faster than the pure Go encoder; every other image, and every build
// without the tag, uses image/jpeg.
package jpeg

const (
	// MinQuality is the minimum quality
	MinQuality = 1
	// MaxQuality is the maximum quality
	MaxQuality = 100
)

func clampQuality(quality int) int {
	if quality < MinQuality {
		return MinQuality
	}
	if quality > MaxQuality {
		return MaxQuality
	}
	return quality
}

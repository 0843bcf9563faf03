//go:build !turbo || !cgo

package jpeg

import (
	"image"
	"image/jpeg"
	"io"
)

// Turbo reports whether the libjpeg-turbo encoder is compiled in.
const Turbo = false

// Encode writes img to w as a JPEG at the given quality.
func Encode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: clampQuality(quality)})
}

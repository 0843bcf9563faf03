package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/pkg/jpeg"
)

// MaxFidelityQuality is used when a lossy source is re-encoded without a
// size target.
const MaxFidelityQuality = 95

// Adapter is the encode side of the codec layer. The zero value is not usable;
// call NewAdapter.
type Adapter struct {
	filter imaging.ResampleFilter
}

// NewAdapter returns an Adapter that resamples with a Lanczos filter.
func NewAdapter() *Adapter {
	return &Adapter{filter: imaging.Lanczos}
}

// Resample scales img to width x height. img is returned untouched when it
// already has those dimensions.
func (a *Adapter) Resample(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, a.filter)
}

// EncodeAtQuality resamples img to width x height when needed and encodes it
// in format at the given quality. Nothing is written to disk.
func (a *Adapter) EncodeAtQuality(img image.Image, format Format, quality, width, height int) ([]byte, error) {
	img = a.Resample(img, width, height)

	var out bytes.Buffer
	out.Grow(int(EstimateEncodedSize(width, height, quality) / 4))
	if err := encode(&out, img, format, quality); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Measure encodes img at the given quality and returns only the encoded
// size. The encoded bytes are discarded before Measure returns.
func (a *Adapter) Measure(img image.Image, format Format, quality int) (int, error) {
	b := img.Bounds()
	buf := getBuffer(int(EstimateEncodedSize(b.Dx(), b.Dy(), quality) / 4))
	defer putBuffer(buf)

	if err := encode(buf, img, format, quality); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// EncodeLossless re-encodes a source at maximum fidelity: losslessly as PNG
// when the source format is lossless, otherwise in its own lossy format (or
// JPEG when that format cannot be written) at MaxFidelityQuality.
func (a *Adapter) EncodeLossless(img image.Image, format Format) ([]byte, Format, error) {
	out := format
	switch {
	case format.Lossless():
		out = FormatPNG
	case !format.SupportsQuality():
		out = FormatJPEG
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, out, MaxFidelityQuality); err != nil {
		return nil, out, err
	}
	return buf.Bytes(), out, nil
}

func encode(w io.Writer, img image.Image, format Format, quality int) error {
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, quality)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatPNG:
		err = png.Encode(w, img)
	default:
		return fmt.Errorf("%w: cannot encode %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		log.Error().Err(err).Str("format", format.String()).Int("quality", quality).Msg("encode failed")
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

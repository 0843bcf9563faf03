// Package codec decodes source images, encodes them at a quality level and
// prepares lossless or alpha-bearing sources for size targeting.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/adrium/goheif"
	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "github.com/xfmoulet/qoi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat is returned when the input is not a decodable raster image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrIO is returned when the source cannot be read.
	ErrIO = errors.New("image source unreadable")
)

// SourceImage is a decoded image together with what is known about the bytes
// it came from. It is not modified after Decode returns.
type SourceImage struct {
	Image      image.Image
	Width      int
	Height     int
	ColorModel string
	HasAlpha   bool
	ByteSize   int
	Format     Format
}

// Decode parses data as a raster image.
func Decode(data []byte) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}

	format := Sniff(data)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: unrecognised signature", ErrUnsupportedFormat)
	}

	img, err := decodeAs(format, data)
	if err != nil {
		log.Debug().Err(err).Str("format", format.String()).Msg("decode failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, format, err)
	}

	if err := ValidateImage(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &SourceImage{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		ColorModel: colorModelName(img),
		HasAlpha:   hasAlpha(img),
		ByteSize:   len(data),
		Format:     format,
	}, nil
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(r io.Reader) (*SourceImage, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrIO)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return Decode(buf.Bytes())
}

// DecodeFile reads and decodes the image at path.
func DecodeFile(path string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return Decode(data)
}

func decodeAs(format Format, data []byte) (image.Image, error) {
	switch format {
	case FormatHEIF:
		return goheif.Decode(bytes.NewReader(data))
	case FormatWebP:
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// hasAlpha reports whether any pixel is not fully opaque.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func colorModelName(img image.Image) string {
	switch img.(type) {
	case *image.YCbCr:
		return "ycbcr"
	case *image.NYCbCrA:
		return "ycbcra"
	case *image.RGBA, *image.RGBA64:
		return "rgba"
	case *image.NRGBA, *image.NRGBA64:
		return "nrgba"
	case *image.Gray, *image.Gray16:
		return "gray"
	case *image.Paletted:
		return "paletted"
	case *image.CMYK:
		return "cmyk"
	case *image.Alpha, *image.Alpha16:
		return "alpha"
	}
	return "other"
}

package codec

import (
	"bytes"
	"strings"
)

// Format identifies an image container/codec.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatWebP    Format = "webp"
	FormatHEIF    Format = "heif"
	FormatQOI     Format = "qoi"
)

func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// SupportsQuality reports whether the format can be encoded here with a
// quality parameter.
func (f Format) SupportsQuality() bool {
	return f == FormatJPEG || f == FormatWebP
}

// Lossless reports whether the format only stores pixels losslessly.
func (f Format) Lossless() bool {
	switch f {
	case FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatQOI:
		return true
	}
	return false
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatHEIF:
		return ".heic"
	case FormatTIFF:
		return ".tiff"
	case FormatUnknown:
		return ""
	}
	return "." + string(f)
}

// MIME returns the media type used for HTTP responses.
func (f Format) MIME() string {
	switch f {
	case FormatUnknown:
		return "application/octet-stream"
	case FormatHEIF:
		return "image/heic"
	}
	return "image/" + string(f)
}

// ParseFormat maps user input such as "jpg" or "WebP" to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpeg", "jpg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "tif", "tiff":
		return FormatTIFF
	case "webp":
		return FormatWebP
	case "heic", "heif":
		return FormatHEIF
	case "qoi":
		return FormatQOI
	}
	return FormatUnknown
}

var (
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	gif87Sig  = []byte("GIF87a")
	gif89Sig  = []byte("GIF89a")
	bmpSig    = []byte("BM")
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
	qoiSig    = []byte("qoif")
)

// HEIF brands goheif can decode. ISOBMFF files carry "ftyp" at offset 4
// followed by the major brand.
var heifBrands = []string{"heic", "heix", "heim", "heis", "hevc", "hevx", "mif1", "msf1"}

// Sniff inspects the leading bytes of data and reports its format.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, jpegSig):
		return FormatJPEG
	case bytes.HasPrefix(data, pngSig):
		return FormatPNG
	case bytes.HasPrefix(data, gif87Sig), bytes.HasPrefix(data, gif89Sig):
		return FormatGIF
	case bytes.HasPrefix(data, tiffSigLE), bytes.HasPrefix(data, tiffSigBE):
		return FormatTIFF
	case bytes.HasPrefix(data, qoiSig):
		return FormatQOI
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP
	case isHEIF(data):
		return FormatHEIF
	case len(data) >= 14 && bytes.HasPrefix(data, bmpSig):
		return FormatBMP
	}
	return FormatUnknown
}

func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := strings.ToLower(string(data[8:12]))
	for _, b := range heifBrands {
		if brand == b {
			return true
		}
	}
	return false
}

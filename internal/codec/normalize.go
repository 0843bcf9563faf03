package codec

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Substitution records how a source was adapted for size targeting.
type Substitution struct {
	From           Format
	To             Format
	AlphaFlattened bool
}

// Substituted reports whether the output format differs from the source.
func (s Substitution) Substituted() bool {
	return s.From != s.To
}

// Normalized is a source ready for quality-driven encoding.
type Normalized struct {
	Image        image.Image
	Format       Format
	Substitution Substitution
}

// NormalizeForSizeTargeting picks a lossy output format for src and flattens
// its alpha channel when that format (or the switch to it) cannot carry one.
// preferred is used when src's own format has no quality control; anything
// other than WebP means JPEG. src is not modified.
func NormalizeForSizeTargeting(src *SourceImage, preferred Format) Normalized {
	out := src.Format
	if !out.SupportsQuality() {
		out = FormatJPEG
		if preferred == FormatWebP {
			out = FormatWebP
		}
	}

	n := Normalized{
		Image:        src.Image,
		Format:       out,
		Substitution: Substitution{From: src.Format, To: out},
	}

	if src.HasAlpha && (out != src.Format || out == FormatJPEG) {
		n.Image = Flatten(src.Image)
		n.Substitution.AlphaFlattened = true
	}
	return n
}

// Flatten composites img onto an opaque white canvas:
// out = alpha*fg + (1-alpha)*white for every channel.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

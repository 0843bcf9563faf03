package sizing

import (
	"math"

	"github.com/harliandi/sizefit/internal/codec"
)

// MinDimension is the smallest width or height the scaler will produce.
const MinDimension = 100

const (
	shrinkMargin = 0.95
	growMargin   = 1.05
)

// ScaleDecision is a single corrective resize.
type ScaleDecision struct {
	Factor float64
	Width  int
	Height int
}

// Scale proposes new dimensions for an image of width x height whose encode
// came out at currentSize bytes, assuming encoded size tracks pixel area. The
// factor carries a 5% margin towards the inside of the band. Each side is
// kept within [MinDimension, the decode limit] and the total area never
// exceeds codec.MaxImagePixels. A currentSize inside the band, or zero, yields
// factor 1.
func Scale(width, height, currentSize int, band Band) ScaleDecision {
	factor := 1.0
	switch {
	case currentSize > band.Upper:
		factor = math.Sqrt(float64(band.Upper)/float64(currentSize)) * shrinkMargin
	case currentSize < band.Lower && currentSize > 0:
		factor = math.Sqrt(float64(band.Lower)/float64(currentSize)) * growMargin
	}

	w, h := scaledDims(width, height, factor, math.Round)
	if w*h > codec.MaxImagePixels {
		area := float64(width) * float64(height) * factor * factor
		factor *= math.Min(1, math.Sqrt(codec.MaxImagePixels/area))
		w, h = scaledDims(width, height, factor, math.Floor)
	}

	return ScaleDecision{Factor: factor, Width: w, Height: h}
}

func scaledDims(width, height int, factor float64, round func(float64) float64) (int, int) {
	return clampDimension(round(float64(width)*factor), codec.MaxImageWidth),
		clampDimension(round(float64(height)*factor), codec.MaxImageHeight)
}

func clampDimension(v float64, upper int) int {
	d := int(v)
	if d < MinDimension {
		return MinDimension
	}
	if d > upper {
		return upper
	}
	return d
}

// Package quality searches for an encoder quality level whose output lands
// inside a byte-size tolerance band.
package quality

import (
	"math"

	"github.com/rs/zerolog/log"
)

const (
	// MinQuality is the lowest quality a search will try.
	MinQuality = 1
	// MaxQuality is the highest quality a search will try. Encoders gain
	// little above it while output size grows quickly.
	MaxQuality = 95
	// StartQuality is the first quality measured.
	StartQuality = 80
	// MaxIterations bounds the trial encodes of a single search.
	MaxIterations = 10
)

// Measurer encodes the image under search at the given quality and returns
// the encoded size in bytes.
type Measurer func(quality int) (int, error)

// Result describes where a search stopped.
type Result struct {
	// Quality is the last quality the search settled on. It is always in
	// [MinQuality, MaxQuality].
	Quality int
	// Size is the most recent measurement. It belongs to Quality only when
	// Converged or Saturated is set; after an exhausted budget Quality is the
	// next, unmeasured candidate.
	Size       int
	Iterations int
	Converged  bool
	Saturated  bool
}

// Search looks for a quality whose encoded size is within
// targetBytes*(1±tolerance). It performs at most MaxIterations trial encodes and
// returns a best-effort result when the band cannot be reached. An error is
// returned only when measure fails.
func Search(measure Measurer, targetBytes int, tolerance float64) (Result, error) {
	res := Result{Quality: StartQuality}

	for res.Iterations < MaxIterations {
		size, err := measure(res.Quality)
		if err != nil {
			return res, err
		}
		res.Iterations++
		res.Size = size

		ratio := float64(size) / float64(targetBytes)
		log.Debug().
			Int("quality", res.Quality).
			Int("size", size).
			Float64("ratio", ratio).
			Int("iteration", res.Iterations).
			Msg("quality trial")

		if ratio >= 1-tolerance && ratio <= 1+tolerance {
			res.Converged = true
			return res, nil
		}

		next := NextQuality(res.Quality, size, targetBytes)
		if next == res.Quality {
			res.Saturated = true
			return res, nil
		}
		res.Quality = next
	}

	return res, nil
}

// NextQuality proposes the quality to try after an encode at current produced
// size bytes. Overshoot is corrected with twice the step of undershoot since
// lossy codecs shed bytes faster as quality drops.
func NextQuality(current, size, targetBytes int) int {
	ratio := float64(size) / float64(targetBytes)

	var next int
	switch {
	case ratio > 1:
		next = current - step(10*math.Log2(ratio))
	case size <= 0:
		next = MaxQuality
	default:
		next = current + step(5*math.Log2(1/ratio))
	}
	return Clamp(next)
}

// Clamp bounds q to [MinQuality, MaxQuality].
func Clamp(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

func step(x float64) int {
	// Anything past the full range moves to a bound anyway.
	if x > MaxQuality {
		return MaxQuality
	}
	return int(math.Floor(x)) + 1
}

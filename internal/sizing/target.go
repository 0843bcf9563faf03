package sizing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTarget is returned before any encode when a target cannot be met
// by construction.
var ErrInvalidTarget = errors.New("invalid target")

const (
	// DefaultTolerance is the band half-width used when callers give none.
	DefaultTolerance = 0.20
	// MaxTolerance bounds the band half-width.
	MaxTolerance = 0.5
)

// TargetSpec asks for an encoded size of Bytes, accepting anything within
// Bytes*(1±Tolerance).
type TargetSpec struct {
	Bytes     int
	Tolerance float64
}

// Validate rejects non-positive sizes and tolerances outside (0, MaxTolerance].
func (t TargetSpec) Validate() error {
	if t.Bytes <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidTarget, t.Bytes)
	}
	if math.IsNaN(t.Tolerance) || t.Tolerance <= 0 || t.Tolerance > MaxTolerance {
		return fmt.Errorf("%w: tolerance must be in (0, %.1f], got %v", ErrInvalidTarget, MaxTolerance, t.Tolerance)
	}
	return nil
}

// Band returns the inclusive acceptance range. For a valid spec
// 0 <= Lower <= Bytes <= Upper.
func (t TargetSpec) Band() Band {
	return Band{
		Lower: int(math.Floor(float64(t.Bytes) * (1 - t.Tolerance))),
		Upper: int(math.Floor(float64(t.Bytes) * (1 + t.Tolerance))),
	}
}

// Band is an inclusive byte-size range.
type Band struct {
	Lower int
	Upper int
}

// Contains reports whether size lies within the band.
func (b Band) Contains(size int) bool {
	return size >= b.Lower && size <= b.Upper
}

func (b Band) String() string {
	return fmt.Sprintf("[%d, %d]", b.Lower, b.Upper)
}

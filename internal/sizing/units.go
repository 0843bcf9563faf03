package sizing

import (
	"fmt"
	"math"
	"strings"

	units "github.com/docker/go-units"
)

const (
	KB = units.KiB
	MB = units.MiB
)

// ParseSize reads a human byte count such as "2000", "2000B", "100KB" or
// "1.5 MB". Units are 1024-based and case-insensitive; a bare number is bytes.
// Fractional byte counts are truncated.
func ParseSize(s string) (int, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidTarget)
	}

	n, err := units.RAMInBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse size %q: %v", ErrInvalidTarget, s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: size must be at least one byte, got %q", ErrInvalidTarget, s)
	}
	if n >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: size %q too large", ErrInvalidTarget, s)
	}
	return int(n), nil
}

// FormatSize renders n as "n B", "x.xx KB" or "x.xx MB".
func FormatSize(n int) string {
	switch {
	case n < KB:
		return fmt.Sprintf("%d B", n)
	case n < MB:
		return fmt.Sprintf("%.2f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	}
}

// ToleranceFromPercent converts a percentage in (0, 50] to a band half-width.
func ToleranceFromPercent(p float64) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p > MaxTolerance*100 {
		return 0, fmt.Errorf("%w: tolerance must be in (0, 50] percent, got %v", ErrInvalidTarget, p)
	}
	return p / 100, nil
}

package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2000", 2000, false},
		{"2000B", 2000, false},
		{"100KB", 102_400, false},
		{"100kb", 102_400, false},
		{" 1.5 MB ", 1_572_864, false},
		{"0.5KB", 512, false},
		{"1.5MiB", 1_572_864, false},
		{"1GB", 1 << 30, false},
		{"", 0, true},
		{"KB", 0, true},
		{"-5KB", 0, true},
		{"0", 0, true},
		{"0.4B", 0, true},
		{"ten", 0, true},
		{"100 KB extra", 0, true},
		{"5GB", 0, true},
		{"99999MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1023 B", FormatSize(1023))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "97.66 KB", FormatSize(100_000))
	assert.Equal(t, "1.50 MB", FormatSize(1_572_864))
}

func TestToleranceFromPercent(t *testing.T) {
	tol, err := ToleranceFromPercent(20)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, tol, 1e-12)

	tol, err = ToleranceFromPercent(50)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tol, 1e-12)

	for _, p := range []float64{0, -1, 50.5, 100} {
		_, err := ToleranceFromPercent(p)
		assert.ErrorIs(t, err, ErrInvalidTarget, "percent %v", p)
	}
}

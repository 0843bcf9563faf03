package quality

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linear returns a measurer whose size grows by perQuality bytes per level.
func linear(perQuality int) (Measurer, *[]int) {
	var tried []int
	return func(q int) (int, error) {
		tried = append(tried, q)
		return q * perQuality, nil
	}, &tried
}

func constant(size int) Measurer {
	return func(int) (int, error) { return size, nil }
}

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x ^ y) & 0xff),
				A: 255,
			})
		}
	}
	return img
}

func TestSearch_Converges(t *testing.T) {
	measure, tried := linear(1000)

	res, err := Search(measure, 50000, 0.2)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.False(t, res.Saturated)
	assert.Equal(t, 58, res.Quality)
	assert.Equal(t, 58000, res.Size)
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, []int{80, 73, 67, 62, 58}, *tried)
}

func TestSearch_StartsAtPriorAndReturnsImmediatelyInBand(t *testing.T) {
	measure, tried := linear(1000)

	res, err := Search(measure, 80000, 0.05)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, StartQuality, res.Quality)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []int{StartQuality}, *tried)
}

func TestSearch_SaturatesAtMinimum(t *testing.T) {
	res, err := Search(constant(1_000_000), 100_000, 0.2)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.True(t, res.Saturated)
	assert.Equal(t, MinQuality, res.Quality)
	// 80 -> 46 -> 12 -> 1, then no movement is possible.
	assert.Equal(t, 4, res.Iterations)
	assert.Less(t, res.Iterations, MaxIterations)
}

func TestSearch_SaturatesAtMaximum(t *testing.T) {
	res, err := Search(constant(10_000), 100_000, 0.2)
	require.NoError(t, err)

	assert.True(t, res.Saturated)
	assert.Equal(t, MaxQuality, res.Quality)
	assert.Equal(t, 2, res.Iterations)
}

func TestSearch_ExhaustsBudget(t *testing.T) {
	// A step response around quality 50 makes the search bounce forever.
	measure := func(q int) (int, error) {
		if q >= 50 {
			return 200_000, nil
		}
		return 50_000, nil
	}

	res, err := Search(measure, 100_000, 0.1)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.False(t, res.Saturated)
	assert.Equal(t, MaxIterations, res.Iterations)
	assert.GreaterOrEqual(t, res.Quality, MinQuality)
	assert.LessOrEqual(t, res.Quality, MaxQuality)
}

func TestSearch_MeasureError(t *testing.T) {
	boom := errors.New("encoder exploded")
	_, err := Search(func(int) (int, error) { return 0, boom }, 1000, 0.2)
	assert.ErrorIs(t, err, boom)
}

func TestSearch_ZeroSizeMovesUp(t *testing.T) {
	res, err := Search(constant(0), 1000, 0.2)
	require.NoError(t, err)
	assert.Equal(t, MaxQuality, res.Quality)
	assert.True(t, res.Saturated)
}

func TestSearch_BoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		base := rng.Intn(5000) + 1
		exp := 1 + rng.Float64()*2
		measure := func(q int) (int, error) {
			return int(float64(base) * 100 * math.Pow(float64(q)/100, exp)), nil
		}
		target := rng.Intn(400_000) + 1
		tol := 0.01 + rng.Float64()*0.49

		res, err := Search(measure, target, tol)
		require.NoError(t, err)
		require.LessOrEqual(t, res.Iterations, MaxIterations)
		require.GreaterOrEqual(t, res.Quality, MinQuality)
		require.LessOrEqual(t, res.Quality, MaxQuality)
	}
}

func TestNextQuality(t *testing.T) {
	tests := []struct {
		name    string
		current int
		size    int
		target  int
		want    int
	}{
		{"twice too large", 80, 200, 100, 69},
		{"slightly too large", 80, 110, 100, 78},
		{"twice too small", 80, 50, 100, 86},
		{"slightly too small", 80, 90, 100, 81},
		{"clamped low", 5, 10_000, 100, MinQuality},
		{"clamped high", 93, 10, 100, MaxQuality},
		{"zero size", 40, 0, 100, MaxQuality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextQuality(tt.current, tt.size, tt.target))
		})
	}
}

func TestSearch_RealJPEG(t *testing.T) {
	img := createTestImage(640, 480)
	measure := func(q int) (int, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return 0, err
		}
		return buf.Len(), nil
	}

	full, err := measure(95)
	require.NoError(t, err)

	res, err := Search(measure, full/2, 0.2)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Iterations, MaxIterations)
	assert.GreaterOrEqual(t, res.Quality, MinQuality)
}

func BenchmarkSearch(b *testing.B) {
	img := createTestImage(1920, 1080)
	measure := func(q int) (int, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return 0, err
		}
		return buf.Len(), nil
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Search(measure, 200*1024, 0.2)
	}
}

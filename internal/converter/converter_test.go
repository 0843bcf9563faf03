package converter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/sizing"
)

// createTestImage returns an encoded noisy image so that quality matters.
func createTestImage(t testing.TB, format codec.Format, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w * h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(x), uint8(y), 255})
		}
	}

	var buf bytes.Buffer
	switch format {
	case codec.FormatPNG:
		require.NoError(t, png.Encode(&buf, img))
	default:
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	c := New(codec.FormatWebP, 0.1)
	assert.Equal(t, codec.FormatWebP, c.Format())
	assert.InDelta(t, 0.1, c.Tolerance(), 1e-12)

	c = New(codec.FormatGIF, 0)
	assert.Equal(t, codec.FormatJPEG, c.Format())
	assert.Equal(t, sizing.DefaultTolerance, c.Tolerance())

	c = New(codec.FormatJPEG, 0.9)
	assert.Equal(t, sizing.DefaultTolerance, c.Tolerance())
}

func TestRequest_Mode(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"target", Request{TargetBytes: 1000}, modeFit},
		{"dimensions", Request{Width: 10, Height: 10}, modeResize},
		{"width only", Request{Width: 10}, modeResize},
		{"both", Request{TargetBytes: 1000, Width: 10, Height: 10}, modeFit},
		{"neither", Request{}, modeFit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Mode())
		})
	}
}

func TestConverter_Convert_InvalidInput(t *testing.T) {
	c := New(codec.FormatJPEG, 0.2)
	valid := createTestImage(t, codec.FormatJPEG, 32, 32)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"empty input", Request{TargetBytes: 100}, ErrEmptyInput},
		{"not an image", Request{Data: []byte("not an image at all"), TargetBytes: 100}, codec.ErrUnsupportedFormat},
		{"no operation", Request{Data: valid}, ErrNoOperation},
		{"zero width", Request{Data: valid, Height: 10}, sizing.ErrInvalidTarget},
		{"bad tolerance", Request{Data: valid, TargetBytes: 100, Tolerance: 0.8}, sizing.ErrInvalidTarget},
		{"lossless output", Request{Data: valid, TargetBytes: 100, Format: codec.FormatPNG}, codec.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert(tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConverter_Convert_Fit(t *testing.T) {
	c := New(codec.FormatJPEG, 0.2)
	data := createTestImage(t, codec.FormatPNG, 320, 240)

	out, err := c.Convert(Request{Data: data, TargetBytes: len(data) / 6})
	require.NoError(t, err)

	assert.Equal(t, codec.FormatJPEG, out.Format)
	assert.Equal(t, codec.FormatPNG, out.Substitution.From)
	assert.Equal(t, out.Bytes, len(out.Data))
	assert.NotZero(t, out.Trials)

	decoded, err := codec.Decode(out.Data)
	require.NoError(t, err)
	assert.Equal(t, codec.FormatJPEG, decoded.Format)
	assert.Equal(t, out.Width, decoded.Width)
}

func TestConverter_Convert_FitWebP(t *testing.T) {
	c := New(codec.FormatJPEG, 0.2)
	data := createTestImage(t, codec.FormatJPEG, 200, 150)

	out, err := c.Convert(Request{Data: data, TargetBytes: len(data) / 3, Format: codec.FormatWebP})
	require.NoError(t, err)

	// JPEG sources keep their format; the preference applies to substitutions.
	assert.Equal(t, codec.FormatJPEG, out.Format)

	pngData := createTestImage(t, codec.FormatPNG, 200, 150)
	out, err = c.Convert(Request{Data: pngData, TargetBytes: len(pngData) / 4, Format: codec.FormatWebP})
	require.NoError(t, err)
	assert.Equal(t, codec.FormatWebP, out.Format)
}

func TestConverter_Convert_ShortCircuit(t *testing.T) {
	c := New(codec.FormatJPEG, 0.2)
	data := createTestImage(t, codec.FormatJPEG, 64, 64)

	out, err := c.Convert(Request{Data: data, TargetBytes: len(data) * 2})
	require.NoError(t, err)
	assert.True(t, out.ShortCircuited)
	assert.Equal(t, 64, out.Width)
}

func TestConverter_Convert_Resize(t *testing.T) {
	c := New(codec.FormatJPEG, 0.2)

	tests := []struct {
		name   string
		format codec.Format
	}{
		{"jpeg", codec.FormatJPEG},
		{"png", codec.FormatPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := createTestImage(t, tt.format, 120, 80)
			out, err := c.Convert(Request{Data: data, Width: 60, Height: 40})
			require.NoError(t, err)
			assert.Equal(t, tt.format, out.Format)

			decoded, err := codec.Decode(out.Data)
			require.NoError(t, err)
			assert.Equal(t, 60, decoded.Width)
			assert.Equal(t, 40, decoded.Height)
		})
	}
}

// blockingCodec parks every Measure call until release is closed.
type blockingCodec struct {
	*codec.Adapter
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingCodec) Measure(img image.Image, format codec.Format, q int) (int, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Adapter.Measure(img, format, q)
}

func newBlockingConverter() (*Converter, *blockingCodec) {
	bc := &blockingCodec{
		Adapter: codec.NewAdapter(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := New(codec.FormatJPEG, 0.2)
	c.codec = bc
	return c, bc
}

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(New(codec.FormatJPEG, 0.2), 2)
	defer pool.Stop()

	data := createTestImage(t, codec.FormatJPEG, 100, 100)
	out, err := pool.Submit(context.Background(), Request{Data: data, Width: 50, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Width)

	_, err = pool.Submit(context.Background(), Request{Data: []byte("junk"), TargetBytes: 10})
	assert.ErrorIs(t, err, codec.ErrUnsupportedFormat)
}

func TestWorkerPool_Busy(t *testing.T) {
	c, bc := newBlockingConverter()
	pool := NewWorkerPool(c, 1)
	defer pool.Stop()

	data := createTestImage(t, codec.FormatPNG, 64, 64)
	req := Request{Data: data, TargetBytes: len(data) / 4}

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	submit := func() {
		defer wg.Done()
		_, err := pool.Submit(context.Background(), req)
		errs <- err
	}

	wg.Add(1)
	go submit()
	<-bc.started

	// One running, fill the queue.
	wg.Add(2)
	go submit()
	go submit()
	require.Eventually(t, func() bool {
		queued, _ := pool.Stats()
		return queued == cap(pool.jobs)
	}, time.Second, 5*time.Millisecond)

	_, err := pool.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrPoolBusy)

	_, active := pool.Stats()
	assert.Equal(t, 1, active)

	close(bc.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestWorkerPool_ContextCancelled(t *testing.T) {
	c, bc := newBlockingConverter()
	pool := NewWorkerPool(c, 1)
	defer func() {
		close(bc.release)
		pool.Stop()
	}()

	data := createTestImage(t, codec.FormatPNG, 64, 64)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := pool.Submit(ctx, Request{Data: data, TargetBytes: len(data) / 4})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_SubmitWithRetry(t *testing.T) {
	pool := NewWorkerPool(New(codec.FormatJPEG, 0.2), 1)
	defer pool.Stop()

	data := createTestImage(t, codec.FormatJPEG, 100, 100)
	out, err := pool.SubmitWithRetry(context.Background(), Request{Data: data, Width: 10, Height: 10}, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Height)
}

func TestWorkerPool_Stopped(t *testing.T) {
	pool := NewWorkerPool(New(codec.FormatJPEG, 0.2), 1)
	pool.Start()
	pool.Stop()
	pool.Stop()

	_, err := pool.Submit(context.Background(), Request{Data: []byte{1}, TargetBytes: 1})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func BenchmarkConverter_Fit(b *testing.B) {
	c := New(codec.FormatJPEG, 0.2)
	data := createTestImage(b, codec.FormatPNG, 320, 240)
	req := Request{Data: data, TargetBytes: len(data) / 6}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Convert(req); err != nil {
			b.Fatal(err)
		}
	}
}

package jpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func newYCbCr(w, h int, ratio image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), ratio)
	for i := range img.Y {
		img.Y[i] = uint8(i % 251)
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = uint8(96 + i%64)
	}
	return img
}

func TestEncode_YCbCr(t *testing.T) {
	ratios := []struct {
		name  string
		ratio image.YCbCrSubsampleRatio
	}{
		{"420", image.YCbCrSubsampleRatio420},
		{"422", image.YCbCrSubsampleRatio422},
		{"444", image.YCbCrSubsampleRatio444},
		{"411 falls back", image.YCbCrSubsampleRatio411},
	}

	for _, tt := range ratios {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, newYCbCr(801, 601, tt.ratio), 85); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			config, err := jpeg.DecodeConfig(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("Output is not valid JPEG: %v", err)
			}
			if config.Width != 801 || config.Height != 601 {
				t.Fatalf("Wrong dimensions: %dx%d", config.Width, config.Height)
			}
		})
	}
}

func TestEncode_RGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, 90); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Output is not valid JPEG: %v", err)
	}
}

func TestEncode_QualityClamped(t *testing.T) {
	img := newYCbCr(128, 128, image.YCbCrSubsampleRatio420)

	for _, q := range []int{-5, 0, 101, 500} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, q); err != nil {
			t.Errorf("Encode(quality=%d) failed: %v", q, err)
		}
	}
}

func TestEncode_QualityAffectsSize(t *testing.T) {
	img := newYCbCr(400, 300, image.YCbCrSubsampleRatio420)

	var low, high bytes.Buffer
	if err := Encode(&low, img, 10); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&high, img, 95); err != nil {
		t.Fatal(err)
	}
	if high.Len() <= low.Len() {
		t.Errorf("Quality 95 size %d <= Quality 10 size %d", high.Len(), low.Len())
	}
}

func BenchmarkEncode(b *testing.B) {
	img := newYCbCr(1920, 1080, image.YCbCrSubsampleRatio420)
	var buf bytes.Buffer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		Encode(&buf, img, 85)
	}
}

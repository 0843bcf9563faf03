// Package converter runs decode, size targeting and resizing for callers
// that hold raw image bytes.
package converter

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/sizing"
	"github.com/harliandi/sizefit/pkg/metrics"
)

var (
	// ErrEmptyInput is returned when a request carries no image bytes.
	ErrEmptyInput = errors.New("empty input")
	// ErrNoOperation is returned when a request asks for neither a byte
	// target nor dimensions.
	ErrNoOperation = errors.New("request needs a target size or dimensions")
)

const (
	modeFit    = "fit"
	modeResize = "resize"
)

// Request is one conversion. Exactly one of TargetBytes or Width/Height is
// expected; TargetBytes wins when both are set.
type Request struct {
	Data []byte

	TargetBytes int
	// Tolerance is the band half-width; zero uses the converter default.
	Tolerance float64
	// Format is the preferred lossy output; FormatUnknown uses the converter
	// default.
	Format codec.Format

	Width  int
	Height int
}

// Mode reports which engine entry point the request uses.
func (r Request) Mode() string {
	if r.TargetBytes != 0 || r.Width == 0 && r.Height == 0 {
		return modeFit
	}
	return modeResize
}

// Converter handles size-targeted and dimension resizes of encoded images.
type Converter struct {
	codec     sizing.Codec
	format    codec.Format
	tolerance float64
}

// New creates a Converter whose size-targeted output prefers format, with
// tolerance as the default band half-width.
func New(format codec.Format, tolerance float64) *Converter {
	if !format.SupportsQuality() {
		format = codec.FormatJPEG
	}
	if tolerance <= 0 || tolerance > sizing.MaxTolerance {
		tolerance = sizing.DefaultTolerance
	}
	return &Converter{
		codec:     codec.NewAdapter(),
		format:    format,
		tolerance: tolerance,
	}
}

// Format returns the default output format.
func (c *Converter) Format() codec.Format {
	return c.format
}

// Tolerance returns the default band half-width.
func (c *Converter) Tolerance() float64 {
	return c.tolerance
}

// Convert decodes req.Data and dispatches it to the engine.
func (c *Converter) Convert(req Request) (*sizing.Outcome, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyInput
	}

	mode := req.Mode()
	if mode == modeFit && req.TargetBytes == 0 {
		return nil, ErrNoOperation
	}

	start := time.Now()
	src, err := codec.Decode(req.Data)
	if err != nil {
		return nil, err
	}

	var out *sizing.Outcome
	switch mode {
	case modeFit:
		out, err = c.Fit(src, req.TargetBytes, req.Tolerance, req.Format)
	default:
		out, err = c.Resize(src, req.Width, req.Height)
	}
	if err != nil {
		return nil, err
	}

	verdict := "within"
	switch {
	case out.ShortCircuited:
		verdict = "short_circuit"
	case !out.WithinTolerance:
		verdict = "best_effort"
	}
	metrics.RecordRun(mode, verdict, time.Since(start).Seconds(), len(req.Data), out.Bytes)

	return out, nil
}

// Fit runs size targeting on an already decoded source.
func (c *Converter) Fit(src *codec.SourceImage, targetBytes int, tolerance float64, format codec.Format) (*sizing.Outcome, error) {
	if tolerance == 0 {
		tolerance = c.tolerance
	}
	if format == codec.FormatUnknown {
		format = c.format
	}
	if !format.SupportsQuality() {
		return nil, fmt.Errorf("%w: %s has no quality control", codec.ErrUnsupportedFormat, format)
	}

	engine := sizing.NewEngine(c.codec, format)
	out, err := engine.Fit(src, sizing.TargetSpec{Bytes: targetBytes, Tolerance: tolerance})
	if err != nil {
		log.Debug().Err(err).Int("target", targetBytes).Msg("size targeting failed")
		return nil, err
	}
	return out, nil
}

// Resize runs a plain dimension resize on an already decoded source.
func (c *Converter) Resize(src *codec.SourceImage, width, height int) (*sizing.Outcome, error) {
	return sizing.NewEngine(c.codec, c.format).Resize(src, width, height)
}

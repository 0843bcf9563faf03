// Package sizing resizes decoded images either to explicit dimensions or to
// an encoded byte size within a tolerance band.
package sizing

import (
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/pkg/metrics"
	"github.com/harliandi/sizefit/pkg/quality"
)

// ErrNoSource is returned when a run is started without a decoded image.
var ErrNoSource = errors.New("no source image")

// NudgeStep is the one-off quality correction applied when the
// dimension-adjusted encode still misses the band.
const NudgeStep = 5

// ResizeQuality is the quality used by the plain dimension resize path.
const ResizeQuality = 90

// Codec is the encode surface the engine needs. *codec.Adapter implements it.
type Codec interface {
	Measure(img image.Image, format codec.Format, quality int) (int, error)
	EncodeAtQuality(img image.Image, format codec.Format, quality, width, height int) ([]byte, error)
	EncodeLossless(img image.Image, format codec.Format) ([]byte, codec.Format, error)
	Resample(img image.Image, width, height int) image.Image
}

// Phase is a step of a size-targeting run.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseQualityOnly
	PhaseDimensionAdjust
	PhaseFinalNudge
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseQualityOnly:
		return "quality_only"
	case PhaseDimensionAdjust:
		return "dimension_adjust"
	case PhaseFinalNudge:
		return "final_nudge"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Outcome is the result of a run.
type Outcome struct {
	Data    []byte
	Bytes   int
	Width   int
	Height  int
	// Quality is the encoder quality of Data; zero when Data is lossless.
	Quality int
	Format  codec.Format

	// WithinTolerance reports whether Bytes landed inside the target band.
	// Always true for plain dimension resizes.
	WithinTolerance bool

	// Phase is the last working phase of the run: PhaseInit when the run
	// short-circuited, otherwise the phase that produced Data.
	Phase          Phase
	ShortCircuited bool
	Scaled         bool
	Scale          ScaleDecision
	Nudged         bool

	// Searches holds one entry per quality search performed.
	Searches []quality.Result
	// Trials counts every encode performed, searches included.
	Trials int

	Substitution codec.Substitution
}

// Engine runs size-targeting and dimension resizes. It keeps no state between
// runs and may be shared by concurrent callers.
type Engine struct {
	codec     Codec
	preferred codec.Format
}

// NewEngine returns an Engine encoding through c. preferred is the lossy
// format used when a source format has no quality control.
func NewEngine(c Codec, preferred codec.Format) *Engine {
	if !preferred.SupportsQuality() {
		preferred = codec.FormatJPEG
	}
	return &Engine{codec: c, preferred: preferred}
}

// fitRun is the state of one Fit call.
type fitRun struct {
	engine *Engine
	src    *codec.SourceImage
	target TargetSpec
	band   Band

	phase   Phase
	image   image.Image
	format  codec.Format
	width   int
	height  int
	quality int
	data    []byte

	out *Outcome
}

// Fit encodes src so that its size falls within target's band, or as close as
// a bounded number of trial encodes allows. Missing the band is reported in
// Outcome.WithinTolerance, not as an error.
func (e *Engine) Fit(src *codec.SourceImage, target TargetSpec) (*Outcome, error) {
	if src == nil || src.Image == nil {
		return nil, ErrNoSource
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	r := &fitRun{
		engine: e,
		src:    src,
		target: target,
		band:   target.Band(),
		phase:  PhaseInit,
		width:  src.Width,
		height: src.Height,
		out:    &Outcome{},
	}

	log.Debug().
		Str("format", src.Format.String()).
		Int("source_bytes", src.ByteSize).
		Int("target", target.Bytes).
		Stringer("band", r.band).
		Msg("size targeting started")

	last := PhaseInit
	for r.phase != PhaseDone {
		last = r.phase

		var next Phase
		var err error
		switch r.phase {
		case PhaseInit:
			next, err = r.init()
		case PhaseQualityOnly:
			next, err = r.qualityOnly()
		case PhaseDimensionAdjust:
			next, err = r.dimensionAdjust()
		case PhaseFinalNudge:
			next, err = r.finalNudge()
		}
		if err != nil {
			return nil, err
		}
		r.phase = next
	}

	out := r.finish(last)
	metrics.RecordSearch(last.String(), out.Trials)

	ev := log.Info()
	if !out.WithinTolerance {
		ev = log.Warn()
	}
	ev.Int("bytes", out.Bytes).
		Stringer("band", r.band).
		Int("quality", out.Quality).
		Int("width", out.Width).
		Int("height", out.Height).
		Int("trials", out.Trials).
		Stringer("phase", last).
		Bool("within_tolerance", out.WithinTolerance).
		Msg("size targeting finished")

	return out, nil
}

// init handles the short-circuit and prepares the image for quality search.
func (r *fitRun) init() (Phase, error) {
	if r.target.Bytes >= r.src.ByteSize {
		data, format, err := r.engine.codec.EncodeLossless(r.src.Image, r.src.Format)
		if err != nil {
			return PhaseDone, err
		}
		r.out.Trials++
		r.out.ShortCircuited = true
		r.out.Substitution = codec.Substitution{From: r.src.Format, To: format}
		r.data = data
		r.format = format
		if format.SupportsQuality() {
			r.quality = codec.MaxFidelityQuality
		}
		log.Debug().Str("format", format.String()).Msg("target not below source size, re-encoded without search")
		return PhaseDone, nil
	}

	n := codec.NormalizeForSizeTargeting(r.src, r.engine.preferred)
	r.image = n.Image
	r.format = n.Format
	r.out.Substitution = n.Substitution
	if n.Substitution.Substituted() {
		metrics.RecordSubstitution(n.Substitution.From.String(), n.Substitution.To.String())
		log.Debug().
			Str("from", n.Substitution.From.String()).
			Str("to", n.Substitution.To.String()).
			Bool("alpha_flattened", n.Substitution.AlphaFlattened).
			Msg("format substituted for size targeting")
	}
	return PhaseQualityOnly, nil
}

func (r *fitRun) qualityOnly() (Phase, error) {
	size, err := r.searchAndEncode()
	if err != nil {
		return PhaseDone, err
	}
	if r.band.Contains(size) {
		return PhaseDone, nil
	}
	return PhaseDimensionAdjust, nil
}

func (r *fitRun) dimensionAdjust() (Phase, error) {
	decision := Scale(r.width, r.height, len(r.data), r.band)
	log.Debug().
		Int("size", len(r.data)).
		Float64("factor", decision.Factor).
		Int("width", decision.Width).
		Int("height", decision.Height).
		Msg("quality alone missed the band, rescaling")

	r.image = r.engine.codec.Resample(r.image, decision.Width, decision.Height)
	r.width, r.height = decision.Width, decision.Height
	r.out.Scaled = true
	r.out.Scale = decision

	size, err := r.searchAndEncode()
	if err != nil {
		return PhaseDone, err
	}
	if r.band.Contains(size) {
		return PhaseDone, nil
	}
	return PhaseFinalNudge, nil
}

// finalNudge moves quality one fixed step towards the band and encodes once
// more. The result is kept whether or not it lands inside.
func (r *fitRun) finalNudge() (Phase, error) {
	q := r.quality + NudgeStep
	if len(r.data) > r.band.Upper {
		q = r.quality - NudgeStep
	}
	r.quality = quality.Clamp(q)

	data, err := r.engine.codec.EncodeAtQuality(r.image, r.format, r.quality, r.width, r.height)
	if err != nil {
		return PhaseDone, err
	}
	r.out.Trials++
	r.out.Nudged = true
	r.data = data
	return PhaseDone, nil
}

// searchAndEncode runs a quality search on the current image and encodes it
// at the chosen quality, returning the encoded size.
func (r *fitRun) searchAndEncode() (int, error) {
	img, format := r.image, r.format
	measure := func(q int) (int, error) {
		return r.engine.codec.Measure(img, format, q)
	}

	res, err := quality.Search(measure, r.target.Bytes, r.target.Tolerance)
	r.out.Trials += res.Iterations
	if err != nil {
		return 0, err
	}
	r.out.Searches = append(r.out.Searches, res)

	data, err := r.engine.codec.EncodeAtQuality(img, format, res.Quality, r.width, r.height)
	if err != nil {
		return 0, err
	}
	r.out.Trials++
	r.quality = res.Quality
	r.data = data
	return len(data), nil
}

func (r *fitRun) finish(last Phase) *Outcome {
	out := r.out
	out.Data = r.data
	out.Bytes = len(r.data)
	out.Width = r.width
	out.Height = r.height
	out.Quality = r.quality
	out.Format = r.format
	out.Phase = last
	out.WithinTolerance = r.band.Contains(out.Bytes)
	return out
}

// Resize resamples src to width x height and encodes it in the source
// format: lossy formats at ResizeQuality, lossless ones as PNG, and formats
// that cannot be written as JPEG.
func (e *Engine) Resize(src *codec.SourceImage, width, height int) (*Outcome, error) {
	if src == nil || src.Image == nil {
		return nil, ErrNoSource
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidTarget, width, height)
	}
	if width > codec.MaxImageWidth || height > codec.MaxImageHeight {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidTarget, width, height, codec.MaxImageWidth, codec.MaxImageHeight)
	}

	out := &Outcome{Width: width, Height: height, WithinTolerance: true, Trials: 1}

	var err error
	if src.Format.Lossless() {
		img := e.codec.Resample(src.Image, width, height)
		out.Data, out.Format, err = e.codec.EncodeLossless(img, src.Format)
	} else {
		out.Format = src.Format
		if !out.Format.SupportsQuality() {
			out.Format = codec.FormatJPEG
		}
		out.Quality = ResizeQuality
		out.Data, err = e.codec.EncodeAtQuality(src.Image, out.Format, ResizeQuality, width, height)
	}
	if err != nil {
		return nil, err
	}

	out.Bytes = len(out.Data)
	out.Substitution = codec.Substitution{From: src.Format, To: out.Format}

	log.Info().
		Int("from_width", src.Width).
		Int("from_height", src.Height).
		Int("width", width).
		Int("height", height).
		Int("bytes", out.Bytes).
		Str("format", out.Format.String()).
		Msg("resized")

	return out, nil
}

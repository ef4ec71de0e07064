// Package waveform turns uploaded audio bytes into the canonical analysis
// signal: mono, resampled to a fixed rate, peak normalised and trimmed of
// leading and trailing near-silence.
package waveform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/haivivi/voiceguard/go/pkg/audio/decode"
	"github.com/haivivi/voiceguard/go/pkg/audio/resampler"
)

// Sentinel errors.
var (
	// ErrDecode is returned when the bytes are not decodable audio.
	ErrDecode = errors.New("waveform: cannot decode audio")

	// ErrEmptyAudio is returned when decoding yields no samples.
	ErrEmptyAudio = errors.New("waveform: audio contains no samples")

	// ErrInvalidDuration is returned when the clip is shorter or longer than
	// the configured bounds. The concrete error is a *DurationError.
	ErrInvalidDuration = errors.New("waveform: invalid duration")
)

// DurationError reports a clip outside the accepted duration range.
type DurationError struct {
	Seconds float64
	Min     time.Duration
	Max     time.Duration
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("audio duration %.2fs is outside [%.2fs, %.2fs]",
		e.Seconds, e.Min.Seconds(), e.Max.Seconds())
}

func (e *DurationError) Unwrap() error { return ErrInvalidDuration }

// Waveform is a mono signal in [-1, 1] at SampleRate.
type Waveform struct {
	Samples    []float64
	SampleRate int

	// SourceDuration is the decoded clip length before resampling and
	// trimming, in seconds.
	SourceDuration float64
}

// Seconds returns the length of the (possibly trimmed) signal.
func (w *Waveform) Seconds() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Config configures a Normalizer.
type Config struct {
	// TargetRate is the output sample rate. Default 22050.
	TargetRate int

	// MinDuration and MaxDuration bound the accepted source duration,
	// both inclusive. Defaults 1s and 60s.
	MinDuration time.Duration
	MaxDuration time.Duration

	// DisableTrim keeps leading and trailing silence.
	DisableTrim bool

	// TopDB is the trim threshold in dB below the loudest frame. Default 30.
	TopDB float64

	// FrameLength and HopLength size the trim energy frames.
	// Defaults 2048 and 512.
	FrameLength int
	HopLength   int

	// Logger for debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the standard 22.05 kHz configuration.
func DefaultConfig() Config {
	return Config{
		TargetRate:  22050,
		MinDuration: time.Second,
		MaxDuration: 60 * time.Second,
		TopDB:       30,
		FrameLength: 2048,
		HopLength:   512,
	}
}

// Normalizer decodes and conditions audio. It holds no mutable state and is
// safe for concurrent use.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Normalizer. Zero fields in cfg take their defaults.
func New(cfg Config) *Normalizer {
	d := DefaultConfig()
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = d.TargetRate
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = d.MinDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = d.MaxDuration
	}
	if cfg.TopDB <= 0 {
		cfg.TopDB = d.TopDB
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = d.FrameLength
	}
	if cfg.HopLength <= 0 {
		cfg.HopLength = d.HopLength
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (n *Normalizer) Config() Config { return n.cfg }

// Normalize decodes raw and returns the conditioned waveform. ctx is checked
// between the expensive stages.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (*Waveform, error) {
	clip, err := decode.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if clip.Frames() == 0 {
		return nil, ErrEmptyAudio
	}

	secs := clip.Seconds()
	if secs < n.cfg.MinDuration.Seconds() || secs > n.cfg.MaxDuration.Seconds() {
		return nil, &DurationError{Seconds: secs, Min: n.cfg.MinDuration, Max: n.cfg.MaxDuration}
	}

	mono := clip.Mono()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	samples, err := resampler.Resample(mono, clip.SampleRate, n.cfg.TargetRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	PeakNormalize(samples)
	if !n.cfg.DisableTrim {
		samples = Trim(samples, n.cfg.TopDB, n.cfg.FrameLength, n.cfg.HopLength)
	}

	n.logger.Debug("audio normalized",
		"format", clip.Format,
		"source_rate", clip.SampleRate,
		"channels", clip.Channels,
		"source_seconds", secs,
		"samples", len(samples))

	return &Waveform{
		Samples:        samples,
		SampleRate:     n.cfg.TargetRate,
		SourceDuration: secs,
	}, nil
}

// PeakNormalize scales x in place so that max |x| is 1. All-zero input is
// left unchanged.
func PeakNormalize(x []float64) {
	var peak float64
	for _, v := range x {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return
	}
	inv := 1 / peak
	for i := range x {
		x[i] *= inv
	}
}

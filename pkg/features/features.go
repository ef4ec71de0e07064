// Package features turns a normalised waveform into the fixed-length vector
// consumed by the classifier.
//
// The vector is the concatenation of independent feature families in a fixed
// order, recorded once as a Schema:
//
//	spectral       10  centroid, rolloff, bandwidth, contrast, flatness (mean, std)
//	cepstral      120  40 MFCCs: mean, std, first-difference mean
//	prosodic        6  pitch mean/std/range, energy mean/std, zero-crossing rate
//	voice_quality   3  jitter, shimmer, harmonic-to-noise ratio
//	temporal        4  silence ratio, mean pause, onset strength mean/std
//	chroma         24  12 pitch classes: mean, std
//
// Every value is finite. Statistics over an empty set (no voiced frames, a
// single speech interval) are 0, and any NaN or Inf is replaced by 0.
package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/voiceguard/go/pkg/audio/fbank"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// Sentinel errors.
var (
	// ErrEmptyWaveform is returned for zero-length input.
	ErrEmptyWaveform = errors.New("features: empty waveform")

	// ErrSchemaMismatch is returned when a feature name list does not match
	// the extractor's schema.
	ErrSchemaMismatch = errors.New("features: schema mismatch")
)

// Family is one group of features computed from a shared Analysis.
type Family struct {
	Name    string
	Names   []string
	Compute func(a *Analysis) []float64
}

// Config configures an Extractor. Zero fields take their defaults.
type Config struct {
	// Spectral configures the STFT front end.
	Spectral fbank.Config

	// PitchMin and PitchMax bound the pitch tracker search in Hz.
	// Defaults 65 and 400.
	PitchMin float64
	PitchMax float64

	// VoicingThreshold is the minimum normalised autocorrelation peak for a
	// frame to count as voiced. Default 0.45.
	VoicingThreshold float64

	// SilenceTopDB is the speech/silence split threshold in dB below the
	// loudest frame. Default 30.
	SilenceTopDB float64

	// RolloffPercent is the spectral rolloff energy fraction. Default 0.85.
	RolloffPercent float64

	// ContrastBands and ContrastFMin shape the octave bands used for spectral
	// contrast. Defaults 6 and 200 Hz.
	ContrastBands int
	ContrastFMin  float64

	// HPSSKernel is the median filter length for harmonic/percussive
	// separation. Default 31.
	HPSSKernel int

	// Logger for debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Spectral:         fbank.DefaultConfig(),
		PitchMin:         65,
		PitchMax:         400,
		VoicingThreshold: 0.45,
		SilenceTopDB:     30,
		RolloffPercent:   0.85,
		ContrastBands:    6,
		ContrastFMin:     200,
		HPSSKernel:       31,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PitchMin <= 0 {
		c.PitchMin = d.PitchMin
	}
	if c.PitchMax <= c.PitchMin {
		c.PitchMax = max(d.PitchMax, c.PitchMin*2)
	}
	if c.VoicingThreshold <= 0 {
		c.VoicingThreshold = d.VoicingThreshold
	}
	if c.SilenceTopDB <= 0 {
		c.SilenceTopDB = d.SilenceTopDB
	}
	if c.RolloffPercent <= 0 || c.RolloffPercent >= 1 {
		c.RolloffPercent = d.RolloffPercent
	}
	if c.ContrastBands <= 0 {
		c.ContrastBands = d.ContrastBands
	}
	if c.ContrastFMin <= 0 {
		c.ContrastFMin = d.ContrastFMin
	}
	if c.HPSSKernel <= 0 {
		c.HPSSKernel = d.HPSSKernel
	}
	return c
}

// Extractor computes feature vectors. It is safe for concurrent use.
type Extractor struct {
	cfg      Config
	bank     *fbank.Extractor
	families []Family
	schema   Schema
	logger   *slog.Logger
}

// New creates an Extractor with the standard families.
func New(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	bank := fbank.New(cfg.Spectral)
	cfg.Spectral = bank.Config()

	e := &Extractor{cfg: cfg, bank: bank, logger: cfg.Logger}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.families = []Family{
		spectralFamily(),
		cepstralFamily(cfg.Spectral.NumMFCC),
		prosodicFamily(),
		voiceQualityFamily(),
		temporalFamily(),
		chromaFamily(),
	}
	e.schema = newSchema(e.families)
	return e
}

// Schema returns the vector layout.
func (e *Extractor) Schema() Schema { return e.schema }

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract computes the feature vector of w. ctx is checked between families.
func (e *Extractor) Extract(ctx context.Context, w *waveform.Waveform) (Vector, error) {
	if w == nil || len(w.Samples) == 0 {
		return nil, ErrEmptyWaveform
	}
	if w.SampleRate != e.cfg.Spectral.SampleRate {
		return nil, fmt.Errorf("features: waveform at %d Hz, extractor expects %d Hz",
			w.SampleRate, e.cfg.Spectral.SampleRate)
	}

	a := newAnalysis(e, w.Samples)
	vec := make(Vector, 0, e.schema.Len())
	clamped := 0
	for _, f := range e.families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub := f.Compute(a)
		if len(sub) != len(f.Names) {
			return nil, fmt.Errorf("features: family %s produced %d values, want %d",
				f.Name, len(sub), len(f.Names))
		}
		clamped += finite(sub)
		vec = append(vec, sub...)
	}
	if clamped > 0 {
		e.logger.Debug("non-finite features clamped to zero", "count", clamped)
	}
	return vec, nil
}

package features

import (
	"math"

	"github.com/haivivi/voiceguard/go/pkg/audio/fbank"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

// Analysis holds intermediate representations shared by feature families.
// Each one is computed on first use. An Analysis belongs to a single
// extraction and is not safe for concurrent use.
type Analysis struct {
	cfg     Config
	bank    *fbank.Extractor
	samples []float64

	spec      *fbank.Spectrogram
	logMel    [][]float64
	rms       []float64
	pitch     []float64
	intervals []Interval
	split     bool
}

// Interval is a [Start, End) range of samples.
type Interval struct {
	Start, End int
}

func newAnalysis(e *Extractor, samples []float64) *Analysis {
	return &Analysis{cfg: e.cfg, bank: e.bank, samples: samples}
}

// Samples returns the waveform samples.
func (a *Analysis) Samples() []float64 { return a.samples }

// SampleRate returns the analysis sample rate.
func (a *Analysis) SampleRate() int { return a.cfg.Spectral.SampleRate }

// Spectrogram returns the magnitude STFT.
func (a *Analysis) Spectrogram() *fbank.Spectrogram {
	if a.spec == nil {
		a.spec = a.bank.STFT(a.samples)
	}
	return a.spec
}

// LogMel returns the mel power spectrogram in dB, clipped 80 dB below its
// peak.
func (a *Analysis) LogMel() [][]float64 {
	if a.logMel == nil {
		a.logMel = fbank.PowerToDB(a.bank.Mel(a.Spectrogram()), 80)
	}
	return a.logMel
}

// RMS returns the per-frame RMS energy.
func (a *Analysis) RMS() []float64 {
	if a.rms == nil {
		a.rms = waveform.FrameRMS(a.samples, a.cfg.Spectral.FFTSize, a.cfg.Spectral.HopSize)
	}
	return a.rms
}

// Pitch returns the fundamental frequency of each voiced frame in order.
func (a *Analysis) Pitch() []float64 {
	if a.pitch == nil {
		a.pitch = trackPitch(a.samples, a.RMS(), a.SampleRate(), a.cfg)
	}
	return a.pitch
}

// Intervals returns the non-silent intervals: runs of frames within
// SilenceTopDB of the loudest frame. It is empty when the waveform is
// entirely silent.
func (a *Analysis) Intervals() []Interval {
	if a.split {
		return a.intervals
	}
	a.split = true

	rms := a.RMS()
	hop := a.cfg.Spectral.HopSize
	var peak float64
	for _, v := range rms {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return nil
	}

	start := -1
	for i := 0; i <= len(rms); i++ {
		loud := i < len(rms) && rms[i] > 0 && 20*math.Log10(rms[i]/peak) > -a.cfg.SilenceTopDB
		switch {
		case loud && start < 0:
			start = i
		case !loud && start >= 0:
			iv := Interval{Start: min(start*hop, len(a.samples)), End: min(i*hop, len(a.samples))}
			if iv.End > iv.Start {
				a.intervals = append(a.intervals, iv)
			}
			start = -1
		}
	}
	return a.intervals
}

// Package fbank computes short-time spectral representations of mono audio:
// magnitude spectrograms, mel filterbank energies, MFCCs and chroma.
//
// Default parameters follow the usual 22.05 kHz speech analysis convention:
//
//	SampleRate: 22050
//	FFTSize:    2048 (~93 ms)
//	HopSize:     512 (~23 ms)
//	Window:     Hann, frames centered with zero padding
//	NumMels:     128
//	NumMFCC:      40
//	FMin:          0
//	FMax:      11025 (Nyquist)
package fbank

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls spectral analysis parameters.
type Config struct {
	SampleRate int     // sample rate in Hz (default 22050)
	FFTSize    int     // FFT and window length (default 2048)
	HopSize    int     // hop between frames (default 512)
	NumMels    int     // mel bands (default 128)
	NumMFCC    int     // cepstral coefficients (default 40)
	FMin       float64 // lowest mel frequency (default 0)
	FMax       float64 // highest mel frequency (default Nyquist)
}

// DefaultConfig returns the 22.05 kHz analysis configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		FFTSize:    2048,
		HopSize:    512,
		NumMels:    128,
		NumMFCC:    40,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FFTSize <= 0 {
		c.FFTSize = d.FFTSize
	}
	if c.HopSize <= 0 {
		c.HopSize = d.HopSize
	}
	if c.NumMels <= 0 {
		c.NumMels = d.NumMels
	}
	if c.NumMFCC <= 0 {
		c.NumMFCC = d.NumMFCC
	}
	if c.NumMFCC > c.NumMels {
		c.NumMFCC = c.NumMels
	}
	if c.FMax <= 0 || c.FMax > float64(c.SampleRate)/2 {
		c.FMax = float64(c.SampleRate) / 2
	}
	return c
}

// Spectrogram is a magnitude STFT laid out as [frame][bin].
type Spectrogram struct {
	SampleRate int
	FFTSize    int
	HopSize    int
	Mag        [][]float64
}

// Frames returns the number of analysis frames.
func (s *Spectrogram) Frames() int { return len(s.Mag) }

// Bins returns the number of frequency bins per frame (FFTSize/2+1).
func (s *Spectrogram) Bins() int { return s.FFTSize/2 + 1 }

// Frequencies returns the center frequency in Hz of each bin.
func (s *Spectrogram) Frequencies() []float64 {
	f := make([]float64, s.Bins())
	for k := range f {
		f[k] = float64(k) * float64(s.SampleRate) / float64(s.FFTSize)
	}
	return f
}

// Power returns the squared magnitude spectrogram.
func (s *Spectrogram) Power() [][]float64 {
	out := make([][]float64, len(s.Mag))
	for t, row := range s.Mag {
		p := make([]float64, len(row))
		for k, v := range row {
			p[k] = v * v
		}
		out[t] = p
	}
	return out
}

// Extractor computes spectral representations for a fixed Config. It is safe
// for concurrent use; per-call FFT state is allocated inside each method.
type Extractor struct {
	cfg       Config
	window    []float64
	melBank   [][]float64
	dct       [][]float64
	chromaMap []int
}

// New creates an Extractor. Zero fields in cfg take their defaults.
func New(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	return &Extractor{
		cfg:       cfg,
		window:    hannWindow(cfg.FFTSize),
		melBank:   melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.FMin, cfg.FMax),
		dct:       dctMatrix(cfg.NumMFCC, cfg.NumMels),
		chromaMap: chromaBins(cfg.FFTSize, cfg.SampleRate),
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// STFT computes the centered, Hann-windowed magnitude spectrogram of x.
// An empty input yields a spectrogram with zero frames.
func (e *Extractor) STFT(x []float64) *Spectrogram {
	cfg := e.cfg
	spec := &Spectrogram{SampleRate: cfg.SampleRate, FFTSize: cfg.FFTSize, HopSize: cfg.HopSize}
	if len(x) == 0 {
		return spec
	}

	fft := fourier.NewFFT(cfg.FFTSize)
	frame := make([]float64, cfg.FFTSize)
	var coeffs []complex128

	for _, start := range FrameStarts(len(x), cfg.FFTSize, cfg.HopSize) {
		for i := range frame {
			j := start + i
			if j >= 0 && j < len(x) {
				frame[i] = x[j] * e.window[i]
			} else {
				frame[i] = 0
			}
		}
		coeffs = fft.Coefficients(coeffs, frame)
		mag := make([]float64, len(coeffs))
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}
		spec.Mag = append(spec.Mag, mag)
	}
	return spec
}

// FrameStarts returns the start index of each centered frame: the signal is
// conceptually padded with frameLen/2 zeros on both sides, giving
// 1 + n/hop frames. Starts may be negative.
func FrameStarts(n, frameLen, hop int) []int {
	if n <= 0 || hop <= 0 {
		return nil
	}
	count := 1 + n/hop
	starts := make([]int, count)
	for i := range starts {
		starts[i] = i*hop - frameLen/2
	}
	return starts
}

// Frames slices x into centered, zero-padded frames without windowing.
func Frames(x []float64, frameLen, hop int) [][]float64 {
	starts := FrameStarts(len(x), frameLen, hop)
	out := make([][]float64, len(starts))
	for i, start := range starts {
		f := make([]float64, frameLen)
		for j := range f {
			if k := start + j; k >= 0 && k < len(x) {
				f[j] = x[k]
			}
		}
		out[i] = f
	}
	return out
}

// Mel projects the power spectrogram onto the mel filterbank: [frame][mel].
func (e *Extractor) Mel(spec *Spectrogram) [][]float64 {
	out := make([][]float64, spec.Frames())
	for t, row := range spec.Mag {
		m := make([]float64, len(e.melBank))
		for b, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * row[k] * row[k]
				}
			}
			m[b] = sum
		}
		out[t] = m
	}
	return out
}

// PowerToDB converts power values to decibels relative to 1.0, floored at
// 1e-10 and clipped to topDB below the global maximum when topDB > 0.
func PowerToDB(power [][]float64, topDB float64) [][]float64 {
	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, row := range power {
		r := make([]float64, len(row))
		for i, v := range row {
			r[i] = 10 * math.Log10(math.Max(v, 1e-10))
			peak = math.Max(peak, r[i])
		}
		out[t] = r
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for i, v := range row {
				if v < floor {
					row[i] = floor
				}
			}
		}
	}
	return out
}

// MFCC computes orthonormal DCT-II cepstra of the log-mel spectrogram:
// [frame][NumMFCC].
func (e *Extractor) MFCC(spec *Spectrogram) [][]float64 {
	return e.Cepstrum(PowerToDB(e.Mel(spec), 80))
}

// Cepstrum applies the MFCC DCT to an already computed log-mel
// spectrogram.
func (e *Extractor) Cepstrum(logMel [][]float64) [][]float64 {
	out := make([][]float64, len(logMel))
	for t, row := range logMel {
		c := make([]float64, len(e.dct))
		for k, basis := range e.dct {
			var sum float64
			for n, b := range basis {
				sum += b * row[n]
			}
			c[k] = sum
		}
		out[t] = c
	}
	return out
}

// Chroma folds spectral energy into 12 pitch classes (C, C#, ... B) per
// frame, each frame scaled so that its largest class is 1.
func (e *Extractor) Chroma(spec *Spectrogram) [][]float64 {
	out := make([][]float64, spec.Frames())
	for t, row := range spec.Mag {
		c := make([]float64, 12)
		for k, pc := range e.chromaMap {
			if pc >= 0 {
				c[pc] += row[k] * row[k]
			}
		}
		var peak float64
		for _, v := range c {
			peak = math.Max(peak, v)
		}
		if peak > 0 {
			for i := range c {
				c[i] /= peak
			}
		}
		out[t] = c
	}
	return out
}

package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// trackPitch estimates the fundamental frequency of each frame with a
// window-corrected autocorrelation and returns the estimates of voiced frames
// in time order.
//
// A frame is voiced when its energy is within SilenceTopDB of the loudest
// frame and its normalised autocorrelation peak inside
// [1/PitchMax, 1/PitchMin] reaches VoicingThreshold.
func trackPitch(x, rms []float64, sr int, cfg Config) []float64 {
	frameLen := cfg.Spectral.FFTSize
	hop := cfg.Spectral.HopSize
	if len(x) == 0 {
		return []float64{}
	}

	var peakRMS float64
	for _, v := range rms {
		peakRMS = math.Max(peakRMS, v)
	}
	if peakRMS == 0 {
		return []float64{}
	}
	energyFloor := peakRMS * math.Pow(10, -cfg.SilenceTopDB/20)

	minLag := int(math.Floor(float64(sr) / cfg.PitchMax))
	maxLag := min(int(math.Ceil(float64(sr)/cfg.PitchMin)), frameLen/2)
	if minLag < 2 || minLag >= maxLag {
		return []float64{}
	}

	ac := newAutocorrelator(frameLen)
	frame := make([]float64, frameLen)
	pitch := make([]float64, 0, len(rms))

	for i := range rms {
		if rms[i] < energyFloor || rms[i] == 0 {
			continue
		}
		start := i*hop - frameLen/2
		var sum float64
		for j := range frame {
			v := 0.0
			if k := start + j; k >= 0 && k < len(x) {
				v = x[k]
			}
			frame[j] = v
			sum += v
		}
		m := sum / float64(frameLen)
		for j := range frame {
			frame[j] = (frame[j] - m) * ac.window[j]
		}

		r := ac.normalized(frame)
		if r == nil {
			continue
		}
		lag, strength := pickPeriod(r, minLag, maxLag)
		if lag <= 0 || strength < cfg.VoicingThreshold {
			continue
		}
		f0 := float64(sr) / lag
		if f0 < cfg.PitchMin || f0 > cfg.PitchMax {
			continue
		}
		pitch = append(pitch, f0)
	}
	return pitch
}

type autocorrelator struct {
	fft      *fourier.FFT
	window   []float64
	windowAC []float64
	buf      []float64
	coeffs   []complex128
	seq      []float64
}

func newAutocorrelator(frameLen int) *autocorrelator {
	n := 2 * frameLen
	a := &autocorrelator{
		fft:    fourier.NewFFT(n),
		window: make([]float64, frameLen),
		buf:    make([]float64, n),
	}
	for i := range a.window {
		a.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(frameLen))
	}
	w := a.raw(a.window)
	a.windowAC = make([]float64, len(w))
	for i := range w {
		a.windowAC[i] = w[i] / w[0]
	}
	return a
}

// raw returns the unnormalised autocorrelation of frame for lags
// [0, len(frame)). The returned slice is reused by the next call.
func (a *autocorrelator) raw(frame []float64) []float64 {
	clear(a.buf)
	copy(a.buf, frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.buf)
	for k, c := range a.coeffs {
		a.coeffs[k] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	a.seq = a.fft.Sequence(a.seq, a.coeffs)
	return a.seq[:len(frame)]
}

// normalized returns the autocorrelation divided by its zero lag and by the
// window's own autocorrelation, or nil for a zero-energy frame.
func (a *autocorrelator) normalized(frame []float64) []float64 {
	r := a.raw(frame)
	if r[0] <= 0 {
		return nil
	}
	r0 := r[0]
	for lag := range r {
		if a.windowAC[lag] > 1e-6 {
			r[lag] = r[lag] / r0 / a.windowAC[lag]
		} else {
			r[lag] = 0
		}
	}
	return r
}

// pickPeriod returns the interpolated lag of the shortest local maximum in
// [minLag, maxLag] whose strength is within 10% of the strongest one, along
// with that strength.
func pickPeriod(r []float64, minLag, maxLag int) (float64, float64) {
	maxLag = min(maxLag, len(r)-2)
	best := math.Inf(-1)
	var peaks []int
	for lag := max(minLag, 1); lag <= maxLag; lag++ {
		if r[lag] > r[lag-1] && r[lag] >= r[lag+1] {
			peaks = append(peaks, lag)
			best = math.Max(best, r[lag])
		}
	}
	if len(peaks) == 0 || best <= 0 {
		return 0, 0
	}
	for _, lag := range peaks {
		if r[lag] >= 0.9*best {
			return interpolate(r, lag), r[lag]
		}
	}
	return 0, 0
}

// interpolate refines a peak position with a parabola through its
// neighbours.
func interpolate(r []float64, i int) float64 {
	a, b, c := r[i-1], r[i], r[i+1]
	d := a - 2*b + c
	if d == 0 {
		return float64(i)
	}
	return float64(i) + 0.5*(a-c)/d
}

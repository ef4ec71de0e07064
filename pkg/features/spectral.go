package features

import (
	"math"
	"slices"
)

func spectralFamily() Family {
	return Family{
		Name: "spectral",
		Names: []string{
			"spectral_centroid_mean", "spectral_centroid_std",
			"spectral_rolloff_mean", "spectral_rolloff_std",
			"spectral_bandwidth_mean", "spectral_bandwidth_std",
			"spectral_contrast_mean", "spectral_contrast_std",
			"spectral_flatness_mean", "spectral_flatness_std",
		},
		Compute: computeSpectral,
	}
}

func computeSpectral(a *Analysis) []float64 {
	spec := a.Spectrogram()
	freqs := spec.Frequencies()
	n := spec.Frames()

	centroid := make([]float64, n)
	rolloff := make([]float64, n)
	bandwidth := make([]float64, n)
	flatness := make([]float64, n)
	for t, mag := range spec.Mag {
		centroid[t], bandwidth[t] = centroidBandwidth(mag, freqs)
		rolloff[t] = spectralRolloff(mag, freqs, a.cfg.RolloffPercent)
		flatness[t] = spectralFlatness(mag)
	}
	contrast := spectralContrast(spec.Mag, freqs, a.cfg.ContrastBands, a.cfg.ContrastFMin)

	out := make([]float64, 0, 10)
	for _, series := range [][]float64{centroid, rolloff, bandwidth, contrast, flatness} {
		m, s := meanStd(series)
		out = append(out, m, s)
	}
	return out
}

// centroidBandwidth returns the magnitude-weighted mean frequency and the
// weighted standard deviation around it. A silent frame yields zeros.
func centroidBandwidth(mag, freqs []float64) (float64, float64) {
	var total, weighted float64
	for k, m := range mag {
		total += m
		weighted += m * freqs[k]
	}
	if total == 0 {
		return 0, 0
	}
	c := weighted / total
	var spread float64
	for k, m := range mag {
		d := freqs[k] - c
		spread += m / total * d * d
	}
	return c, math.Sqrt(spread)
}

// spectralRolloff returns the lowest frequency below which pct of the
// frame's magnitude lies.
func spectralRolloff(mag, freqs []float64, pct float64) float64 {
	var total float64
	for _, m := range mag {
		total += m
	}
	if total == 0 {
		return 0
	}
	threshold := pct * total
	var cum float64
	for k, m := range mag {
		cum += m
		if cum >= threshold {
			return freqs[k]
		}
	}
	return freqs[len(freqs)-1]
}

// spectralFlatness is the ratio of the geometric to the arithmetic mean of
// the power spectrum, floored at 1e-10.
func spectralFlatness(mag []float64) float64 {
	const amin = 1e-10
	var logSum, sum float64
	for _, m := range mag {
		p := math.Max(m*m, amin)
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(mag))
	return math.Exp(logSum/n) / (sum / n)
}

// spectralContrast computes, for each octave band and frame, the dB
// difference between the band's peak and valley (means of the top and bottom
// 2% of bins). Bands are [0, fmin], then octaves above fmin, the last one
// running to Nyquist. The result is every band of every frame, flattened.
func spectralContrast(mags [][]float64, freqs []float64, nBands int, fmin float64) []float64 {
	const quantile = 0.02
	edges := make([]float64, nBands+2)
	edges[1] = fmin
	for i := 2; i < len(edges); i++ {
		edges[i] = edges[i-1] * 2
	}

	// Bin ranges per band; neighbouring bands share their edge bin.
	type band struct{ lo, hi int }
	bands := make([]band, 0, nBands+1)
	for b := 0; b < nBands+1; b++ {
		lo, hi := -1, -1
		for k, f := range freqs {
			if f >= edges[b] && f <= edges[b+1] {
				if lo < 0 {
					lo = k
				}
				hi = k
			}
		}
		if b > 0 && lo > 0 {
			lo--
		}
		if b == nBands {
			hi = len(freqs) - 1
		}
		if lo < 0 {
			continue
		}
		bands = append(bands, band{lo, hi + 1})
	}

	out := make([]float64, 0, len(mags)*len(bands))
	var sorted []float64
	for _, mag := range mags {
		for _, b := range bands {
			sorted = append(sorted[:0], mag[b.lo:b.hi]...)
			slices.Sort(sorted)
			idx := max(1, int(math.Round(quantile*float64(len(sorted)))))
			var valley, peak float64
			for i := 0; i < idx; i++ {
				valley += sorted[i]
				peak += sorted[len(sorted)-1-i]
			}
			valley /= float64(idx)
			peak /= float64(idx)
			out = append(out, toDB(peak)-toDB(valley))
		}
	}
	return out
}

func toDB(x float64) float64 {
	return 10 * math.Log10(math.Max(x, 1e-10))
}

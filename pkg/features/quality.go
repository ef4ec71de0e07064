package features

import "math"

func voiceQualityFamily() Family {
	return Family{
		Name:    "voice_quality",
		Names:   []string{"jitter", "shimmer", "hnr"},
		Compute: computeVoiceQuality,
	}
}

// computeVoiceQuality returns jitter (mean relative change between
// consecutive voiced pitch estimates), shimmer (the same over frame RMS) and
// the harmonic-to-noise ratio in dB.
func computeVoiceQuality(a *Analysis) []float64 {
	return []float64{
		relativeDiffMean(a.Pitch()),
		relativeDiffMean(a.RMS()),
		harmonicNoiseRatio(a.Spectrogram().Mag, a.cfg.HPSSKernel),
	}
}

// harmonicNoiseRatio separates the magnitude spectrogram into harmonic and
// percussive parts by median filtering across time and frequency with soft
// Wiener masks, and returns 10·log10 of their energy ratio. Energies are
// measured in the STFT domain, which is proportional to signal energy for a
// fixed window and hop.
func harmonicNoiseRatio(mag [][]float64, kernel int) float64 {
	const eps = 1e-10
	if len(mag) == 0 {
		return 0
	}
	harm := medianAcrossTime(mag, kernel)
	perc := medianAcrossFrequency(mag, kernel)

	var eh, ep float64
	for t, row := range mag {
		for k, s := range row {
			h2 := harm[t][k] * harm[t][k]
			p2 := perc[t][k] * perc[t][k]
			total := h2 + p2
			if total == 0 {
				continue
			}
			sh := s * h2 / total
			sp := s * p2 / total
			eh += sh * sh
			ep += sp * sp
		}
	}
	return 10 * math.Log10((eh+eps)/(ep+eps))
}

// medianAcrossTime filters each frequency bin along time.
func medianAcrossTime(mag [][]float64, kernel int) [][]float64 {
	frames, bins := len(mag), len(mag[0])
	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}
	series := make([]float64, frames)
	filtered := make([]float64, frames)
	scratch := make([]float64, 0, kernel+1)
	for k := 0; k < bins; k++ {
		for t := range series {
			series[t] = mag[t][k]
		}
		medianFilter(series, filtered, kernel, scratch)
		for t := range filtered {
			out[t][k] = filtered[t]
		}
	}
	return out
}

// medianAcrossFrequency filters each frame along frequency.
func medianAcrossFrequency(mag [][]float64, kernel int) [][]float64 {
	out := make([][]float64, len(mag))
	scratch := make([]float64, 0, kernel+1)
	for t, row := range mag {
		out[t] = make([]float64, len(row))
		medianFilter(row, out[t], kernel, scratch)
	}
	return out
}

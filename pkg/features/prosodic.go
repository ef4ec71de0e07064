package features

func prosodicFamily() Family {
	return Family{
		Name: "prosodic",
		Names: []string{
			"pitch_mean", "pitch_std", "pitch_range",
			"energy_mean", "energy_std",
			"zcr_mean",
		},
		Compute: computeProsodic,
	}
}

func computeProsodic(a *Analysis) []float64 {
	pitch := a.Pitch()
	pm, ps := meanStd(pitch)
	em, es := meanStd(a.RMS())
	zcr := zeroCrossingRate(a.samples, a.cfg.Spectral.FFTSize, a.cfg.Spectral.HopSize)
	return []float64{pm, ps, span(pitch), em, es, mean(zcr)}
}

// zeroCrossingRate returns, per centered frame, the fraction of adjacent
// sample pairs whose signs differ. Zero counts as positive.
func zeroCrossingRate(x []float64, frameLength, hop int) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	count := 1 + n/hop
	out := make([]float64, count)
	for i := range out {
		start := i*hop - frameLength/2
		var crossings int
		for j := max(start+1, 1); j < min(start+frameLength, n); j++ {
			if (x[j] < 0) != (x[j-1] < 0) {
				crossings++
			}
		}
		out[i] = float64(crossings) / float64(frameLength)
	}
	return out
}

package features

func temporalFamily() Family {
	return Family{
		Name: "temporal",
		Names: []string{
			"silence_ratio", "pause_mean",
			"onset_strength_mean", "onset_strength_std",
		},
		Compute: computeTemporal,
	}
}

// computeTemporal returns the silence ratio, the mean pause between speech
// intervals in seconds, and onset strength statistics.
func computeTemporal(a *Analysis) []float64 {
	intervals := a.Intervals()
	n := len(a.samples)

	silenceRatio := 1.0
	pause := 0.0
	if len(intervals) > 0 {
		speech := 0
		for _, iv := range intervals {
			speech += iv.End - iv.Start
		}
		silenceRatio = 1 - float64(speech)/float64(n)
		if len(intervals) > 1 {
			var gaps int
			for i := 1; i < len(intervals); i++ {
				gaps += intervals[i].Start - intervals[i-1].End
			}
			pause = float64(gaps) / float64(len(intervals)-1) / float64(a.SampleRate())
		}
	}

	om, osd := meanStd(onsetStrength(a))
	return []float64{silenceRatio, pause, om, osd}
}

// onsetStrength is the spectral flux of the log-mel spectrogram: the mean
// over mel bands of the positive change from the previous frame. The first
// frame has no predecessor and is 0.
func onsetStrength(a *Analysis) []float64 {
	db := a.LogMel()
	out := make([]float64, len(db))
	for t := 1; t < len(db); t++ {
		var sum float64
		for b, v := range db[t] {
			if d := v - db[t-1][b]; d > 0 {
				sum += d
			}
		}
		out[t] = sum / float64(len(db[t]))
	}
	return out
}

package features

var pitchClasses = [12]string{"C", "Cs", "D", "Ds", "E", "F", "Fs", "G", "Gs", "A", "As", "B"}

func chromaFamily() Family {
	names := make([]string, 0, 24)
	for _, pc := range pitchClasses {
		names = append(names, "chroma_"+pc+"_mean")
	}
	for _, pc := range pitchClasses {
		names = append(names, "chroma_"+pc+"_std")
	}
	return Family{
		Name:    "chroma",
		Names:   names,
		Compute: computeChroma,
	}
}

func computeChroma(a *Analysis) []float64 {
	chroma := a.bank.Chroma(a.Spectrogram())
	means := make([]float64, 12)
	stds := make([]float64, 12)
	for c := range 12 {
		means[c], stds[c] = meanStd(column(chroma, c))
	}
	return append(means, stds...)
}

package features

import "fmt"

func cepstralFamily(n int) Family {
	names := make([]string, 0, 3*n)
	for i := 1; i <= n; i++ {
		names = append(names, fmt.Sprintf("mfcc_%d_mean", i))
	}
	for i := 1; i <= n; i++ {
		names = append(names, fmt.Sprintf("mfcc_%d_std", i))
	}
	for i := 1; i <= n; i++ {
		names = append(names, fmt.Sprintf("mfcc_%d_delta_mean", i))
	}
	return Family{
		Name:  "cepstral",
		Names: names,
		Compute: func(a *Analysis) []float64 {
			return computeCepstral(a, n)
		},
	}
}

// computeCepstral returns the per-coefficient means, then standard
// deviations, then mean first differences of the MFCC matrix.
func computeCepstral(a *Analysis, n int) []float64 {
	mfcc := a.bank.Cepstrum(a.LogMel())
	means := make([]float64, n)
	stds := make([]float64, n)
	deltas := make([]float64, n)
	for c := 0; c < n; c++ {
		series := column(mfcc, c)
		means[c], stds[c] = meanStd(series)
		if len(series) > 1 {
			var sum float64
			for t := 1; t < len(series); t++ {
				sum += series[t] - series[t-1]
			}
			deltas[c] = sum / float64(len(series)-1)
		}
	}
	out := make([]float64, 0, 3*n)
	out = append(out, means...)
	out = append(out, stds...)
	return append(out, deltas...)
}

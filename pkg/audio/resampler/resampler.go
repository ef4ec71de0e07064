package resampler

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrInvalidRate is returned for non-positive sample rates.
var ErrInvalidRate = errors.New("resampler: invalid sample rate")

// Resample converts samples from srcRate to dstRate at high quality.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, srcRate, dstRate)
	}
	want := OutputLen(len(samples), srcRate, dstRate)
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	// Zero tail drains the filter so the last input samples reach the output.
	tail := srcRate / 10
	in := make([]float64, len(samples)+tail)
	copy(in, samples)

	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return fitLength(out, want), nil
}

// OutputLen returns the number of samples a conversion produces.
func OutputLen(n, srcRate, dstRate int) int {
	if srcRate <= 0 {
		return 0
	}
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}

func fitLength(out []float64, n int) []float64 {
	if len(out) >= n {
		return out[:n:n]
	}
	padded := make([]float64, n)
	copy(padded, out)
	return padded
}

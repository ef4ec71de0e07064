// Package resampler converts mono float signals between sample rates.
//
// It wraps a pure Go polyphase resampler (no CGO) at its high quality preset,
// which is band-limited and so suppresses aliasing when downsampling.
//
// The output length is always round(len(in) * dst / src) so that durations
// are preserved exactly, independent of the filter's group delay.
//
// Example usage:
//
//	out, err := resampler.Resample(mono, 44100, 22050)
//	if err != nil {
//	    return err
//	}
package resampler

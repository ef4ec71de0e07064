package waveform

import (
	"math"

	"github.com/haivivi/voiceguard/go/pkg/audio/fbank"
)

// FrameRMS returns the RMS energy of centered, zero-padded frames.
func FrameRMS(x []float64, frameLength, hopLength int) []float64 {
	frames := fbank.Frames(x, frameLength, hopLength)
	out := make([]float64, len(frames))
	for i, f := range frames {
		var sum float64
		for _, v := range f {
			sum += v * v
		}
		out[i] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}

// Trim removes leading and trailing frames quieter than topDB below the
// loudest frame. Internal pauses are kept. A signal with no frame above the
// threshold, including all-zero input, is returned unchanged.
func Trim(x []float64, topDB float64, frameLength, hopLength int) []float64 {
	start, end := TrimBounds(x, topDB, frameLength, hopLength)
	return x[start:end]
}

// TrimBounds returns the [start, end) sample range Trim keeps.
func TrimBounds(x []float64, topDB float64, frameLength, hopLength int) (int, int) {
	rms := FrameRMS(x, frameLength, hopLength)
	var peak float64
	for _, v := range rms {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return 0, len(x)
	}

	first, last := -1, -1
	for i, v := range rms {
		if v == 0 {
			continue
		}
		if 20*math.Log10(v/peak) > -topDB {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, len(x)
	}

	start := first * hopLength
	end := min(len(x), (last+1)*hopLength)
	if start >= end {
		return 0, len(x)
	}
	return start, end
}

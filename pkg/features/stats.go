package features

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// meanStd returns the population mean and standard deviation of x, or zeros
// for empty input.
func meanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(x, nil)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// span returns max(x) - min(x), or 0 for empty input.
func span(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x) - floats.Min(x)
}

// relativeDiffMean returns mean(|x[i+1]-x[i]| / (x[i] + 1e-10)), or 0 when
// fewer than two values exist.
func relativeDiffMean(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(x); i++ {
		sum += math.Abs(x[i]-x[i-1]) / (x[i-1] + 1e-10)
	}
	return sum / float64(len(x)-1)
}

// column returns row[i] for every row.
func column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for t, r := range rows {
		out[t] = r[i]
	}
	return out
}

// finite replaces NaN and ±Inf with 0 in place and reports how many values
// were replaced.
func finite(x []float64) int {
	n := 0
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
			n++
		}
	}
	return n
}

// window is a multiset of values kept in ascending order.
type window []float64

func (w window) add(v float64) window {
	i, _ := slices.BinarySearch(w, v)
	return slices.Insert(w, i, v)
}

func (w window) remove(v float64) window {
	if i, ok := slices.BinarySearch(w, v); ok {
		return slices.Delete(w, i, i+1)
	}
	return w
}

// median returns the middle value, or the mean of the two middle values
// for an even count.
func (w window) median() float64 {
	n := len(w)
	if n%2 == 1 {
		return w[n/2]
	}
	return (w[n/2-1] + w[n/2]) / 2
}

// medianFilter writes the centered running median of x into dst. The window
// shrinks at the edges instead of padding, and slides by one removal and one
// insertion per output. scratch is reused as window storage.
func medianFilter(x, dst []float64, kernel int, scratch []float64) {
	half := kernel / 2
	w := window(scratch[:0])
	next := 0
	for i := range x {
		if out := i - half - 1; out >= 0 {
			w = w.remove(x[out])
		}
		for ; next < len(x) && next <= i+half; next++ {
			w = w.add(x[next])
		}
		dst[i] = w.median()
	}
}

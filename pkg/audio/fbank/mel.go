package fbank

import "math"

// hannWindow generates a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank creates area-normalised triangular mel filters evaluated at
// the FFT bin center frequencies. Returns [numMels][fftSize/2+1].
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	// numMels + 2 equally spaced mel points
	edges := make([]float64, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range edges {
		edges[i] = melToHz(lowMel + float64(i)*step)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (right - left)
		filter := make([]float64, halfFFT)
		for k := range filter {
			f := float64(k) * float64(sampleRate) / float64(fftSize)
			var w float64
			switch {
			case f > left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f < right:
				w = (right - f) / (right - center)
			}
			filter[k] = w * norm
		}
		bank[m] = filter
	}
	return bank
}

// dctMatrix returns the orthonormal DCT-II basis as [numCoeffs][n].
func dctMatrix(numCoeffs, n int) [][]float64 {
	out := make([][]float64, numCoeffs)
	for k := range out {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		row := make([]float64, n)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		out[k] = row
	}
	return out
}

// chromaBins maps each FFT bin to a pitch class (0 = C), or -1 for bins
// below C1 where pitch classes are not resolvable.
func chromaBins(fftSize, sampleRate int) []int {
	const c1 = 32.703
	out := make([]int, fftSize/2+1)
	for k := range out {
		f := float64(k) * float64(sampleRate) / float64(fftSize)
		if f < c1 {
			out[k] = -1
			continue
		}
		midi := int(math.Round(12*math.Log2(f/440) + 69))
		out[k] = ((midi % 12) + 12) % 12
	}
	return out
}

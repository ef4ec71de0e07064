package classifier

import "fmt"

// Scaler standardises features with per-feature mean and scale fitted at
// training time: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean" yaml:"mean" msgpack:"mean"`
	Scale []float64 `json:"scale" yaml:"scale" msgpack:"scale"`
}

// IdentityScaler returns a scaler that leaves n features unchanged.
func IdentityScaler(n int) Scaler {
	s := Scaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

// Dim returns the number of features the scaler expects.
func (s Scaler) Dim() int { return len(s.Mean) }

func (s Scaler) validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("%w: empty scaler", ErrInvalidBundle)
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("%w: scaler has %d means and %d scales", ErrInvalidBundle, len(s.Mean), len(s.Scale))
	}
	return nil
}

// Transform returns the scaled copy of x. A zero scale (constant feature at
// training time) is treated as 1.
func (s Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, &DimensionError{Got: len(x), Want: len(s.Mean)}
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

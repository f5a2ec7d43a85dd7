package report

import "math"

// Stats describes the spread of a sample.
type Stats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`     // sample standard deviation
	ZScore float64 `json:"z_score"` // mean of (x-mean)/std
	Sharpe float64 `json:"sharpe"`  // mean/std
}

// Dispersion computes sample statistics. Std, ZScore and Sharpe stay zero when
// fewer than two values are given or all values are equal.
func Dispersion(values []float64) Stats {
	s := Stats{N: len(values)}
	if s.N == 0 {
		return s
	}
	for _, v := range values {
		s.Mean += v
	}
	s.Mean /= float64(s.N)
	if s.N < 2 {
		return s
	}

	var ss float64
	for _, v := range values {
		ss += (v - s.Mean) * (v - s.Mean)
	}
	s.Std = math.Sqrt(ss / float64(s.N-1))
	if s.Std == 0 {
		return s
	}
	for _, v := range values {
		s.ZScore += (v - s.Mean) / s.Std
	}
	s.ZScore /= float64(s.N)
	s.Sharpe = s.Mean / s.Std
	return s
}

package signals

import "math"

// RSI computes Wilder's relative strength index. The first window values are NaN.
func RSI(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window < 1 || len(closes) <= window {
		return out
	}
	alpha := 1 / float64(window)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := math.Max(change, 0), math.Max(-change, 0)
		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}
		if i < window {
			continue
		}
		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 50
		case avgLoss == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+avgGain/avgLoss)
		}
	}
	return out
}

// StochasticRSI scales RSI into [0,1] against its own rolling min/max over
// window. Rows without a full window, or with a flat RSI range, are NaN.
func StochasticRSI(closes []float64, window int) []float64 {
	rsi := RSI(closes, window)
	out := nanSlice(len(closes))
	for i := range rsi {
		if i+1 < window {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		valid := true
		for _, v := range rsi[i+1-window : i+1] {
			if math.IsNaN(v) {
				valid = false
				break
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if !valid || hi == lo {
			continue
		}
		out[i] = (rsi[i] - lo) / (hi - lo)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

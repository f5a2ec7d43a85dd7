// Package util provides common utility functions for price calculations.
package util

import "math"

// StrikeIncrement is the spacing between listed index option strikes.
const StrikeIncrement = 5.0

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// RoundToStrike rounds x to the nearest strike increment.
// Ties go to the even multiple, so 4012.5 rounds to 4010 and 4017.5 to 4020.
func RoundToStrike(x float64) float64 {
	return math.RoundToEven(x/StrikeIncrement) * StrikeIncrement
}

// IsStrikeMultiple reports whether x sits on the strike grid.
func IsStrikeMultiple(x float64) bool {
	return math.Abs(x-RoundToStrike(x)) < 1e-9
}

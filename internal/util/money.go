package util

import "math"

// Round2 rounds a monetary amount to 2 decimal places. Accumulation keeps
// full precision; rounding happens only at output boundaries.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds a rating average to 1 decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

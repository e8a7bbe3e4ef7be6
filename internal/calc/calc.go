// Package calc holds the zero-safe arithmetic shared by every metric
// extractor and aggregator.
package calc

import "math"

// Pct returns n/d*100, or exactly 0 when d is 0. Every rate in the engine
// goes through this so a zero denominator can never surface as NaN or Inf.
func Pct(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d * 100
}

// Ratio returns n/d, or exactly 0 when d is 0. Used for cost metrics
// (spend per lead, spend per acquisition).
func Ratio(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

// Round2 rounds to two decimal places, matching how rates are reported.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

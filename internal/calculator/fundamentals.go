package calculator

import "math"

// FirstNonZero returns the first usable non-zero candidate. Later candidates
// are fallbacks only; a negative first value is returned as is.
func FirstNonZero(candidates ...float64) (float64, bool) {
	for _, v := range candidates {
		if v != 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return v, true
		}
	}
	return 0, false
}

// MarketCapMillions normalizes a raw market capitalization to whole millions.
func MarketCapMillions(raw float64) (int64, bool) {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	return int64(math.Floor(raw / 1_000_000)), true
}

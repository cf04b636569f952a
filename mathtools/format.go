package mathtools

import (
	"math"
	"strconv"
)

// formatNumber renders a value the way a student would write it: no
// trailing zeros, no exponent for ordinary magnitudes, never "-0".
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e15 || abs < 1e-6 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fixed renders v with the given number of decimals, never as "-0.000".
func fixed(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if s[0] == '-' {
		allZero := true
		for _, r := range s[1:] {
			if r != '0' && r != '.' {
				allZero = false
				break
			}
		}
		if allZero {
			return s[1:]
		}
	}
	return s
}

// neg returns -v without producing a negative zero.
func neg(v float64) float64 {
	return 0 - v
}

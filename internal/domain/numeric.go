package domain

import (
	"math"
	"strconv"
	"strings"
)

// NumOrZero collapses NaN and infinities to zero so they can never reach a
// persisted report field.
func NumOrZero(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// NumOrDefault substitutes fallback when the guarded value collapses to zero.
// Cost-per-X metrics pass spend as the fallback; revenue ratios pass zero.
func NumOrDefault(value, fallback float64) float64 {
	if v := NumOrZero(value); v != 0 {
		return v
	}
	return NumOrZero(fallback)
}

// SafeDiv divides num by den and substitutes fallback whenever the quotient
// is zero, NaN, or infinite.
func SafeDiv(num, den, fallback float64) float64 {
	if den == 0 {
		return NumOrZero(fallback)
	}
	return NumOrDefault(num/den, fallback)
}

// Fixed3 truncates to three decimal places against the raw numeric string
// representation. Truncation, not rounding: 1.2345 -> 1.234, -1.2399 -> -1.239.
func Fixed3(value float64) float64 {
	return fixed(3, value)
}

func fixed(places int, value float64) float64 {
	v := NumOrZero(value)
	text := strconv.FormatFloat(v, 'f', -1, 64)

	dot := strings.IndexByte(text, '.')
	if dot >= 0 {
		end := dot + 1 + places
		if end > len(text) {
			end = len(text)
		}
		text = text[:end]
	}

	out, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return out
}

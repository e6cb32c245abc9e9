package utils

import (
	"math"
)

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampSlice clamps every element of values into [lower, upper] in place.
func ClampSlice(values []float64, lower, upper float64) {
	for i := range values {
		if values[i] < lower {
			values[i] = lower
		} else if values[i] > upper {
			values[i] = upper
		}
	}
}

// AllFinite reports whether every element is a finite number.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

package stats

import (
	"math"
	"slices"
	"strconv"
)

// CalculateMedianDiscrete finds the median value in a slice of integers.
func CalculateMedianDiscrete(values []int) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := slices.Clone(values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return float64(temp[n/2])
	}
	return float64(temp[n/2-1]+temp[n/2]) / 2.0
}

// Mean of values, 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Round1 rounds half away from zero to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent is part/whole×100, or false when whole is zero.
func Percent(part, whole int) (float64, bool) {
	if whole <= 0 {
		return 0, false
	}
	return float64(part) / float64(whole) * 100, true
}

// FormatOneDecimal renders v with one decimal, dropping a trailing ".0" (75.0 → "75", 66.7 → "66.7").
func FormatOneDecimal(v float64) string {
	return strconv.FormatFloat(Round1(v), 'f', -1, 64)
}

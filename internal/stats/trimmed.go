// Package stats holds the small numeric helpers shared by the ingestion jobs.
package stats

import (
	"math"
	"sort"
)

// TrimmedMean sorts the values and, when there are more than ten, drops
// max(1, n/20) from each end before averaging. Ten or fewer values are
// averaged as-is. It reports false for an empty input.
func TrimmedMean(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	trim := 0
	if n > 10 {
		trim = max(1, n/20)
	}
	kept := sorted[trim : n-trim]

	var sum float64
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept)), true
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

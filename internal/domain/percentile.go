package domain

import (
	"math"
	"sort"
)

// Percentile computes the interpolated percentile of sample at the given
// rank using the closest-ranks linear interpolation method: the fractional
// index i = (rank/100) * (n-1) selects either an exact element or a linear
// blend of the two elements surrounding it.
//
// The boolean result is false only when the sample is empty. The input slice
// is never mutated; sorting happens on an internal copy, which also makes the
// result independent of input ordering.
//
// Callers are expected to pass finite values and a rank in [0, 100]; ranks 0
// and 100 need no special casing because the floor and ceiling indices
// coincide at the extremes.
func Percentile(sample []float64, rank float64) (float64, bool) {
	if len(sample) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	idx := (rank / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper {
		return sorted[lower], true
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower]), true
}

// Percentiles computes the interpolated percentile for every requested rank,
// keyed by the rank itself. Duplicate ranks simply overwrite the same key.
// Returns nil when the sample is empty.
func Percentiles(sample []float64, ranks []float64) map[float64]float64 {
	if len(sample) == 0 {
		return nil
	}

	out := make(map[float64]float64, len(ranks))
	for _, rank := range ranks {
		if v, ok := Percentile(sample, rank); ok {
			out[rank] = v
		}
	}
	return out
}

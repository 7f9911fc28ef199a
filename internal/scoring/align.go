package scoring

import "math"

// Pair links a reference frame index to a comparison frame index.
type Pair struct {
	Reference  int `json:"reference"`
	Comparison int `json:"comparison"`
}

// Align resamples two sequences of lengths refLen and cmpLen onto
// min(refLen, cmpLen) evenly spaced pairs. Both ends are always paired with
// each other. Alignment is linear; no time warping is attempted.
func Align(refLen, cmpLen int) []Pair {
	n := min(refLen, cmpLen)
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []Pair{{0, 0}}
	}

	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{
			Reference:  resampleIndex(i, n, refLen),
			Comparison: resampleIndex(i, n, cmpLen),
		}
	}
	return pairs
}

func resampleIndex(i, n, length int) int {
	idx := int(math.Round(float64(i) * float64(length-1) / float64(n-1)))
	return max(0, min(length-1, idx))
}

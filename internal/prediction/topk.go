package prediction

import (
	"cmp"
	"math"
	"slices"
)

type scoredClass struct {
	index int
	prob  float64
}

// SelectTopK returns the k most probable classes of v, ordered by descending
// probability with ties broken by ascending class index. k larger than the
// vector is clamped.
func SelectTopK(v Vector, k int, labels LabelLookup) ([]RankedPrediction, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}

	scored := make([]scoredClass, len(v))
	for i, p := range v {
		if math.IsNaN(p) {
			p = math.Inf(-1)
		}
		scored[i] = scoredClass{index: i, prob: p}
	}
	slices.SortFunc(scored, compareScored)

	k = min(k, len(scored))
	out := make([]RankedPrediction, k)
	for i, s := range scored[:k] {
		out[i] = RankedPrediction{
			Index:      s.index,
			Label:      labels.Label(s.index),
			Confidence: ToPercent(v[s.index]),
		}
	}
	return out, nil
}

func compareScored(a, b scoredClass) int {
	if c := cmp.Compare(b.prob, a.prob); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

// ToPercent scales a probability to percent rounded to two decimals.
func ToPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Round(p*10000) / 100
}

package metrics

import (
	"math"

	"github.com/leaflens/leaflens/internal/prediction"
)

// ConfidenceSummary describes a set of top-disease confidences (percent).
type ConfidenceSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	// Low and High bound the 95% confidence interval of the mean.
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SummarizeConfidence computes count, mean, sample standard deviation and a
// normal-approximation 95% interval. Fewer than two values give a zero-width
// interval.
func SummarizeConfidence(values []float64) ConfidenceSummary {
	s := ConfidenceSummary{Count: len(values)}
	if s.Count == 0 {
		return s
	}

	for _, v := range values {
		s.Mean += v
	}
	s.Mean /= float64(s.Count)
	s.Low, s.High = s.Mean, s.Mean
	if s.Count < 2 {
		return s
	}

	var sumSq float64
	for _, v := range values {
		d := v - s.Mean
		sumSq += d * d
	}
	s.StdDev = math.Sqrt(sumSq / float64(s.Count-1))
	margin := 1.96 * s.StdDev / math.Sqrt(float64(s.Count))
	s.Low, s.High = s.Mean-margin, s.Mean+margin
	return s
}

// OutcomeShares returns the fraction of each filter outcome. A high fallback
// share means the species and disease models often disagree.
func OutcomeShares(outcomes []prediction.FilterOutcome) map[prediction.FilterOutcome]float64 {
	shares := make(map[prediction.FilterOutcome]float64)
	if len(outcomes) == 0 {
		return shares
	}
	for _, o := range outcomes {
		shares[o]++
	}
	for o := range shares {
		shares[o] /= float64(len(outcomes))
	}
	return shares
}

package prediction

import "fmt"

// Aggregate returns the elementwise mean of vectors. All vectors must have
// the same length; a single vector is returned as an unchanged copy.
func Aggregate(vectors []Vector) (Vector, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyBatch
	}

	n := len(vectors[0])
	for i, v := range vectors[1:] {
		if len(v) != n {
			return nil, fmt.Errorf("%w: vector %d has %d classes, vector 0 has %d",
				ErrDimensionMismatch, i+1, len(v), n)
		}
	}

	// Running mean; each component stays within [min, max] of its column.
	mean := make(Vector, n)
	copy(mean, vectors[0])
	for i, v := range vectors[1:] {
		count := float64(i + 2)
		for j, p := range v {
			mean[j] += (p - mean[j]) / count
		}
	}
	return mean, nil
}

package classifier

import (
	"context"
	"errors"
	"slices"

	"github.com/leaflens/leaflens/internal/prediction"
)

// Static returns a fixed probability vector for every image.
type Static struct {
	probabilities prediction.Vector
}

// NewStatic creates a Static classifier.
func NewStatic(probabilities []float64) (*Static, error) {
	if len(probabilities) == 0 {
		return nil, errors.New("static classifier needs at least one probability")
	}
	return &Static{probabilities: slices.Clone(probabilities)}, nil
}

// Classify implements prediction.Classifier.
func (s *Static) Classify(ctx context.Context, images []prediction.Image) ([]prediction.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]prediction.Vector, len(images))
	for i := range images {
		out[i] = slices.Clone(s.probabilities)
	}
	return out, nil
}

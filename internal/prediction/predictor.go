package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer is notified after every PredictBatch call.
type Observer interface {
	ObservePrediction(result *BatchInferenceResult, elapsed time.Duration, err error)
}

// Predictor runs both classifiers on a batch and feeds their output through
// the Pipeline.
type Predictor struct {
	species  Classifier
	disease  Classifier
	pipeline *Pipeline
	logger   *slog.Logger
	observer Observer
}

// PredictorOption configures a Predictor.
type PredictorOption func(*Predictor)

// WithLogger sets the Predictor's logger.
func WithLogger(l *slog.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) PredictorOption {
	return func(p *Predictor) {
		p.observer = o
	}
}

// NewPredictor creates a Predictor.
func NewPredictor(species, disease Classifier, pipeline *Pipeline, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		species:  species,
		disease:  disease,
		pipeline: pipeline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PredictBatch classifies images with both classifiers concurrently and
// returns the species-conditioned result.
func (p *Predictor) PredictBatch(ctx context.Context, images []Image, topKSpecies, topKDisease int) (*BatchInferenceResult, error) {
	start := time.Now()
	result, err := p.predict(ctx, images, topKSpecies, topKDisease)
	if p.observer != nil {
		p.observer.ObservePrediction(result, time.Since(start), err)
	}
	return result, err
}

func (p *Predictor) predict(ctx context.Context, images []Image, topKSpecies, topKDisease int) (*BatchInferenceResult, error) {
	if len(images) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := checkK(topKSpecies); err != nil {
		return nil, fmt.Errorf("topKSpecies: %w", err)
	}
	if err := checkK(topKDisease); err != nil {
		return nil, fmt.Errorf("topKDisease: %w", err)
	}

	var speciesVecs, diseaseVecs []Vector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecs, err := classify(gctx, p.species, images)
		if err != nil {
			return fmt.Errorf("species classifier: %w", err)
		}
		speciesVecs = vecs
		return nil
	})
	g.Go(func() error {
		vecs, err := classify(gctx, p.disease, images)
		if err != nil {
			return fmt.Errorf("disease classifier: %w", err)
		}
		diseaseVecs = vecs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := p.pipeline.Run(speciesVecs, diseaseVecs, topKSpecies, topKDisease)
	if err != nil {
		return nil, err
	}

	attrs := []any{
		"images", len(images),
		"outcome", result.Filter.Outcome,
		"species_key", result.Filter.SpeciesKey,
	}
	if result.Filter.Outcome == OutcomeFallback {
		p.logger.Info("no disease candidate matched the predicted species; returning unfiltered diseases", attrs...)
	} else {
		p.logger.Debug("batch predicted", attrs...)
	}
	return result, nil
}

func classify(ctx context.Context, c Classifier, images []Image) ([]Vector, error) {
	vecs, err := c.Classify(ctx, images)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(images) {
		return nil, fmt.Errorf("%w: %d images, %d vectors", ErrBatchSize, len(images), len(vecs))
	}
	return vecs, nil
}

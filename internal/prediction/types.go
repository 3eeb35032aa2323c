// Package prediction turns raw per-image class probabilities from the species
// and disease classifiers into one species-conditioned answer per batch.
//
// The pipeline is pure in-memory arithmetic over immutable lookup tables;
// only the Predictor talks to the (slow, external) classifiers.
package prediction

import (
	"context"
	"errors"
	"fmt"

	"github.com/leaflens/leaflens/internal/catalog"
)

var (
	// ErrEmptyBatch is returned when a batch has no images or no vectors.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrDimensionMismatch is returned when vectors in one batch differ in length.
	ErrDimensionMismatch = errors.New("probability vectors differ in length")
	// ErrInvalidK is returned for a non-positive k.
	ErrInvalidK = errors.New("k must be positive")
	// ErrBatchSize is returned when a classifier returns a different number of
	// vectors than it was given images.
	ErrBatchSize = errors.New("classifier returned wrong number of vectors")
	// ErrInvalidImage is returned by classifiers for undecodable image data.
	ErrInvalidImage = errors.New("invalid image")
)

// Vector is one classifier's class probabilities; position is the class index.
type Vector []float64

// Image is an encoded image submitted for classification.
type Image struct {
	Name string
	Data []byte
}

//go:generate go tool mockgen -destination=mocks/mock_classifier.go -package=mocks . Classifier

// Classifier produces one probability vector per image, always in the same
// class index space.
type Classifier interface {
	Classify(ctx context.Context, images []Image) ([]Vector, error)
}

// LabelLookup maps a class index to its label.
type LabelLookup interface {
	Label(index int) string
}

// LabelFunc adapts a function to LabelLookup.
type LabelFunc func(index int) string

// Label implements LabelLookup.
func (f LabelFunc) Label(index int) string { return f(index) }

// RankedPrediction is one class with its confidence in percent (0-100,
// two decimals).
type RankedPrediction struct {
	Index      int     `json:"classIndex"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FilterOutcome names which branch the disease filter took.
type FilterOutcome string

const (
	// OutcomeNoSpecies means no species prediction was available.
	OutcomeNoSpecies FilterOutcome = "no_species"
	// OutcomeUnknownSpecies means the species label could not be mapped to a
	// catalog entry.
	OutcomeUnknownSpecies FilterOutcome = "unknown_species"
	// OutcomeFiltered means candidates were restricted to the species' diseases.
	OutcomeFiltered FilterOutcome = "filtered"
	// OutcomeFallback means no candidate belonged to the species, so the
	// unfiltered candidates were returned.
	OutcomeFallback FilterOutcome = "fallback"
)

// FilterDecision records how the disease list was conditioned.
type FilterDecision struct {
	Outcome    FilterOutcome      `json:"outcome"`
	SpeciesKey catalog.SpeciesKey `json:"speciesKey,omitempty"`
}

// BatchInferenceResult is the answer for one batch of images.
type BatchInferenceResult struct {
	SpeciesPredictions []RankedPrediction `json:"speciesPredictions"`
	DiseasePredictions []RankedPrediction `json:"diseasePredictions"`
	Filter             FilterDecision     `json:"filter"`
}

// TopSpecies returns the highest-ranked species, if any.
func (r *BatchInferenceResult) TopSpecies() (RankedPrediction, bool) {
	if r == nil || len(r.SpeciesPredictions) == 0 {
		return RankedPrediction{}, false
	}
	return r.SpeciesPredictions[0], true
}

// TopDisease returns the highest-ranked disease, if any.
func (r *BatchInferenceResult) TopDisease() (RankedPrediction, bool) {
	if r == nil || len(r.DiseasePredictions) == 0 {
		return RankedPrediction{}, false
	}
	return r.DiseasePredictions[0], true
}

func checkK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	return nil
}

package prediction

import (
	"fmt"
	"math"
)

// DefaultCandidateFactor is how many times topKDisease raw disease candidates
// are drawn before species filtering.
const DefaultCandidateFactor = 2

// Pipeline composes aggregation, top-k selection and species-conditioned
// filtering. It holds only immutable lookups and is safe for concurrent use.
type Pipeline struct {
	speciesLabels   LabelLookup
	diseaseLabels   LabelLookup
	filter          *DiseaseFilter
	candidateFactor int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCandidateFactor sets how many raw disease candidates, as a multiple of
// topKDisease, are selected ahead of filtering. Values below 1 are ignored.
func WithCandidateFactor(n int) PipelineOption {
	return func(p *Pipeline) {
		if n >= 1 {
			p.candidateFactor = n
		}
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(speciesLabels, diseaseLabels LabelLookup, filter *DiseaseFilter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		speciesLabels:   speciesLabels,
		diseaseLabels:   diseaseLabels,
		filter:          filter,
		candidateFactor: DefaultCandidateFactor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CandidateFactor returns the configured raw-candidate multiplier.
func (p *Pipeline) CandidateFactor() int {
	return p.candidateFactor
}

// candidateWidth is candidateFactor*topKDisease, saturating at math.MaxInt.
// SelectTopK clamps it to the vector length.
func (p *Pipeline) candidateWidth(topKDisease int) int {
	if topKDisease > math.MaxInt/p.candidateFactor {
		return math.MaxInt
	}
	return topKDisease * p.candidateFactor
}

// Run builds the batch result from per-image species and disease vectors.
func (p *Pipeline) Run(species, disease []Vector, topKSpecies, topKDisease int) (*BatchInferenceResult, error) {
	if err := checkK(topKSpecies); err != nil {
		return nil, fmt.Errorf("topKSpecies: %w", err)
	}
	if err := checkK(topKDisease); err != nil {
		return nil, fmt.Errorf("topKDisease: %w", err)
	}

	speciesAgg, err := Aggregate(species)
	if err != nil {
		return nil, fmt.Errorf("aggregating species vectors: %w", err)
	}
	speciesPreds, err := SelectTopK(speciesAgg, topKSpecies, p.speciesLabels)
	if err != nil {
		return nil, fmt.Errorf("selecting species: %w", err)
	}

	diseaseAgg, err := Aggregate(disease)
	if err != nil {
		return nil, fmt.Errorf("aggregating disease vectors: %w", err)
	}
	candidates, err := SelectTopK(diseaseAgg, p.candidateWidth(topKDisease), p.diseaseLabels)
	if err != nil {
		return nil, fmt.Errorf("selecting disease candidates: %w", err)
	}

	var top *RankedPrediction
	if len(speciesPreds) > 0 {
		top = &speciesPreds[0]
	}
	diseasePreds, decision, err := p.filter.Filter(top, candidates, topKDisease)
	if err != nil {
		return nil, fmt.Errorf("filtering diseases: %w", err)
	}

	return &BatchInferenceResult{
		SpeciesPredictions: speciesPreds,
		DiseasePredictions: diseasePreds,
		Filter:             decision,
	}, nil
}

package prediction

import "github.com/leaflens/leaflens/internal/catalog"

// SpeciesResolver maps a species label to a canonical species key.
type SpeciesResolver interface {
	Canonicalize(rawLabel string) (catalog.SpeciesKey, bool)
}

// DiseaseCatalog reports which disease labels are valid for a species.
type DiseaseCatalog interface {
	Has(key catalog.SpeciesKey) bool
	AllowedDiseases(key catalog.SpeciesKey) catalog.DiseaseSet
}

// DiseaseFilter restricts disease candidates to those valid for the top
// predicted species.
type DiseaseFilter struct {
	species SpeciesResolver
	catalog DiseaseCatalog
}

// NewDiseaseFilter creates a DiseaseFilter.
func NewDiseaseFilter(species SpeciesResolver, diseases DiseaseCatalog) *DiseaseFilter {
	return &DiseaseFilter{species: species, catalog: diseases}
}

// Filter returns at most k disease predictions conditioned on topSpecies.
//
// Without a species, or when the species is not in the catalog, the first k
// raw candidates are returned unchanged. Otherwise the candidates whose label
// is allowed for the species are kept in their original order. If none are
// allowed, the first k raw candidates are returned instead.
func (f *DiseaseFilter) Filter(topSpecies *RankedPrediction, raw []RankedPrediction, k int) ([]RankedPrediction, FilterDecision, error) {
	if err := checkK(k); err != nil {
		return nil, FilterDecision{}, err
	}

	if topSpecies == nil {
		return head(raw, k), FilterDecision{Outcome: OutcomeNoSpecies}, nil
	}

	key, ok := f.species.Canonicalize(topSpecies.Label)
	if !ok || !f.catalog.Has(key) {
		return head(raw, k), FilterDecision{Outcome: OutcomeUnknownSpecies}, nil
	}

	allowed := f.catalog.AllowedDiseases(key)
	filtered := make([]RankedPrediction, 0, min(k, len(raw)))
	for _, c := range raw {
		if len(filtered) == k {
			break
		}
		if allowed.Contains(c.Label) {
			filtered = append(filtered, c)
		}
	}

	if len(filtered) == 0 {
		return head(raw, k), FilterDecision{Outcome: OutcomeFallback, SpeciesKey: key}, nil
	}
	return filtered, FilterDecision{Outcome: OutcomeFiltered, SpeciesKey: key}, nil
}

// head returns a copy of the first k elements of preds.
func head(preds []RankedPrediction, k int) []RankedPrediction {
	out := make([]RankedPrediction, min(k, len(preds)))
	copy(out, preds)
	return out
}

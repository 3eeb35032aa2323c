package prediction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leaflens/leaflens/internal/canonical"
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultFilter(t *testing.T) (*DiseaseFilter, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewDiseaseFilter(canonical.New(c), c), c
}

func candidates(labels ...string) []RankedPrediction {
	out := make([]RankedPrediction, len(labels))
	for i, l := range labels {
		out[i] = RankedPrediction{Index: i, Label: l, Confidence: float64(90 - 10*i)}
	}
	return out
}

func species(label string) *RankedPrediction {
	return &RankedPrediction{Index: 0, Label: label, Confidence: 80}
}

// mixedTomatoCandidates has 3 tomato diseases among 8 candidates.
var mixedTomatoCandidates = candidates(
	"Potato___Early_blight",
	"Tomato___Early_blight",
	"Grape___Black_rot",
	"Apple___Apple_scab",
	"Tomato___Late_blight",
	"Corn_(maize)___Common_rust_",
	"Peach___Bacterial_spot",
	"Tomato___healthy",
)

func TestFilter_KeepsOnlySpeciesDiseasesInOrder(t *testing.T) {
	f, _ := newDefaultFilter(t)

	got, decision, err := f.Filter(species("Solanum lycopersicum L."), mixedTomatoCandidates, 4)
	require.NoError(t, err)

	want := []RankedPrediction{
		mixedTomatoCandidates[1],
		mixedTomatoCandidates[4],
		mixedTomatoCandidates[7],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filtered diseases mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FilterDecision{Outcome: OutcomeFiltered, SpeciesKey: "tomato"}, decision)
}

func TestFilter_NeverReturnsOutsideAllowedSet(t *testing.T) {
	f, c := newDefaultFilter(t)

	for _, key := range c.Keys() {
		sp, _ := c.Species(key)
		got, decision, err := f.Filter(species(string(key)), mixedTomatoCandidates, 8)
		require.NoError(t, err)

		allowed := c.AllowedDiseases(sp.Key)
		if decision.Outcome == OutcomeFallback {
			assert.Equal(t, mixedTomatoCandidates, got, "species %s", key)
			continue
		}
		require.Equal(t, OutcomeFiltered, decision.Outcome, "species %s", key)
		for _, p := range got {
			assert.True(t, allowed.Contains(p.Label), "species %s returned %s", key, p.Label)
		}
	}
}

func TestFilter_TruncatesToK(t *testing.T) {
	f, _ := newDefaultFilter(t)

	got, _, err := f.Filter(species("tomato"), mixedTomatoCandidates, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato___Early_blight", "Tomato___Late_blight"}, labelsOf(got))
}

func TestFilter_UnknownSpeciesPassesThrough(t *testing.T) {
	f, _ := newDefaultFilter(t)

	got, decision, err := f.Filter(species("unknown plant"), mixedTomatoCandidates, 4)
	require.NoError(t, err)

	if diff := cmp.Diff(mixedTomatoCandidates[:4], got); diff != "" {
		t.Errorf("passthrough mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FilterDecision{Outcome: OutcomeUnknownSpecies}, decision)
}

func TestFilter_NoSpeciesPassesThrough(t *testing.T) {
	f, _ := newDefaultFilter(t)

	got, decision, err := f.Filter(nil, mixedTomatoCandidates, 3)
	require.NoError(t, err)
	assert.Equal(t, mixedTomatoCandidates[:3], got)
	assert.Equal(t, OutcomeNoSpecies, decision.Outcome)
}

func TestFilter_GrapeFallsBackWhenNoGrapeCandidate(t *testing.T) {
	f, _ := newDefaultFilter(t)

	raw := candidates(
		"Tomato___Early_blight",
		"Tomato___Late_blight",
		"Potato___Late_blight",
		"Apple___Black_rot",
		"Tomato___Leaf_Mold",
		"Squash___Powdery_mildew",
		"Corn_(maize)___healthy",
		"Peach___healthy",
	)

	got, decision, err := f.Filter(species("Vitis vinifera"), raw, 4)
	require.NoError(t, err)

	if diff := cmp.Diff(raw[:4], got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FilterDecision{Outcome: OutcomeFallback, SpeciesKey: "grape"}, decision)
}

type fixedResolver struct {
	key catalog.SpeciesKey
}

func (r fixedResolver) Canonicalize(string) (catalog.SpeciesKey, bool) { return r.key, true }

func TestFilter_KeyMissingFromCatalogPassesThrough(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	f := NewDiseaseFilter(fixedResolver{key: "banana"}, c)

	got, decision, err := f.Filter(species("banana"), mixedTomatoCandidates, 4)
	require.NoError(t, err)
	assert.Equal(t, mixedTomatoCandidates[:4], got)
	assert.Equal(t, OutcomeUnknownSpecies, decision.Outcome)
}

func TestFilter_ResultDoesNotAliasInput(t *testing.T) {
	f, _ := newDefaultFilter(t)
	raw := candidates("A", "B", "C")

	got, _, err := f.Filter(nil, raw, 2)
	require.NoError(t, err)
	got[0].Label = "changed"
	assert.Equal(t, "A", raw[0].Label)
}

func TestFilter_InvalidK(t *testing.T) {
	f, _ := newDefaultFilter(t)

	_, _, err := f.Filter(species("tomato"), mixedTomatoCandidates, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func labelsOf(preds []RankedPrediction) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.Label
	}
	return out
}

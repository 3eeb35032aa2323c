package prediction

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSpeciesLabels = []string{"Solanum lycopersicum", "Vitis vinifera", "Malus domestica", "Musa acuminata"}
	testDiseaseLabels = []string{
		"Potato___Early_blight",
		"Tomato___Early_blight",
		"Grape___Black_rot",
		"Apple___Apple_scab",
		"Tomato___Late_blight",
		"Corn_(maize)___Common_rust_",
		"Peach___Bacterial_spot",
		"Tomato___healthy",
		"Apple___healthy",
		"Squash___Powdery_mildew",
	}
)

func sliceLabels(labels []string) LabelLookup {
	return LabelFunc(func(i int) string { return labels[i] })
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) *Pipeline {
	t.Helper()
	f, _ := newDefaultFilter(t)
	return NewPipeline(sliceLabels(testSpeciesLabels), sliceLabels(testDiseaseLabels), f, opts...)
}

// descending gives each class a distinct probability, highest at index 0.
func descending(n int) Vector {
	v := make(Vector, n)
	total := float64(n*(n+1)) / 2
	for i := range v {
		v[i] = float64(n-i) / total
	}
	return v
}

func TestPipeline_FiltersDiseasesByTopSpecies(t *testing.T) {
	p := newTestPipeline(t)

	species := []Vector{{0.7, 0.1, 0.1, 0.1}}
	result, err := p.Run(species, []Vector{descending(len(testDiseaseLabels))}, 1, 4)
	require.NoError(t, err)

	require.Len(t, result.SpeciesPredictions, 1)
	assert.Equal(t, "Solanum lycopersicum", result.SpeciesPredictions[0].Label)
	assert.Equal(t, 70.0, result.SpeciesPredictions[0].Confidence)

	// Only the top 8 candidates are considered; all three tomato labels are in there.
	assert.Equal(t, []string{"Tomato___Early_blight", "Tomato___Late_blight", "Tomato___healthy"}, labelsOf(result.DiseasePredictions))
	assert.Equal(t, FilterDecision{Outcome: OutcomeFiltered, SpeciesKey: "tomato"}, result.Filter)
}

func TestPipeline_CandidateFactorLimitsPool(t *testing.T) {
	p := newTestPipeline(t, WithCandidateFactor(1))
	require.Equal(t, 1, p.CandidateFactor())

	species := []Vector{{0.7, 0.1, 0.1, 0.1}}
	result, err := p.Run(species, []Vector{descending(len(testDiseaseLabels))}, 1, 4)
	require.NoError(t, err)

	// Pool is the top 4 candidates: one tomato label survives.
	assert.Equal(t, []string{"Tomato___Early_blight"}, labelsOf(result.DiseasePredictions))
}

func TestPipeline_IgnoresInvalidCandidateFactor(t *testing.T) {
	p := newTestPipeline(t, WithCandidateFactor(0))
	assert.Equal(t, DefaultCandidateFactor, p.CandidateFactor())
}

func TestPipeline_AggregatesAcrossImages(t *testing.T) {
	p := newTestPipeline(t)

	// Image 1 leans grape, image 2 leans tomato more strongly.
	species := []Vector{
		{0.3, 0.6, 0.05, 0.05},
		{0.9, 0.0, 0.05, 0.05},
	}
	disease := []Vector{descending(len(testDiseaseLabels)), descending(len(testDiseaseLabels))}

	result, err := p.Run(species, disease, 2, 2)
	require.NoError(t, err)

	want := []RankedPrediction{
		{Index: 0, Label: "Solanum lycopersicum", Confidence: 60},
		{Index: 1, Label: "Vitis vinifera", Confidence: 30},
	}
	if diff := cmp.Diff(want, result.SpeciesPredictions); diff != "" {
		t.Errorf("species mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Tomato___Early_blight"}, labelsOf(result.DiseasePredictions))
}

func TestPipeline_FallbackWhenNoCandidateMatches(t *testing.T) {
	p := newTestPipeline(t)

	// Grape on top, but the only grape disease is ranked below the candidate pool.
	species := []Vector{{0.1, 0.8, 0.05, 0.05}}
	disease := Vector{0.2, 0.2, 0.0, 0.1, 0.1, 0.1, 0.1, 0.1, 0.05, 0.05}

	result, err := p.Run(species, []Vector{disease}, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, FilterDecision{Outcome: OutcomeFallback, SpeciesKey: "grape"}, result.Filter)
	assert.Equal(t, []string{"Potato___Early_blight", "Tomato___Early_blight"}, labelsOf(result.DiseasePredictions))
}

func TestPipeline_UnknownSpeciesReturnsRawTopK(t *testing.T) {
	p := newTestPipeline(t)

	species := []Vector{{0.1, 0.1, 0.1, 0.7}}
	result, err := p.Run(species, []Vector{descending(len(testDiseaseLabels))}, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, "Musa acuminata", result.SpeciesPredictions[0].Label)
	assert.Equal(t, OutcomeUnknownSpecies, result.Filter.Outcome)
	assert.Equal(t, testDiseaseLabels[:3], labelsOf(result.DiseasePredictions))
}

func TestPipeline_TopAccessors(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.Run([]Vector{{0.7, 0.1, 0.1, 0.1}}, []Vector{descending(len(testDiseaseLabels))}, 1, 1)
	require.NoError(t, err)

	sp, ok := result.TopSpecies()
	require.True(t, ok)
	assert.Equal(t, 0, sp.Index)

	d, ok := result.TopDisease()
	require.True(t, ok)
	assert.Equal(t, "Tomato___Early_blight", d.Label)

	var empty *BatchInferenceResult
	_, ok = empty.TopSpecies()
	assert.False(t, ok)
	_, ok = empty.TopDisease()
	assert.False(t, ok)
}

func TestPipeline_OversizedKClamps(t *testing.T) {
	tests := []struct {
		name   string
		factor int
		kS, kD int
	}{
		{name: "candidate width overflows", factor: DefaultCandidateFactor, kS: 1, kD: math.MaxInt/2 + 1},
		{name: "max int", factor: 3, kS: math.MaxInt, kD: math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, WithCandidateFactor(tt.factor))

			species := []Vector{{0.7, 0.1, 0.1, 0.1}}
			result, err := p.Run(species, []Vector{descending(len(testDiseaseLabels))}, tt.kS, tt.kD)
			require.NoError(t, err)

			assert.Len(t, result.SpeciesPredictions, min(tt.kS, len(testSpeciesLabels)))
			assert.Equal(t, []string{"Tomato___Early_blight", "Tomato___Late_blight", "Tomato___healthy"}, labelsOf(result.DiseasePredictions))
			assert.Equal(t, OutcomeFiltered, result.Filter.Outcome)
		})
	}

	t.Run("unknown species returns every class", func(t *testing.T) {
		p := newTestPipeline(t)
		result, err := p.Run([]Vector{{0.1, 0.1, 0.1, 0.7}}, []Vector{{0.5, 0.3, 0.2}}, 1, math.MaxInt/2+1)
		require.NoError(t, err)
		assert.Len(t, result.DiseasePredictions, 3)
		assert.Equal(t, OutcomeUnknownSpecies, result.Filter.Outcome)
	})
}

func TestPipeline_Errors(t *testing.T) {
	p := newTestPipeline(t)
	species := []Vector{{0.7, 0.1, 0.1, 0.1}}
	disease := []Vector{descending(len(testDiseaseLabels))}

	tests := []struct {
		name    string
		species []Vector
		disease []Vector
		kS, kD  int
		wantErr error
		wantMsg string
	}{
		{name: "zero species k", species: species, disease: disease, kS: 0, kD: 1, wantErr: ErrInvalidK, wantMsg: "topKSpecies"},
		{name: "negative disease k", species: species, disease: disease, kS: 1, kD: -2, wantErr: ErrInvalidK, wantMsg: "topKDisease"},
		{name: "empty species", species: nil, disease: disease, kS: 1, kD: 1, wantErr: ErrEmptyBatch, wantMsg: "species"},
		{name: "empty disease", species: species, disease: nil, kS: 1, kD: 1, wantErr: ErrEmptyBatch, wantMsg: "disease"},
		{
			name:    "ragged disease",
			species: species,
			disease: []Vector{descending(len(testDiseaseLabels)), descending(3)},
			kS:      1, kD: 1,
			wantErr: ErrDimensionMismatch,
			wantMsg: "disease",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(tt.species, tt.disease, tt.kS, tt.kD)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

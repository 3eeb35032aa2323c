package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filteredResult(confidence float64) *prediction.BatchInferenceResult {
	return &prediction.BatchInferenceResult{
		DiseasePredictions: []prediction.RankedPrediction{{Label: "Tomato___Early_blight", Confidence: confidence}},
		Filter:             prediction.FilterDecision{Outcome: prediction.OutcomeFiltered, SpeciesKey: "tomato"},
	}
}

func TestCollector_CountsOutcomes(t *testing.T) {
	c := NewCollector()

	c.ObservePrediction(filteredResult(72), 40*time.Millisecond, nil)
	c.ObservePrediction(filteredResult(55), 30*time.Millisecond, nil)
	c.ObservePrediction(&prediction.BatchInferenceResult{
		Filter: prediction.FilterDecision{Outcome: prediction.OutcomeFallback, SpeciesKey: "grape"},
	}, 20*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.predictions.WithLabelValues("filtered", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.predictions.WithLabelValues("fallback", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestCollector_ClassifiesErrors(t *testing.T) {
	c := NewCollector()

	c.ObservePrediction(nil, time.Millisecond, prediction.ErrEmptyBatch)
	c.ObservePrediction(nil, time.Millisecond, fmt.Errorf("topKDisease: %w", prediction.ErrInvalidK))
	c.ObservePrediction(nil, time.Millisecond, fmt.Errorf("species classifier: %w", io.ErrUnexpectedEOF))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.predictions.WithLabelValues("none", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.predictions.WithLabelValues("none", "error")))
}

func TestCollector_CacheStats(t *testing.T) {
	c := NewCollector()
	hits, misses := uint64(0), uint64(0)
	require.NoError(t, c.RegisterCacheStats("species", func() (uint64, uint64) { return hits, misses }))

	hits, misses = 3, 5
	body := scrape(t, c)
	assert.Contains(t, body, `leaflens_classifier_cache_hits_total{classifier="species"} 3`)
	assert.Contains(t, body, `leaflens_classifier_cache_misses_total{classifier="species"} 5`)

	assert.Error(t, c.RegisterCacheStats("species", func() (uint64, uint64) { return 0, 0 }))
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObservePrediction(filteredResult(90), 10*time.Millisecond, nil)
	c.ScanSaved()

	body := scrape(t, c)
	assert.Contains(t, body, `leaflens_predictions_total{outcome="filtered",status="ok"} 1`)
	assert.Contains(t, body, "leaflens_scans_saved_total 1")
	assert.Contains(t, body, "leaflens_top_disease_confidence_percent_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

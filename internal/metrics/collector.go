// Package metrics exposes prediction service metrics to Prometheus and
// computes summary statistics over stored scans.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leaflens"

// Collector records prediction metrics. It implements prediction.Observer.
type Collector struct {
	registry *prometheus.Registry

	predictions   *prometheus.CounterVec
	latency       prometheus.Histogram
	topConfidence prometheus.Histogram
	scansSaved    prometheus.Counter
}

// NewCollector creates a Collector on its own registry, including the Go
// runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Batch predictions by filter outcome and status.",
		}, []string{"outcome", "status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent classifying and conditioning one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		topConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "top_disease_confidence_percent",
			Help:      "Confidence of the top returned disease.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
		scansSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_saved_total",
			Help:      "Scans persisted after a prediction.",
		}),
	}

	c.registry.MustRegister(
		c.predictions,
		c.latency,
		c.topConfidence,
		c.scansSaved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObservePrediction implements prediction.Observer.
func (c *Collector) ObservePrediction(result *prediction.BatchInferenceResult, elapsed time.Duration, err error) {
	c.latency.Observe(elapsed.Seconds())

	if err != nil {
		c.predictions.WithLabelValues("none", errorStatus(err)).Inc()
		return
	}

	c.predictions.WithLabelValues(string(result.Filter.Outcome), "ok").Inc()
	if top, ok := result.TopDisease(); ok {
		c.topConfidence.Observe(top.Confidence)
	}
}

// errorStatus separates caller mistakes from server-side failures.
func errorStatus(err error) string {
	switch {
	case errors.Is(err, prediction.ErrEmptyBatch), errors.Is(err, prediction.ErrInvalidK),
		errors.Is(err, prediction.ErrInvalidImage):
		return "invalid"
	default:
		return "error"
	}
}

// ScanSaved counts a persisted scan.
func (c *Collector) ScanSaved() {
	c.scansSaved.Inc()
}

// RegisterCacheStats exposes hit and miss counters for a classifier cache.
func (c *Collector) RegisterCacheStats(classifier string, stats func() (hits, misses uint64)) error {
	labels := prometheus.Labels{"classifier": classifier}
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "classifier_cache_hits_total",
		Help:        "Images answered from the classifier cache.",
		ConstLabels: labels,
	}, func() float64 {
		h, _ := stats()
		return float64(h)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "classifier_cache_misses_total",
		Help:        "Images sent to the underlying classifier.",
		ConstLabels: labels,
	}, func() float64 {
		_, m := stats()
		return float64(m)
	})

	if err := c.registry.Register(hits); err != nil {
		return err
	}
	return c.registry.Register(misses)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var _ prediction.Observer = (*Collector)(nil)

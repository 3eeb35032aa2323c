package webserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leaflens/leaflens/internal/canonical"
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/leaflens/leaflens/internal/classifier"
	"github.com/leaflens/leaflens/internal/labels"
	"github.com/leaflens/leaflens/internal/metrics"
	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/scanstore"
	"github.com/leaflens/leaflens/internal/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps(t *testing.T, collector *metrics.Collector) webapi.Deps {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	canon := canonical.New(cat)
	diseases := labels.DiseaseFromCatalog(cat)

	probs := make([]float64, diseases.Len())
	probs[0] = 1
	species, err := classifier.NewStatic([]float64{1})
	require.NoError(t, err)
	disease, err := classifier.NewStatic(probs)
	require.NoError(t, err)

	pipeline := prediction.NewPipeline(
		prediction.LabelFunc(func(int) string { return "Malus domestica" }),
		diseases,
		prediction.NewDiseaseFilter(canon, cat),
	)
	return webapi.Deps{
		Predictor:     prediction.NewPredictor(species, disease, pipeline, prediction.WithObserver(collector)),
		Catalog:       cat,
		Canonicalizer: canon,
		Scans:         scanstore.NewFileStore(t.TempDir()),
		Recorder:      collector,
	}
}

func newTestServer(t *testing.T) (*Server, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector()
	srv, err := New(Config{
		Host:           "127.0.0.1",
		AllowedOrigins: []string{"http://localhost:5173"},
		API:            testDeps(t, collector),
		Metrics:        collector.Handler(),
	})
	require.NoError(t, err)
	return srv, collector
}

func TestNew_Defaults(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, "127.0.0.1:8000", srv.Addr())
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "required")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaflens_scans_saved_total 0")
}

func TestCORSApplied(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	collector := metrics.NewCollector()
	srv, err := New(Config{Host: "127.0.0.1", Port: port, API: testDeps(t, collector)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close() //nolint:errcheck
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

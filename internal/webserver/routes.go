package webserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leaflens/leaflens/internal/webapi"
)

// registerRoutes sets up the API and metrics routes on the given mux.
func registerRoutes(mux *http.ServeMux, cfg Config) error {
	if cfg.API.Predictor == nil || cfg.API.Catalog == nil || cfg.API.Canonicalizer == nil || cfg.API.Scans == nil {
		return errors.New("webserver: predictor, catalog, canonicalizer and scan store are required")
	}
	webapi.RegisterRoutes(mux, cfg.API)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level.
func logRequests(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

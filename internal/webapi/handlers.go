package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/leaflens/leaflens/internal/canonical"
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/leaflens/leaflens/internal/imagestore"
	"github.com/leaflens/leaflens/internal/metrics"
	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/scanstore"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

const (
	defaultMaxUploadBytes = 10 << 20
	multipartMemory       = 8 << 20
)

// Predictor runs a batch prediction.
type Predictor interface {
	PredictBatch(ctx context.Context, images []prediction.Image, topKSpecies, topKDisease int) (*prediction.BatchInferenceResult, error)
}

// ScanRecorder is told about every persisted scan.
type ScanRecorder interface {
	ScanSaved()
}

// Deps are the collaborators of the web API. Images and Recorder are
// optional.
type Deps struct {
	Predictor     Predictor
	Catalog       *catalog.Catalog
	Canonicalizer *canonical.Canonicalizer
	Scans         scanstore.Store
	Images        imagestore.Store
	Recorder      ScanRecorder
	Logger        *slog.Logger

	TopKSpecies    int
	TopKDisease    int
	MaxUploadBytes int64
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	deps Deps
	log  *slog.Logger
}

// NewHandlers creates a new Handlers, filling unset limits with defaults.
func NewHandlers(deps Deps) *Handlers {
	if deps.TopKSpecies <= 0 {
		deps.TopKSpecies = 1
	}
	if deps.TopKDisease <= 0 {
		deps.TopKDisease = 4
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{deps: deps, log: log}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandlePredict classifies the uploaded images, stores them with the
// resulting scan and returns the predictions.
func (h *Handlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.deps.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	topKSpecies, err := intParam(r, "topk_species", h.deps.TopKSpecies)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topKDisease, err := intParam(r, "topk_disease", h.deps.TopKDisease)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	images, err := readImages(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deps.Predictor.PredictBatch(r.Context(), images, topKSpecies, topKDisease)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("prediction failed", "images", len(images), "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	scan := scanstore.FromResult(r.FormValue("user_id"), result, h.deps.Catalog.DisplayName)
	scan.ID = uuid.NewString()
	if err := h.storeImages(r.Context(), scan, images); err != nil {
		h.log.Error("storing images failed", "scan_id", scan.ID, "error", err)
		h.deleteImages(context.WithoutCancel(r.Context()), scan)
		writeError(w, http.StatusInternalServerError, "storing images failed")
		return
	}
	if err := h.deps.Scans.Save(r.Context(), scan); err != nil {
		h.log.Error("saving scan failed", "scan_id", scan.ID, "error", err)
		h.deleteImages(context.WithoutCancel(r.Context()), scan)
		writeError(w, http.StatusInternalServerError, "saving scan failed")
		return
	}
	if h.deps.Recorder != nil {
		h.deps.Recorder.ScanSaved()
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		ScanID:             scan.ID,
		SpeciesPredictions: result.SpeciesPredictions,
		DiseasePredictions: result.DiseasePredictions,
		DiseaseName:        scan.DiseaseName,
		Filter:             result.Filter,
	})
}

func (h *Handlers) storeImages(ctx context.Context, scan *scanstore.Scan, images []prediction.Image) error {
	if h.deps.Images == nil {
		return nil
	}
	for i, img := range images {
		key := imagestore.Key(scan.ID, i, img.Name)
		location, err := h.deps.Images.Put(ctx, key, img.Data, http.DetectContentType(img.Data))
		if err != nil {
			return err
		}
		h.log.Debug("image stored", "scan_id", scan.ID, "location", location)
		scan.Images = append(scan.Images, key)
	}
	return nil
}

func readImages(files []*multipart.FileHeader) ([]prediction.Image, error) {
	images := make([]prediction.Image, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close() //nolint:errcheck
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		images = append(images, prediction.Image{Name: fh.Filename, Data: data})
	}
	return images, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// HandleScans lists scans, optionally filtered by the user_id query param.
func (h *Handlers) HandleScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.deps.Scans.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// HandleScanSummary aggregates confidence and filter outcomes over a user's
// scans.
func (h *Handlers) HandleScanSummary(w http.ResponseWriter, r *http.Request) {
	scans, err := h.deps.Scans.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	confidences := make([]float64, 0, len(scans))
	outcomes := make([]prediction.FilterOutcome, 0, len(scans))
	for _, s := range scans {
		if s.TopDisease != "" {
			confidences = append(confidences, s.Confidence)
		}
		outcomes = append(outcomes, s.Filter.Outcome)
	}
	writeJSON(w, http.StatusOK, ScanSummaryResponse{
		TotalScans: len(scans),
		Confidence: metrics.SummarizeConfidence(confidences),
		Outcomes:   metrics.OutcomeShares(outcomes),
	})
}

// HandleScanDetail returns a single scan.
func (h *Handlers) HandleScanDetail(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.getScan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// HandleScanImage serves the n-th stored image of a scan.
func (h *Handlers) HandleScanImage(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.getScan(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 || n >= len(scan.Images) || h.deps.Images == nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	data, err := h.deps.Images.Get(r.Context(), scan.Images[n])
	if err != nil {
		if errors.Is(err, imagestore.ErrImageNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// HandleDeleteScan removes a scan and its images.
func (h *Handlers) HandleDeleteScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.getScan(w, r)
	if !ok {
		return
	}

	// The scan goes first so a failure never leaves it pointing at deleted images.
	if err := h.deps.Scans.Delete(r.Context(), scan.ID); err != nil {
		if errors.Is(err, scanstore.ErrScanNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.deleteImages(r.Context(), scan)
	w.WriteHeader(http.StatusNoContent)
}

// deleteImages removes the stored images of scan, logging failures.
func (h *Handlers) deleteImages(ctx context.Context, scan *scanstore.Scan) {
	if h.deps.Images == nil {
		return
	}
	for _, key := range scan.Images {
		if err := h.deps.Images.Delete(ctx, key); err != nil && !errors.Is(err, imagestore.ErrImageNotFound) {
			h.log.Warn("deleting image failed", "scan_id", scan.ID, "key", key, "error", err)
		}
	}
}

func (h *Handlers) getScan(w http.ResponseWriter, r *http.Request) (*scanstore.Scan, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "scan id is required")
		return nil, false
	}

	scan, err := h.deps.Scans.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scanstore.ErrScanNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return scan, true
}

// HandleSpecies lists the catalog's species.
func (h *Handlers) HandleSpecies(w http.ResponseWriter, _ *http.Request) {
	all := h.deps.Catalog.All()
	out := make([]SpeciesSummary, 0, len(all))
	for _, s := range all {
		out = append(out, SpeciesSummary{
			Key:             s.Key,
			ScientificNames: s.ScientificNames,
			DiseaseCount:    len(s.Diseases),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSpeciesDetail returns a species with its allowed diseases.
func (h *Handlers) HandleSpeciesDetail(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.Catalog.Species(catalog.SpeciesKey(r.PathValue("key")))
	if !ok {
		writeError(w, http.StatusNotFound, "species not found")
		return
	}

	detail := SpeciesDetail{
		Key:             s.Key,
		ScientificNames: s.ScientificNames,
		Diseases:        make([]DiseaseInfo, 0, len(s.Diseases)),
	}
	for _, d := range s.Diseases {
		notes, err := d.NotesHTML()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		detail.Diseases = append(detail.Diseases, DiseaseInfo{
			Label:     d.Label,
			Name:      d.Name,
			Healthy:   d.Healthy,
			NotesHTML: notes,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCanonicalize maps a free-form label to a species key.
func (h *Handlers) HandleCanonicalize(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	key, found := h.deps.Canonicalizer.Canonicalize(label)
	writeJSON(w, http.StatusOK, CanonicalizeResponse{Label: label, SpeciesKey: key, Found: found})
}

// statusFor maps a prediction error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, prediction.ErrEmptyBatch),
		errors.Is(err, prediction.ErrInvalidK),
		errors.Is(err, prediction.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	h := NewHandlers(deps)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/predict", h.HandlePredict)
	mux.HandleFunc("GET /api/scans", h.HandleScans)
	mux.HandleFunc("GET /api/scans/summary", h.HandleScanSummary)
	mux.HandleFunc("GET /api/scans/{id}", h.HandleScanDetail)
	mux.HandleFunc("GET /api/scans/{id}/images/{n}", h.HandleScanImage)
	mux.HandleFunc("DELETE /api/scans/{id}", h.HandleDeleteScan)
	mux.HandleFunc("GET /api/species", h.HandleSpecies)
	mux.HandleFunc("GET /api/species/{key}", h.HandleSpeciesDetail)
	mux.HandleFunc("GET /api/canonicalize", h.HandleCanonicalize)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}

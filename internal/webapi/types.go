package webapi

import (
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/leaflens/leaflens/internal/metrics"
	"github.com/leaflens/leaflens/internal/prediction"
)

// PredictResponse is returned by POST /api/predict.
type PredictResponse struct {
	ScanID             string                        `json:"scanId"`
	SpeciesPredictions []prediction.RankedPrediction `json:"speciesPredictions"`
	DiseasePredictions []prediction.RankedPrediction `json:"diseasePredictions"`
	DiseaseName        string                        `json:"diseaseName,omitempty"`
	Filter             prediction.FilterDecision     `json:"filter"`
}

// SpeciesSummary is one entry of GET /api/species.
type SpeciesSummary struct {
	Key             catalog.SpeciesKey `json:"key"`
	ScientificNames []string           `json:"scientificNames,omitempty"`
	DiseaseCount    int                `json:"diseaseCount"`
}

// SpeciesDetail is returned by GET /api/species/{key}.
type SpeciesDetail struct {
	Key             catalog.SpeciesKey `json:"key"`
	ScientificNames []string           `json:"scientificNames,omitempty"`
	Diseases        []DiseaseInfo      `json:"diseases"`
}

// DiseaseInfo describes one allowed disease of a species.
type DiseaseInfo struct {
	Label     string `json:"label"`
	Name      string `json:"name,omitempty"`
	Healthy   bool   `json:"healthy,omitempty"`
	NotesHTML string `json:"notesHtml,omitempty"`
}

// CanonicalizeResponse is returned by GET /api/canonicalize.
type CanonicalizeResponse struct {
	Label      string             `json:"label"`
	SpeciesKey catalog.SpeciesKey `json:"speciesKey,omitempty"`
	Found      bool               `json:"found"`
}

// ScanSummaryResponse aggregates a user's stored scans.
type ScanSummaryResponse struct {
	TotalScans int                                  `json:"totalScans"`
	Confidence metrics.ConfidenceSummary            `json:"confidence"`
	Outcomes   map[prediction.FilterOutcome]float64 `json:"outcomes"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Package scanstore persists prediction results ("scans") per user.
package scanstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/leaflens/leaflens/internal/prediction"
)

// ErrScanNotFound is returned when a scan ID does not match any stored scan.
var ErrScanNotFound = errors.New("scan not found")

// Scan is one persisted prediction.
type Scan struct {
	ID          string                        `json:"id"`
	UserID      string                        `json:"userId"`
	CreatedAt   time.Time                     `json:"createdAt"`
	Species     []prediction.RankedPrediction `json:"species"`
	Diseases    []prediction.RankedPrediction `json:"diseases"`
	TopDisease  string                        `json:"topDisease,omitempty"`
	DiseaseName string                        `json:"diseaseName,omitempty"`
	Confidence  float64                       `json:"confidence"`
	Images      []string                      `json:"images,omitempty"`
	Filter      prediction.FilterDecision     `json:"filter"`
}

// Store provides access to scans.
type Store interface {
	// Save stores s, assigning an ID and creation time when they are unset.
	Save(ctx context.Context, s *Scan) error
	// Get returns the scan with the given ID or ErrScanNotFound.
	Get(ctx context.Context, id string) (*Scan, error)
	// List returns the scans of userID, newest first. An empty userID lists
	// every scan.
	List(ctx context.Context, userID string) ([]Scan, error)
	// Delete removes a scan or returns ErrScanNotFound.
	Delete(ctx context.Context, id string) error
	Close() error
}

// FromResult builds an unsaved Scan from a prediction. displayName maps a
// disease label to its human-readable name and may be nil.
func FromResult(userID string, result *prediction.BatchInferenceResult, displayName func(string) string) *Scan {
	s := &Scan{
		UserID:   userID,
		Species:  result.SpeciesPredictions,
		Diseases: result.DiseasePredictions,
		Filter:   result.Filter,
	}
	if top, ok := result.TopDisease(); ok {
		s.TopDisease = top.Label
		s.Confidence = top.Confidence
		if displayName != nil {
			s.DiseaseName = displayName(top.Label)
		}
	}
	return s
}

// prepare fills the ID and CreatedAt of a scan about to be saved.
func prepare(s *Scan, now func() time.Time) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now().UTC()
	}
}

func sortNewestFirst(scans []Scan) {
	sort.Slice(scans, func(i, j int) bool {
		if !scans[i].CreatedAt.Equal(scans[j].CreatedAt) {
			return scans[i].CreatedAt.After(scans[j].CreatedAt)
		}
		return scans[i].ID < scans[j].ID
	})
}

// Driver names a Store implementation.
type Driver string

const (
	// DriverFile keeps one JSON file per scan in a directory.
	DriverFile Driver = "file"
	// DriverSQLite keeps scans in a SQLite database.
	DriverSQLite Driver = "sqlite"
)

// Open creates the Store for driver. dir is used by the file driver and dsn
// by the sqlite driver.
func Open(driver Driver, dir, dsn string) (Store, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(dir), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown scan storage driver %q", driver)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/leaflens/leaflens/internal/canonical"
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/leaflens/leaflens/internal/classifier"
	"github.com/leaflens/leaflens/internal/imagestore"
	"github.com/leaflens/leaflens/internal/labels"
	"github.com/leaflens/leaflens/internal/logging"
	"github.com/leaflens/leaflens/internal/metrics"
	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/projectconfig"
	"github.com/leaflens/leaflens/internal/scanstore"
)

// app holds everything built from the project config that a command needs
// to run predictions.
type app struct {
	cfg       *projectconfig.ProjectConfig
	catalog   *catalog.Catalog
	canon     *canonical.Canonicalizer
	predictor *prediction.Predictor
	metrics   *metrics.Collector
	closers   []io.Closer
}

func loadCatalog(cfg *projectconfig.ProjectConfig) (*catalog.Catalog, error) {
	if cfg.Paths.Catalog == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Paths.Catalog)
}

func loadSpeciesLabels(cfg *projectconfig.ProjectConfig) (*labels.SpeciesTable, error) {
	if cfg.Paths.SpeciesIndex == "" || cfg.Paths.SpeciesNames == "" {
		return nil, errors.New("paths.species_index and paths.species_names must be set")
	}
	return labels.LoadSpecies(cfg.Paths.SpeciesIndex, cfg.Paths.SpeciesNames)
}

func loadDiseaseLabels(cfg *projectconfig.ProjectConfig, cat *catalog.Catalog) (*labels.DiseaseTable, error) {
	if cfg.Paths.DiseaseLabels == "" {
		return labels.DiseaseFromCatalog(cat), nil
	}
	return labels.LoadDisease(cfg.Paths.DiseaseLabels)
}

func newApp(cfg *projectconfig.ProjectConfig) (_ *app, err error) {
	a := &app{cfg: cfg, metrics: metrics.NewCollector()}
	defer func() {
		if err != nil {
			a.Close() //nolint:errcheck
		}
	}()

	if a.catalog, err = loadCatalog(cfg); err != nil {
		return nil, err
	}
	a.canon = canonical.New(a.catalog)

	speciesLabels, err := loadSpeciesLabels(cfg)
	if err != nil {
		return nil, err
	}
	diseaseLabels, err := loadDiseaseLabels(cfg, a.catalog)
	if err != nil {
		return nil, err
	}

	species, err := a.newClassifier("species", cfg.Models.Species)
	if err != nil {
		return nil, err
	}
	disease, err := a.newClassifier("disease", cfg.Models.Disease)
	if err != nil {
		return nil, err
	}

	pipeline := prediction.NewPipeline(speciesLabels, diseaseLabels,
		prediction.NewDiseaseFilter(a.canon, a.catalog),
		prediction.WithCandidateFactor(cfg.Pipeline.CandidateFactor),
	)
	a.predictor = prediction.NewPredictor(species, disease, pipeline,
		prediction.WithLogger(logging.New("predictor")),
		prediction.WithObserver(a.metrics),
	)
	return a, nil
}

// newClassifier builds a classifier from its config, wrapping it in an LRU
// cache when caching is enabled.
func (a *app) newClassifier(name string, mc projectconfig.ModelConfig) (prediction.Classifier, error) {
	c, err := classifier.New(classifier.Type(mc.Type), mc.Params)
	if err != nil {
		return nil, fmt.Errorf("%s classifier: %w", name, err)
	}

	if a.cfg.CacheEnabled() {
		cached, err := classifier.NewCached(c, a.cfg.Cache.Size)
		if err != nil {
			if closer, ok := c.(io.Closer); ok {
				closer.Close() //nolint:errcheck
			}
			return nil, fmt.Errorf("%s classifier: %w", name, err)
		}
		if err := a.metrics.RegisterCacheStats(name, cached.Stats); err != nil {
			cached.Close() //nolint:errcheck
			return nil, err
		}
		c = cached
	}

	if closer, ok := c.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}
	return c, nil
}

// Close releases classifier resources.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openScanStore(cfg *projectconfig.ProjectConfig) (scanstore.Store, error) {
	dsn := cfg.Storage.DSN
	if dsn == "" {
		dsn = filepath.Join(cfg.Storage.Dir, "scans.db")
	}
	return scanstore.Open(scanstore.Driver(cfg.Storage.Driver), cfg.Storage.Dir, dsn)
}

func openImageStore(cfg *projectconfig.ProjectConfig) (imagestore.Store, error) {
	return imagestore.Open(imagestore.Config{
		Driver:     imagestore.Driver(cfg.Images.Driver),
		Dir:        cfg.Images.Dir,
		AccountURL: cfg.Images.AccountURL,
		Container:  cfg.Images.Container,
	})
}

// Package projectconfig provides the ProjectConfig struct and loader for
// .leaflens.yaml configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by Load.
const FileName = ".leaflens.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultUploadsDir = "uploads/"

	DefaultModelType = "onnx"

	DefaultTopKSpecies     = 1
	DefaultTopKDisease     = 4
	DefaultCandidateFactor = 2

	DefaultServerPort  = 8000
	DefaultMaxUploadMB = 10

	DefaultStorageDriver = "file"
	DefaultScansDir      = "scans/"

	DefaultImagesDriver = "local"

	DefaultCacheSize = 512
)

// PathsConfig holds the catalog and label table locations. An empty Catalog
// uses the built-in catalog; an empty DiseaseLabels derives the labels from
// the catalog.
type PathsConfig struct {
	Catalog       string `yaml:"catalog,omitempty"`
	SpeciesIndex  string `yaml:"species_index,omitempty"`
	SpeciesNames  string `yaml:"species_names,omitempty"`
	DiseaseLabels string `yaml:"disease_labels,omitempty"`
	Uploads       string `yaml:"uploads,omitempty"`
}

// ModelConfig selects a classifier implementation and its parameters.
type ModelConfig struct {
	Type   string         `yaml:"type,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

// ModelsConfig holds the species and disease classifier settings.
type ModelsConfig struct {
	Species ModelConfig `yaml:"species,omitempty"`
	Disease ModelConfig `yaml:"disease,omitempty"`
}

// PipelineConfig holds prediction defaults.
type PipelineConfig struct {
	TopKSpecies     int `yaml:"top_k_species,omitempty"`
	TopKDisease     int `yaml:"top_k_disease,omitempty"`
	CandidateFactor int `yaml:"candidate_factor,omitempty"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	MaxUploadMB    int      `yaml:"max_upload_mb,omitempty"`
}

// StorageConfig selects where scans are kept.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"`
	Dir    string `yaml:"dir,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ImagesConfig selects where uploaded images are kept.
type ImagesConfig struct {
	Driver     string `yaml:"driver,omitempty"`
	Dir        string `yaml:"dir,omitempty"`
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
}

// CacheConfig holds classifier cache settings.
type CacheConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	Size    int   `yaml:"size,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .leaflens.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Models   ModelsConfig   `yaml:"models,omitempty"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Images   ImagesConfig   `yaml:"images,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Uploads: DefaultUploadsDir,
		},
		Models: ModelsConfig{
			Species: ModelConfig{Type: DefaultModelType},
			Disease: ModelConfig{Type: DefaultModelType},
		},
		Pipeline: PipelineConfig{
			TopKSpecies:     DefaultTopKSpecies,
			TopKDisease:     DefaultTopKDisease,
			CandidateFactor: DefaultCandidateFactor,
		},
		Server: ServerConfig{
			Port:        DefaultServerPort,
			MaxUploadMB: DefaultMaxUploadMB,
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
			Dir:    DefaultScansDir,
		},
		Images: ImagesConfig{
			Driver: DefaultImagesDriver,
			Dir:    DefaultUploadsDir,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Size:    DefaultCacheSize,
		},
	}
}

// Load finds .leaflens.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Relative paths in the file are resolved against the file's directory.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	if err := apply(cfg, data, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads an explicit config file.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	cfg := New()
	if err := apply(cfg, data, filepath.Dir(abs)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *ProjectConfig, data []byte, baseDir string) error {
	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing %s: %w", FileName, err)
	}
	resolvePaths(&fileCfg, baseDir)
	mergeConfig(cfg, &fileCfg)
	return cfg.Validate()
}

// Validate reports settings that cannot work.
func (c *ProjectConfig) Validate() error {
	var errs []error
	if c.Pipeline.TopKSpecies < 1 {
		errs = append(errs, fmt.Errorf("pipeline.top_k_species must be positive, got %d", c.Pipeline.TopKSpecies))
	}
	if c.Pipeline.TopKDisease < 1 {
		errs = append(errs, fmt.Errorf("pipeline.top_k_disease must be positive, got %d", c.Pipeline.TopKDisease))
	}
	if c.Pipeline.CandidateFactor < 1 {
		errs = append(errs, fmt.Errorf("pipeline.candidate_factor must be positive, got %d", c.Pipeline.CandidateFactor))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be file or sqlite, got %q", c.Storage.Driver))
	}
	switch c.Images.Driver {
	case "local", "azblob":
	default:
		errs = append(errs, fmt.Errorf("images.driver must be local or azblob, got %q", c.Images.Driver))
	}
	return errors.Join(errs...)
}

// findConfigFile walks up from dir looking for .leaflens.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Real I/O
// errors are propagated.
func findConfigFile(dir string) (string, []byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

func resolvePaths(c *ProjectConfig, baseDir string) {
	for _, p := range []*string{
		&c.Paths.Catalog,
		&c.Paths.SpeciesIndex,
		&c.Paths.SpeciesNames,
		&c.Paths.DiseaseLabels,
		&c.Paths.Uploads,
		&c.Storage.Dir,
		&c.Images.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	for _, m := range []*ModelConfig{&c.Models.Species, &c.Models.Disease} {
		for _, key := range []string{"model_path", "library_path"} {
			if p, ok := m.Params[key].(string); ok && p != "" && !filepath.IsAbs(p) {
				m.Params[key] = filepath.Join(baseDir, p)
			}
		}
	}
	if c.Storage.DSN != "" && c.Storage.DSN != ":memory:" && !filepath.IsAbs(c.Storage.DSN) && filepath.VolumeName(c.Storage.DSN) == "" && !hasScheme(c.Storage.DSN) {
		c.Storage.DSN = filepath.Join(baseDir, c.Storage.DSN)
	}
}

func hasScheme(dsn string) bool {
	return len(dsn) > 5 && dsn[:5] == "file:"
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Catalog != "" {
		dst.Paths.Catalog = src.Paths.Catalog
	}
	if src.Paths.SpeciesIndex != "" {
		dst.Paths.SpeciesIndex = src.Paths.SpeciesIndex
	}
	if src.Paths.SpeciesNames != "" {
		dst.Paths.SpeciesNames = src.Paths.SpeciesNames
	}
	if src.Paths.DiseaseLabels != "" {
		dst.Paths.DiseaseLabels = src.Paths.DiseaseLabels
	}
	if src.Paths.Uploads != "" {
		dst.Paths.Uploads = src.Paths.Uploads
	}

	// Models: a configured type replaces the whole entry.
	if src.Models.Species.Type != "" {
		dst.Models.Species = src.Models.Species
	}
	if src.Models.Disease.Type != "" {
		dst.Models.Disease = src.Models.Disease
	}

	// Pipeline
	if src.Pipeline.TopKSpecies != 0 {
		dst.Pipeline.TopKSpecies = src.Pipeline.TopKSpecies
	}
	if src.Pipeline.TopKDisease != 0 {
		dst.Pipeline.TopKDisease = src.Pipeline.TopKDisease
	}
	if src.Pipeline.CandidateFactor != 0 {
		dst.Pipeline.CandidateFactor = src.Pipeline.CandidateFactor
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.AllowedOrigins != nil {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
	if src.Server.MaxUploadMB != 0 {
		dst.Server.MaxUploadMB = src.Server.MaxUploadMB
	}

	// Storage
	if src.Storage.Driver != "" {
		dst.Storage.Driver = src.Storage.Driver
	}
	if src.Storage.Dir != "" {
		dst.Storage.Dir = src.Storage.Dir
	}
	if src.Storage.DSN != "" {
		dst.Storage.DSN = src.Storage.DSN
	}

	// Images
	if src.Images.Driver != "" {
		dst.Images.Driver = src.Images.Driver
	}
	if src.Images.Dir != "" {
		dst.Images.Dir = src.Images.Dir
	}
	if src.Images.AccountURL != "" {
		dst.Images.AccountURL = src.Images.AccountURL
	}
	if src.Images.Container != "" {
		dst.Images.Container = src.Images.Container
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Size != 0 {
		dst.Cache.Size = src.Cache.Size
	}
}

// CacheEnabled reports whether classifier caching is on.
func (c *ProjectConfig) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

func boolPtr(b bool) *bool {
	return &b
}

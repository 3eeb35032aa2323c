// Package wizard collects the answers `leaflens init` needs and renders
// them into a .leaflens.yaml file.
package wizard

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/leaflens/leaflens/internal/projectconfig"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Answers holds the fields collected by the init wizard.
type Answers struct {
	SpeciesModel  string
	DiseaseModel  string
	SpeciesCount  string
	DiseaseCount  string
	OnnxLibrary   string
	StorageDriver string
	ImagesDriver  string
	Port          string
}

// DefaultAnswers returns the answers used when no terminal is attached.
func DefaultAnswers() Answers {
	return Answers{
		SpeciesModel:  "models/species.onnx",
		DiseaseModel:  "models/disease.onnx",
		SpeciesCount:  "",
		DiseaseCount:  "38",
		StorageDriver: projectconfig.DefaultStorageDriver,
		ImagesDriver:  projectconfig.DefaultImagesDriver,
		Port:          strconv.Itoa(projectconfig.DefaultServerPort),
	}
}

// IsTerminal reports whether in is an interactive terminal.
func IsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run asks for each answer, starting from defaults.
func Run(in io.Reader, out io.Writer, defaults Answers) (Answers, error) {
	a := defaults

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Species model").
				Description("Path to the species classifier (.onnx)").
				Value(&a.SpeciesModel).
				Validate(required("species model path")),
			huh.NewInput().
				Title("Species classes").
				Description("Number of outputs of the species model").
				Value(&a.SpeciesCount).
				Validate(positiveInt),
			huh.NewInput().
				Title("Disease model").
				Description("Path to the disease classifier (.onnx)").
				Value(&a.DiseaseModel).
				Validate(required("disease model path")),
			huh.NewInput().
				Title("Disease classes").
				Description("Number of outputs of the disease model").
				Value(&a.DiseaseCount).
				Validate(positiveInt),
			huh.NewInput().
				Title("ONNX Runtime library").
				Description("Shared library path; leave empty for the system default").
				Value(&a.OnnxLibrary),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Scan storage").
				Options(
					huh.NewOption("JSON files", "file"),
					huh.NewOption("SQLite", "sqlite"),
				).
				Value(&a.StorageDriver),
			huh.NewSelect[string]().
				Title("Image storage").
				Options(
					huh.NewOption("Local directory", "local"),
					huh.NewOption("Azure Blob Storage", "azblob"),
				).
				Value(&a.ImagesDriver),
			huh.NewInput().
				Title("HTTP port").
				Value(&a.Port).
				Validate(positiveInt),
		),
	).
		WithInput(in).
		WithOutput(out)

	if !IsTerminal(in) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return Answers{}, fmt.Errorf("wizard failed: %w", err)
	}
	return a, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("%q is not a positive number", s)
	}
	return nil
}

// Config builds a project config from the answers on top of the defaults.
// An empty species class count is left for the user to fill in.
func (a Answers) Config() (*projectconfig.ProjectConfig, error) {
	cfg := projectconfig.New()

	species, err := modelConfig(a.SpeciesModel, a.SpeciesCount, a.OnnxLibrary)
	if err != nil {
		return nil, fmt.Errorf("species model: %w", err)
	}
	disease, err := modelConfig(a.DiseaseModel, a.DiseaseCount, a.OnnxLibrary)
	if err != nil {
		return nil, fmt.Errorf("disease model: %w", err)
	}
	cfg.Models.Species = species
	cfg.Models.Disease = disease

	if a.Port != "" {
		port, err := strconv.Atoi(strings.TrimSpace(a.Port))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", a.Port)
		}
		cfg.Server.Port = port
	}
	if a.StorageDriver != "" {
		cfg.Storage.Driver = a.StorageDriver
	}
	if cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "leaflens.db"
	}
	if a.ImagesDriver != "" {
		cfg.Images.Driver = a.ImagesDriver
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func modelConfig(path, count, library string) (projectconfig.ModelConfig, error) {
	params := map[string]any{"model_path": strings.TrimSpace(path)}
	if count = strings.TrimSpace(count); count != "" {
		n, err := strconv.Atoi(count)
		if err != nil || n <= 0 {
			return projectconfig.ModelConfig{}, fmt.Errorf("invalid class count %q", count)
		}
		params["classes"] = n
	}
	if library = strings.TrimSpace(library); library != "" {
		params["library_path"] = library
	}
	return projectconfig.ModelConfig{Type: projectconfig.DefaultModelType, Params: params}, nil
}

const header = `# LeafLens configuration. Relative paths are resolved against this file.
# Label tables: set paths.species_index and paths.species_names for the
# species model; disease labels default to the built-in catalog.
`

// Render encodes cfg as a commented .leaflens.yaml document.
func Render(cfg *projectconfig.ProjectConfig) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/scanstore"
	"github.com/leaflens/leaflens/internal/spinner"
	"github.com/spf13/cobra"
)

type predictOptions struct {
	topKSpecies int
	topKDisease int
	format      string
	save        bool
	userID      string
}

func newPredictCommand(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict IMAGE...",
		Short: "Predict species and disease for a batch of leaf images",
		Long: `Predict species and disease for a batch of leaf images.

All images are treated as photos of the same plant: their class
probabilities are averaged before ranking.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return predictCommandE(cmd, root, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.topKSpecies, "topk-species", 0, "Number of species to return (default: pipeline.top_k_species)")
	cmd.Flags().IntVar(&opts.topKDisease, "topk-disease", 0, "Number of diseases to return (default: pipeline.top_k_disease)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the result as a scan")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User ID recorded with a saved scan")

	return cmd
}

func predictCommandE(cmd *cobra.Command, root *rootOptions, opts *predictOptions, paths []string) error {
	if opts.format != "table" && opts.format != "json" {
		return &InputError{Err: fmt.Errorf("unknown format %q (want table or json)", opts.format)}
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("topk-species") {
		cfg.Pipeline.TopKSpecies = opts.topKSpecies
	}
	if cmd.Flags().Changed("topk-disease") {
		cfg.Pipeline.TopKDisease = opts.topKDisease
	}

	images := make([]prediction.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return &InputError{Err: fmt.Errorf("reading image: %w", err)}
		}
		images = append(images, prediction.Image{Name: filepath.Base(p), Data: data})
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	stop := spinner.StartOnTerminal(cmd.ErrOrStderr(), fmt.Sprintf("Classifying %d image(s)", len(images)))
	result, err := a.predictor.PredictBatch(cmd.Context(), images, cfg.Pipeline.TopKSpecies, cfg.Pipeline.TopKDisease)
	stop()
	if err != nil {
		return err
	}

	var scanID string
	if opts.save {
		store, err := openScanStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		scan := scanstore.FromResult(opts.userID, result, a.catalog.DisplayName)
		if err := store.Save(cmd.Context(), scan); err != nil {
			return fmt.Errorf("saving scan: %w", err)
		}
		scanID = scan.ID
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ScanID string `json:"scanId,omitempty"`
			*prediction.BatchInferenceResult
		}{scanID, result})
	}

	writePrediction(out, result, a.catalog)
	if scanID != "" {
		fmt.Fprintf(out, "\nSaved scan %s\n", scanID) //nolint:errcheck
	}
	return nil
}

func writePrediction(w io.Writer, result *prediction.BatchInferenceResult, cat *catalog.Catalog) {
	fmt.Fprintln(w, "Species") //nolint:errcheck
	rows := make([][]string, 0, len(result.SpeciesPredictions))
	for i, p := range result.SpeciesPredictions {
		rows = append(rows, []string{fmt.Sprint(i + 1), p.Label, formatConfidence(p.Confidence)})
	}
	writeTable(w, []string{"#", "LABEL", "CONFIDENCE"}, rows)

	fmt.Fprintln(w)             //nolint:errcheck
	fmt.Fprintln(w, "Diseases") //nolint:errcheck
	rows = rows[:0]
	for i, p := range result.DiseasePredictions {
		name := cat.DisplayName(p.Label)
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), p.Label, name, formatConfidence(p.Confidence)})
	}
	writeTable(w, []string{"#", "LABEL", "NAME", "CONFIDENCE"}, rows)

	fmt.Fprintln(w)                                     //nolint:errcheck
	fmt.Fprintf(w, "Filter: %s", result.Filter.Outcome) //nolint:errcheck
	if result.Filter.SpeciesKey != "" {
		fmt.Fprintf(w, " (species %s)", result.Filter.SpeciesKey) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
}

package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/leaflens/leaflens/internal/metrics"
	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/scanstore"
	"github.com/spf13/cobra"
)

func newScansCommand(root *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Inspect saved scans",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "Only include scans of this user")

	withStore := func(run func(cmd *cobra.Command, store scanstore.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			store, err := openScanStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			return run(cmd, store)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scans, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store scanstore.Store) error {
			scans, err := store.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(scans))
			for _, s := range scans {
				top := s.DiseaseName
				if top == "" {
					top = s.TopDisease
				}
				if top == "" {
					top = "-"
				}
				rows = append(rows, []string{
					s.ID,
					s.UserID,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					top,
					formatConfidence(s.Confidence),
					string(s.Filter.Outcome),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"ID", "USER", "CREATED", "TOP DISEASE", "CONFIDENCE", "FILTER"}, rows)
			return nil
		}),
	})

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export scans as zstd-compressed JSON lines",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store scanstore.Store) error {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			n, err := scanstore.Export(cmd.Context(), store, userID, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d scan(s) to %s\n", n, outPath) //nolint:errcheck
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "scans.jsonl.zst", "Output file")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarize confidence and filter outcomes of saved scans",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store scanstore.Store) error {
			scans, err := store.List(cmd.Context(), userID)
			if err != nil {
				return err
			}

			var confidences []float64
			outcomes := make([]prediction.FilterOutcome, 0, len(scans))
			for _, s := range scans {
				if s.TopDisease != "" {
					confidences = append(confidences, s.Confidence)
				}
				outcomes = append(outcomes, s.Filter.Outcome)
			}
			sum := metrics.SummarizeConfidence(confidences)
			shares := metrics.OutcomeShares(outcomes)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scans: %d\n", len(scans)) //nolint:errcheck
			if sum.Count > 0 {
				fmt.Fprintf(out, "Top disease confidence: mean %.2f%% (95%% CI %.2f-%.2f, sd %.2f)\n", //nolint:errcheck
					sum.Mean, sum.Low, sum.High, sum.StdDev)
			}

			keys := make([]string, 0, len(shares))
			for o := range shares {
				keys = append(keys, string(o))
			}
			slices.Sort(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, fmt.Sprintf("%.1f%%", shares[prediction.FilterOutcome(k)]*100)})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out) //nolint:errcheck
				writeTable(out, []string{"FILTER", "SHARE"}, rows)
			}
			return nil
		}),
	})

	return cmd
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/leaflens/leaflens/internal/canonical"
	"github.com/leaflens/leaflens/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate the species/disease catalog",
	}
	cmd.AddCommand(newCatalogValidateCommand(root))
	cmd.AddCommand(newCatalogListCommand(root))
	cmd.AddCommand(newCatalogCanonicalizeCommand(root))
	return cmd
}

func newCatalogValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a catalog file against the catalog schema",
		Long: `Validate a catalog file against the catalog schema.

Without FILE, the configured catalog (paths.catalog) is validated, or the
built-in catalog when none is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				name string
				data []byte
			)
			switch {
			case len(args) == 1:
				name = args[0]
			default:
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				name = cfg.Paths.Catalog
			}

			if name == "" {
				name, data = "built-in catalog", catalog.DefaultYAML()
			} else {
				var err error
				if data, err = os.ReadFile(name); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if problems := catalog.Validate(data); len(problems) > 0 {
				fmt.Fprintf(out, "%s: %d problem(s)\n", name, len(problems)) //nolint:errcheck
				for _, p := range problems {
					fmt.Fprintf(out, "  - %s\n", p) //nolint:errcheck
				}
				return &InputError{Err: fmt.Errorf("%s is not a valid catalog", name)}
			}

			c, err := catalog.Parse(data)
			if err != nil {
				return &InputError{Err: err}
			}
			diseases := 0
			for _, s := range c.All() {
				diseases += len(s.Diseases)
			}
			fmt.Fprintf(out, "%s: OK (%d species, %d diseases)\n", name, len(c.Keys()), diseases) //nolint:errcheck
			return nil
		},
	}
}

func newCatalogListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog species and their diseases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			c, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			var rows [][]string
			for _, s := range c.All() {
				names := strings.Join(s.ScientificNames, ", ")
				if names == "" {
					names = "-"
				}
				var diseases []string
				for _, d := range s.Diseases {
					if !d.Healthy {
						diseases = append(diseases, d.Name)
					}
				}
				rows = append(rows, []string{string(s.Key), names, fmt.Sprint(len(s.Diseases)), strings.Join(diseases, ", ")})
			}
			writeTable(cmd.OutOrStdout(), []string{"KEY", "SCIENTIFIC NAMES", "CLASSES", "DISEASES"}, rows)
			return nil
		},
	}
}

func newCatalogCanonicalizeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "canonicalize LABEL...",
		Short: "Map free-form species labels to catalog keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			c, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			canon := canonical.New(c)

			rows := make([][]string, 0, len(args))
			for _, label := range args {
				key, ok := canon.Canonicalize(label)
				value := string(key)
				if !ok {
					value = "-"
				}
				rows = append(rows, []string{label, value})
			}
			writeTable(cmd.OutOrStdout(), []string{"LABEL", "SPECIES"}, rows)
			return nil
		},
	}
}

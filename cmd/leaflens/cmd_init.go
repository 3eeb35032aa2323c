package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leaflens/leaflens/internal/projectconfig"
	"github.com/leaflens/leaflens/internal/wizard"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a " + projectconfig.FileName + " config file",
		Long: `Write a ` + projectconfig.FileName + ` config file.

When stdin is a terminal a short wizard asks for the model paths and storage
drivers; otherwise defaults are written. An existing file is left alone
unless --force is given.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return initCommandE(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func initCommandE(cmd *cobra.Command, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, projectconfig.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it unchanged (use --force to overwrite)\n", path) //nolint:errcheck
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	answers := wizard.DefaultAnswers()
	if wizard.IsTerminal(cmd.InOrStdin()) {
		var err error
		if answers, err = wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout(), answers); err != nil {
			return err
		}
	}

	cfg, err := answers.Config()
	if err != nil {
		return err
	}
	data, err := wizard.Render(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path) //nolint:errcheck
	return nil
}

package main

import (
	"log/slog"
	"os"

	"github.com/leaflens/leaflens/internal/logging"
	"github.com/leaflens/leaflens/internal/projectconfig"
	"github.com/leaflens/leaflens/internal/webapi"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	debug      bool
	logFormat  string
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leaflens",
		Short: "LeafLens - species-conditioned plant disease prediction",
		Long: `LeafLens predicts plant diseases from leaf photos.

Every batch of images is classified twice: once for the plant species and
once for the disease. The disease ranking is then restricted to diseases
the catalog allows for the predicted species.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format (text or json)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (default: search for "+projectconfig.FileName+")")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if opts.debug {
			level = slog.LevelDebug
		}
		return logging.Init(level, opts.logFormat, cmd.ErrOrStderr())
	}

	webapi.Version = version

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newPredictCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newScansCommand(opts))
	cmd.AddCommand(newInitCommand())

	return cmd
}

// loadConfig reads --config when set and otherwise searches upward from the
// working directory.
func (o *rootOptions) loadConfig() (*projectconfig.ProjectConfig, error) {
	if o.configPath != "" {
		return projectconfig.LoadFile(o.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return projectconfig.Load(wd)
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leaflens/leaflens/internal/logging"
	"github.com/leaflens/leaflens/internal/webapi"
	"github.com/leaflens/leaflens/internal/webserver"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prediction HTTP API",
		Long: `Start the prediction HTTP API.

Endpoints:
  POST   /api/predict              Classify uploaded images and save a scan
  GET    /api/scans                List scans (?user_id=)
  GET    /api/scans/summary        Confidence and outcome summary (?user_id=)
  GET    /api/scans/{id}           Get a scan
  GET    /api/scans/{id}/images/N  Get an uploaded image
  DELETE /api/scans/{id}           Delete a scan and its images
  GET    /api/species              List catalog species
  GET    /api/species/{key}        Allowed diseases of a species
  GET    /api/canonicalize         Map a label to a species key (?label=)
  GET    /api/health               Health check
  GET    /metrics                  Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			scans, err := openScanStore(cfg)
			if err != nil {
				return err
			}
			defer scans.Close() //nolint:errcheck

			images, err := openImageStore(cfg)
			if err != nil {
				return err
			}

			srv, err := webserver.New(webserver.Config{
				Host:           host,
				Port:           cfg.Server.Port,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				API: webapi.Deps{
					Predictor:      a.predictor,
					Catalog:        a.catalog,
					Canonicalizer:  a.canon,
					Scans:          scans,
					Images:         images,
					Recorder:       a.metrics,
					TopKSpecies:    cfg.Pipeline.TopKSpecies,
					TopKDisease:    cfg.Pipeline.TopKDisease,
					MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
				},
				Metrics: a.metrics.Handler(),
				Logger:  logging.New("http"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "leaflens API listening on http://%s\n", srv.Addr()) //nolint:errcheck
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Interface to listen on")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: server.port from config)")

	return cmd
}

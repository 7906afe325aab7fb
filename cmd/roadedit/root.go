package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"roadedit/internal/backend"
	"roadedit/internal/config"
	"roadedit/internal/geom"
	"roadedit/internal/imagery"
	"roadedit/internal/logging"
	"roadedit/internal/session"
	"roadedit/internal/tui"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "roadedit",
	Short:         "Review and correct vectorized road networks in the terminal",
	Long:          `roadedit loads the roads extracted for a task over its satellite imagery, lets you draw, move and delete them, and saves the result back to the backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			c.BackendURL, _ = cmd.Flags().GetString("backend")
		}
		if cmd.Flags().Changed("log-file") {
			c.LogFile, _ = cmd.Flags().GetString("log-file")
		}
		cfg = c
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "roadedit:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default roadedit.yaml when present)")
	rootCmd.PersistentFlags().String("backend", "", "Backend base URL")
	rootCmd.PersistentFlags().String("log-file", "", "Log file; the terminal belongs to the UI")
}

// openLog opens the configured log file. The TUI owns the terminal, so
// interactive commands never log to stderr.
func openLog() (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logging.OpenFile(cfg.LogFile, level)
}

func newBackend(logger *slog.Logger) *backend.Client {
	return backend.New(cfg.BackendURL, backend.WithTimeout(cfg.RequestTimeout), backend.WithLogger(logger))
}

// editorDeps wires the session collaborators from the configuration.
func editorDeps(client *backend.Client, logger *slog.Logger) (tui.Deps, error) {
	def, err := geom.FromSlice(cfg.DefaultBBox)
	if err != nil {
		return tui.Deps{}, fmt.Errorf("default_bbox: %w", err)
	}
	var img session.ImageryFetcher
	if cfg.ImageryURL != "" {
		img = imagery.New(cfg.ImageryURL,
			imagery.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
			imagery.WithLogger(logger))
	}
	loader := session.NewLoader(client, img,
		session.WithFallback(session.BBoxFallback(cfg.BBoxFallback), def),
		session.WithLoaderLogger(logger))
	gw := session.NewGateway(client,
		session.WithExportDir(cfg.ExportDir),
		session.WithSaveMode(session.SaveMode(cfg.SaveMode)),
		session.WithGatewayLogger(logger))
	return tui.Deps{
		Loader:  loader,
		Gateway: gw,
		Session: []session.Option{
			session.WithInitialZoom(cfg.InitialZoom),
			session.WithFitPadding(cfg.FitPadding),
			session.WithTileURL(cfg.TileURL),
		},
		Logger: logger,
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"roadedit/internal/fixture"
	"roadedit/internal/logging"
)

const shutdownTimeout = 5 * time.Second

var fixtureCmd = &cobra.Command{
	Use:   "fixture-server",
	Short: "Serve a directory of GeoJSON tasks as a local backend",
	Long: `Serves every <task_id>.geojson in --dir through the backend endpoints the
editor and dashboard use, plus an empty imagery index at /meta and metrics at
/metrics. Saves are written back to the directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		addr, _ := cmd.Flags().GetString("addr")

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger := logging.New(os.Stderr, level)

		store, err := fixture.LoadDir(dir)
		if err != nil {
			return err
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           fixture.New(store, fixture.WithLogger(logger)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("fixture server listening", "addr", addr, "dir", dir, "tasks", len(store.Rows()))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("fixture server: %w", err)
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(fixtureCmd)
	fixtureCmd.Flags().String("dir", "testdata/tasks", "Directory of <task_id>.geojson files")
	fixtureCmd.Flags().String("addr", ":8000", "Listen address")
}

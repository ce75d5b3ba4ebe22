package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagegest/internal/api"
	"github.com/dgallion1/pagegest/internal/config"
	"github.com/dgallion1/pagegest/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingest job API",
	Long: `Start the pagegest HTTP server.

Ingest requests are queued and processed by a pool of workers. All /api
routes require "Authorization: Bearer $PAGEGEST_API_KEY".

The server provides:
  - /health  - basic health check
  - /metrics - Prometheus metrics
  - /api/ingest - submit, poll and cancel ingest jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		v, err := loadConfig(cmd, map[string]string{config.KeyPort: "port"})
		if err != nil {
			return err
		}
		cfg := config.Load(v)

		log, err := newLogger(os.Stdout, true)
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}

		c, err := buildComponents(cfg, log)
		if err != nil {
			return err
		}
		defer c.Close()

		orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
			WorkerCount:  cfg.WorkerCount,
			MaxQueueSize: cfg.MaxQueueSize,
			JobTTL:       cfg.JobTTL,
		}, c.ingestor, log)
		orch.Start(ctx)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      api.NewServer(orch, c.stats, log, cfg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			<-ctx.Done()
			log.Info("shutting down...")

			orch.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting pagegest", "port", cfg.Port, "store", c.store.Name(), "workers", cfg.WorkerCount)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		<-stopped
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", config.Defaults().Port, "port to listen on")
}

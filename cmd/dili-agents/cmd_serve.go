package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/johnayoung/dili-agents/internal/consensus"
	"github.com/johnayoung/dili-agents/internal/metrics"
	"github.com/johnayoung/dili-agents/internal/provider"
	"github.com/johnayoung/dili-agents/internal/runner"
	"github.com/johnayoung/dili-agents/internal/server"
)

var serveFlags struct {
	addr      string
	accessLog bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve panels and aggregation over a JSON HTTP API",
	Long: `Starts an HTTP server exposing:

  GET  /health
  GET  /metrics
  GET  /api/v1/panels
  POST /api/v1/aggregate   majority vote over supplied answers
  POST /api/v1/classify    query a panel (needs provider API keys)

When no provider can be initialized the server still answers aggregate
requests and rejects classify requests with 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default: DILI_SERVER_ADDR or :8080)")
	f.BoolVar(&serveFlags.accessLog, "access-log", true, "Log every request")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger(slog.LevelInfo)
	if serveFlags.addr != "" {
		cfg.ServerAddr = serveFlags.addr
	}

	panels, err := loadPanels()
	if err != nil {
		return err
	}

	rec := metrics.New(true)
	deps := server.Deps{
		Panels:    panels,
		Metrics:   rec,
		Logger:    log,
		AccessLog: serveFlags.accessLog,
	}

	registry, err := provider.NewRegistryFor(panelModels(panels.Panels(), cfg.Model), nil)
	if err != nil {
		log.Warn("classification disabled", "error", err)
	} else {
		r := runner.New(registry, cfg.Timeout).WithObserver(rec).WithLogger(log)
		deps.Engine = consensus.NewEngine(registry, r,
			consensus.WithLogger(log),
			consensus.WithObserver(rec))

		reviewer, err := newReviewer(registry, log)
		if err != nil {
			log.Warn("label review disabled", "error", err)
		}
		deps.Reviewer = reviewer
	}

	srv := server.New(cfg, deps)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	return srv.Shutdown()
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joaodiaslobo/sd-kvserver/internal/admission"
	"github.com/joaodiaslobo/sd-kvserver/internal/config"
	"github.com/joaodiaslobo/sd-kvserver/internal/logging"
	"github.com/joaodiaslobo/sd-kvserver/internal/metrics"
	"github.com/joaodiaslobo/sd-kvserver/internal/server"
	"github.com/joaodiaslobo/sd-kvserver/internal/stats"
	"github.com/joaodiaslobo/sd-kvserver/internal/store"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(level, false)

	logger.Info().
		Int("max_clients", cfg.MaxClients).
		Int("database_shards", cfg.DataShards).
		Int("user_shards", cfg.UserShards).
		Str("listen_addr", cfg.ListenAddr).
		Bool("debug", cfg.Debug).
		Msg("kvserver: starting")

	st := store.New(cfg.DataShards, cfg.UserShards)
	adm := admission.New(cfg.MaxClients)
	reg := metrics.NewRegistry()

	statsInterval, err := time.ParseDuration(cfg.StatsInterval)
	if err != nil {
		logger.Warn().Err(err).Str("stats_interval", cfg.StatsInterval).Msg("kvserver: invalid stats interval, defaulting to 30s")
		statsInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter := stats.New(statsInterval, logger)
	go reporter.Run(ctx)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("kvserver: serving /metrics and /healthz")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("kvserver: metrics server failed")
			}
		}()
	}

	srv := server.New(cfg.ListenAddr, adm, st, reg, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("kvserver: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("kvserver: server exited with error")
		}
	}

	cancel()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info().Msg("kvserver: stopped")
}

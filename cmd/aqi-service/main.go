package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/air-quality-aqi/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/air-quality-aqi/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-aqi/internal/adapter/upstream"
	"github.com/couchcryptid/air-quality-aqi/internal/config"
	"github.com/couchcryptid/air-quality-aqi/internal/observability"
	"github.com/couchcryptid/air-quality-aqi/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// The upstream-backed endpoints are enabled by UPSTREAM_BASE_URL.
	var readings httpadapter.ReadingSource
	if cfg.UpstreamBaseURL != "" {
		readings = upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, metrics, logger)
		logger.Info("upstream API enabled", "base_url", cfg.UpstreamBaseURL, "timeout", cfg.UpstreamTimeout)
	} else {
		logger.Info("upstream API disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, readings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

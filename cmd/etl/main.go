package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/courier-delay-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/courier-delay-etl/internal/adapter/kafka"
	"github.com/couchcryptid/courier-delay-etl/internal/app"
	"github.com/couchcryptid/courier-delay-etl/internal/config"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
	"github.com/couchcryptid/courier-delay-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resources := app.New(cfg, metrics, logger)
	defer func() {
		if err := resources.Close(); err != nil {
			logger.Error("resource close error", "error", err)
		}
	}()

	transformer, err := resources.Transformer(ctx)
	if err != nil {
		logger.Error("failed to build transformer", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	sinks, err := resources.OptionalSinks(ctx)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}
	loaders := append(pipeline.MultiLoader{{Name: "kafka:" + cfg.KafkaSinkTopic, Loader: writer}}, sinks...)
	logger.Info("sinks configured", "outputs", loaders.Names())

	p := pipeline.New(reader, transformer, loaders, logger, metrics, cfg.BatchSize, cfg.TransformTimeout)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
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
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

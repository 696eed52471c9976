package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/coviddata"
	httpadapter "github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/nhs-hospitalization-etl/internal/adapter/kafka"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/config"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := coviddata.NewClient(cfg.SourceURL, cfg.SourceTimeout, metrics, logger)
	loader := pipeline.NewLoader(client, logger)

	opts := []pipeline.Option{pipeline.WithSchedule(cfg.RefreshSchedule)}

	// Kafka sink is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithSink(writer))
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	svc := pipeline.NewService(loader, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.RateLimit{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server first so /healthz answers during the initial load.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start refresh service.
	go func() {
		if err := svc.Start(ctx); err != nil {
			logger.Error("refresh service error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	svc.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

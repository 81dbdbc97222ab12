package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/WaltBox/compliance-notice-sub000/internal/campaign"
	"github.com/WaltBox/compliance-notice-sub000/internal/common"
	"github.com/WaltBox/compliance-notice-sub000/internal/events"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("statusworker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort, logger)
	defer metricsSrv.Shutdown(context.Background())

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL must be provided")
	}
	pool, err := common.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	readerFactory := func() *kafka.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.ServiceName,
			Topic:   cfg.DeliveryEventsTopic,
		})
	}

	worker := events.Worker{
		ReaderFactory: readerFactory,
		Store:         campaign.NewPostgresStore(pool),
		Logger:        logger,
	}

	logger.Info().Msg("status worker started")
	if err := worker.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("status worker stopped")
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/WaltBox/compliance-notice-sub000/internal/campaign"
	"github.com/WaltBox/compliance-notice-sub000/internal/common"
	"github.com/WaltBox/compliance-notice-sub000/internal/notice"
	"github.com/WaltBox/compliance-notice-sub000/internal/ratelimit"
	"github.com/WaltBox/compliance-notice-sub000/internal/transport"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("api")
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

	logStore := campaign.NewPostgresStore(pool)
	noticeStore := notice.NewPostgresStore(pool)

	var limiterStore ratelimit.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		limiterStore = ratelimit.NewRedisStore(redis.NewClient(opts))
		logger.Info().Msg("rate limiting backed by redis")
	} else {
		limiterStore = ratelimit.NewMemoryStore()
		logger.Info().Msg("rate limiting backed by process-local store")
	}

	sms := &transport.Twilio{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		Endpoint:   cfg.TwilioEndpoint,
	}
	email := &transport.SendGrid{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
		Endpoint:  cfg.SendGridEndpoint,
	}

	service := &campaign.Service{
		Store:           logStore,
		SMS:             sms,
		Email:           email,
		Quota:           &campaign.QuotaTracker{Store: logStore},
		Pacing:          cfg.PacingInterval,
		SMSDailyLimit:   cfg.SMSDailyLimit,
		EmailDailyLimit: cfg.EmailDailyLimit,
		Logger:          logger,
	}

	campaignHandler := campaign.NewHandler(service, logStore, logger)
	noticeHandler := notice.NewHandler(noticeStore, logger)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		campaignHandler.Routes(r)
		noticeHandler.AdminRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiterStore, int64(cfg.PublicRateLimit), cfg.PublicRateWindow, logger))
		noticeHandler.PublicRoutes(r)
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("api service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

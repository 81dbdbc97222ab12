package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort    int
	MetricsPort int
	DatabaseURL string
	RedisURL    string

	KafkaBrokers        []string
	DeliveryEventsTopic string

	OTLPEndpoint string
	ServiceName  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioEndpoint   string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridEndpoint  string

	SMSDailyLimit   int
	EmailDailyLimit int
	PacingInterval  time.Duration

	PublicRateLimit  int
	PublicRateWindow time.Duration
}

func LoadConfig(service string) (*Config, error) {
	cfg := &Config{ServiceName: service}

	httpPort, err := getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	metricsPort, err := getEnvInt("METRICS_PORT", httpPort+1000)
	if err != nil {
		return nil, err
	}
	cfg.MetricsPort = metricsPort

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	} else {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.DeliveryEventsTopic = getEnv("DELIVERY_EVENTS_TOPIC", "provider.delivery.events")

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	cfg.TwilioEndpoint = getEnv("TWILIO_ENDPOINT", "https://api.twilio.com")

	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.SendGridFromEmail = getEnv("SENDGRID_FROM_EMAIL", "notices@compliancenotice.app")
	cfg.SendGridFromName = getEnv("SENDGRID_FROM_NAME", "Compliance Notice")
	cfg.SendGridEndpoint = getEnv("SENDGRID_ENDPOINT", "https://api.sendgrid.com")

	smsLimit, err := getEnvInt("SMS_DAILY_LIMIT", 1000)
	if err != nil {
		return nil, err
	}
	cfg.SMSDailyLimit = smsLimit

	emailLimit, err := getEnvInt("EMAIL_DAILY_LIMIT", 2000)
	if err != nil {
		return nil, err
	}
	cfg.EmailDailyLimit = emailLimit

	pacingMs, err := getEnvInt("PACING_MS", 100)
	if err != nil {
		return nil, err
	}
	cfg.PacingInterval = time.Duration(pacingMs) * time.Millisecond

	publicLimit, err := getEnvInt("PUBLIC_RATE_LIMIT", 30)
	if err != nil {
		return nil, err
	}
	cfg.PublicRateLimit = publicLimit

	windowSec, err := getEnvInt("PUBLIC_RATE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.PublicRateWindow = time.Duration(windowSec) * time.Second

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

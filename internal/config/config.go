package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	ClinicTimezone           string
	NotifySink               string
	NotifyWebhookURL         string
	NotifyWebhookToken       string
	RateLimitPerMinute       int
	RateLimitBurst           int
	ClientRateLimitPerMinute int
	ClientRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		ClinicTimezone:           os.Getenv("CLINIC_TIMEZONE"),
		NotifySink:               os.Getenv("NOTIFY_SINK"),
		NotifyWebhookURL:         os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyWebhookToken:       os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		ClientRateLimitPerMinute: readInt("CLIENT_RATE_LIMIT_PER_MIN", 600),
		ClientRateLimitBurst:     readInt("CLIENT_RATE_LIMIT_BURST", 120),
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

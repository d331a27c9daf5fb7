package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrMissingCredentials is returned by Validate when the Zepp account
// credentials are absent. The run must not touch the network in that case.
var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	Email           string
	Password        string
	QueryDays       int
	LogLevel        string
	SinkURL         string
	SinkToken       string
	SinkOrg         string
	SinkMeasurement string
	SinkBucket      string
}

func Load() Config {
	return Config{
		Email:           envStr("API_EMAIL", ""),
		Password:        envStr("API_PASSWORD", ""),
		QueryDays:       envInt("QUERY_DURATION_DAYS", 2),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		SinkURL:         envStr("SINK_URL", ""),
		SinkToken:       envStr("SINK_TOKEN", ""),
		SinkOrg:         envStr("SINK_ORG", ""),
		SinkMeasurement: envStr("SINK_MEASUREMENT", "zepp"),
		SinkBucket:      envStr("SINK_BUCKET", "telegraf"),
	}
}

// Validate checks the required keys. Sink settings are not validated here:
// an unreachable sink surfaces as a connection error at write time.
func (c Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("API_EMAIL is required: %w", ErrMissingCredentials)
	}
	if c.Password == "" {
		return fmt.Errorf("API_PASSWORD is required: %w", ErrMissingCredentials)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

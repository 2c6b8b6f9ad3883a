package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ledgerchat control plane.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	// URL enables the Postgres-backed store when set. Empty means the
	// in-memory store with file snapshots.
	URL            string
	MaxConnections int
}

// GatewayConfig configures the completion gateway (the LLM behind the
// extraction agents). A missing APIKey is a configuration error surfaced
// at request time, never a silent degradation.
type GatewayConfig struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	Endpoint string // override; empty uses the provider default
	Model    string
	Timeout  time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("LEDGERCHAT_PORT", 8080),
		Version: envStr("LEDGERCHAT_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Gateway: GatewayConfig{
			Provider: envStr("LEDGERCHAT_GATEWAY_PROVIDER", "openai"),
			APIKey:   envStr("LEDGERCHAT_GATEWAY_API_KEY", ""),
			Endpoint: envStr("LEDGERCHAT_GATEWAY_ENDPOINT", ""),
			Model:    envStr("LEDGERCHAT_GATEWAY_MODEL", "gpt-4o-mini"),
			Timeout:  envDuration("LEDGERCHAT_GATEWAY_TIMEOUT", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "ledgerchat"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

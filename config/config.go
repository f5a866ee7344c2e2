// Package config loads the server configuration from a YAML file with
// environment variable overrides, or from the environment alone when no
// file is present.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration settings.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Redis         RedisConfig         `yaml:"redis"`
	NATS          NATSConfig          `yaml:"nats"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Match         MatchConfig         `yaml:"match"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// HTTPConfig holds the health and metrics listener configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds the document store configuration.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// PostgresConfig holds the report archive configuration. An empty DSN
// disables archiving.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// MatchConfig holds match lifecycle defaults.
type MatchConfig struct {
	// DisconnectTTL is how long a disconnected session survives before the
	// store expires it and the match loses the participant.
	DisconnectTTL time.Duration `yaml:"disconnect_ttl"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	Environment string `yaml:"environment"`
}

// LoadConfig loads the configuration from a YAML file, falling back to
// environment variables when the file does not exist. Environment variables
// override file values either way.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("DISCONNECT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DISCONNECT_TTL value: %v", err)
		}
		cfg.Match.DisconnectTTL = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}

	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("redis URL not set (redis.url or REDIS_URL)")
	}
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS URL not set (nats.url or NATS_URL)")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	return &cfg, nil
}

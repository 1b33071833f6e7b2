// Package config loads runtime settings from HRM_* environment variables
// (and a .env file when present).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "HRM_"

type Config struct {
	Env      string `koanf:"env" validate:"oneof=dev prod"`
	HTTPAddr string `koanf:"http_addr" validate:"required"`
	GRPCAddr string `koanf:"grpc_addr"` // empty disables the health RPC

	// Store selects the backend for attempts and the directory.
	Store  string `koanf:"store" validate:"oneof=sqlite memory"`
	DBPath string `koanf:"db_path" validate:"required_if=Store sqlite"`

	EnrollmentExpiry time.Duration `koanf:"enrollment_expiry" validate:"gt=0"`

	// Retention of resolved attempts and scan audit rows. 0 keeps everything.
	Retention     time.Duration `koanf:"retention" validate:"gte=0"`
	PruneInterval time.Duration `koanf:"prune_interval" validate:"gt=0"`

	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`

	OTelEndpoint string `koanf:"otel_endpoint"`
	SeedDev      bool   `koanf:"seed_dev"`
}

func Defaults() Config {
	return Config{
		Env:              "dev",
		HTTPAddr:         ":8080",
		Store:            "sqlite",
		DBPath:           "./data/hrm.db",
		EnrollmentExpiry: 5 * time.Minute,
		Retention:        24 * time.Hour,
		PruneInterval:    time.Hour,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load reads HRM_* variables over Defaults and validates the result.
// HRM_HTTP_ADDR maps to the "http_addr" key.
func Load() (Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

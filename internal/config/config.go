// Package config aggregates the service configuration from environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/snapmeal/internal/analysis"
	"github.com/dmitrymomot/snapmeal/internal/grant"
	"github.com/dmitrymomot/snapmeal/pkg/db"
	"github.com/dmitrymomot/snapmeal/pkg/logger"
	"github.com/dmitrymomot/snapmeal/pkg/redis"
	"github.com/dmitrymomot/snapmeal/pkg/storage"
)

// Config is the full service configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"ADDR" envDefault:":8080"`

	// AuthSecret signs and verifies bearer tokens.
	AuthSecret string `env:"AUTH_SECRET,required"`

	DB       db.Config
	Redis    redis.Config
	Storage  storage.Config
	Sentry   logger.SentryConfig
	Upload   grant.Config
	Engine   analysis.EngineConfig
	Analysis analysis.Config
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}

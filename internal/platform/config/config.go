// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
loaded first when present so development setups need no exported variables.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (Redis, marketplace client) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Environments

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// # Configuration Schema

// Config holds all runtime configuration for the Coursehub session edge.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Remote marketplace API
	BackendURL     string        `env:"BACKEND_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	VerifyTimeout  time.Duration `env:"VERIFY_TIMEOUT"  envDefault:"30s"`

	// Key-Value store (Redis) for token store and pending entitlements
	RedisURL string `env:"REDIS_URL,required"`

	// Relational Database (PostgreSQL) for the purchase ledger. Optional.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Browser session
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"coursehub_sid"`
	SessionTTL        time.Duration `env:"SESSION_TTL"         envDefault:"720h"`
	SessionIdleTTL    time.Duration `env:"SESSION_IDLE_TTL"    envDefault:"30m"`

	// PendingEntitlementTTL bounds the optimistic access window after a purchase.
	PendingEntitlementTTL time.Duration `env:"PENDING_ENTITLEMENT_TTL" envDefault:"15m"`

	// AllowUnverifiedPurchases trusts a failed verification call as success.
	// Refused outside development by [Config.Validate].
	AllowUnverifiedPurchases bool `env:"ALLOW_UNVERIFIED_PURCHASES" envDefault:"false"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("config: unknown ENVIRONMENT %q", c.Environment)
	}

	parsed, err := url.Parse(c.BackendURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("config: BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}

	// Access tokens travel to the marketplace API on every call.
	if c.IsProduction() && parsed.Scheme != "https" {
		return fmt.Errorf("config: BACKEND_URL must use https in production, got %q", c.BackendURL)
	}

	if c.BackendTimeout <= 0 || c.VerifyTimeout <= 0 {
		return errors.New("config: BACKEND_TIMEOUT and VERIFY_TIMEOUT must be positive")
	}

	if c.SessionTTL <= 0 || c.SessionIdleTTL <= 0 || c.PendingEntitlementTTL <= 0 {
		return errors.New("config: SESSION_TTL, SESSION_IDLE_TTL and PENDING_ENTITLEMENT_TTL must be positive")
	}

	if c.AllowUnverifiedPurchases && !c.IsDevelopment() {
		return fmt.Errorf("config: ALLOW_UNVERIFIED_PURCHASES cannot be enabled in %s", c.Environment)
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// HasDatabase reports whether the purchase ledger should be backed by PostgreSQL.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS entries, trimmed.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, strings.TrimSuffix(origin, "/"))
		}
	}
	return origins
}

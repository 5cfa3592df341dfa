// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for the credential store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// BcryptCost is the bcrypt cost factor (4–31) for auth key hashing; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// AuthKeyTTL is the default auth key lifetime for generated batches
	// (e.g. "8760h" for 365 days). Empty or "0" disables key expiry.
	AuthKeyTTL string `mapstructure:"AUTH_KEY_TTL"`
	// ChallengeTTL is the wallet challenge lifetime (e.g. "5m").
	ChallengeTTL string `mapstructure:"CHALLENGE_TTL"`
	// SweepInterval is how often the challenge sweeper runs (e.g. "60s").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("AUTH_KEY_TTL", "8760h") // 365d
	v.SetDefault("CHALLENGE_TTL", "5m")
	v.SetDefault("SWEEP_INTERVAL", "60s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AuthKeyTTLDuration parses AuthKeyTTL as a time.Duration. Returns 8760h if
// invalid; "0" explicitly disables key expiry and returns 0.
func (c *Config) AuthKeyTTLDuration() time.Duration {
	if c.AuthKeyTTL == "0" || c.AuthKeyTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.AuthKeyTTL)
	if err != nil || d < 0 {
		return 8760 * time.Hour
	}
	return d
}

// ChallengeTTLDuration parses ChallengeTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.ChallengeTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// SweepIntervalDuration parses SweepInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

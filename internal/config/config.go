// Package config defines the top-level configuration for the watch
// marketplace lifecycle engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WATCHD_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Stellar    StellarConfig    `toml:"stellar"`
	Escrow     EscrowConfig     `toml:"escrow"`
	Settlement SettlementConfig `toml:"settlement"`
	Sweep      SweepConfig      `toml:"sweep"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// StellarConfig holds the chain collaborator parameters.
type StellarConfig struct {
	HorizonURL        string   `toml:"horizon_url"`
	NetworkPassphrase string   `toml:"network_passphrase"`
	IssuerSeed        string   `toml:"issuer_seed"`
	AssetPrefix       string   `toml:"asset_prefix"`
	SubmitTimeout     duration `toml:"submit_timeout"`
}

// EscrowConfig holds lifecycle-engine parameters.
type EscrowConfig struct {
	DefaultDeadline  duration `toml:"default_deadline"`
	LockTTL          duration `toml:"lock_ttl"`
	OpenRateLimit    int      `toml:"open_rate_limit"` // opens per buyer per window
	OpenRateWindow   duration `toml:"open_rate_window"`
	ChainMaxAttempts int      `toml:"chain_max_attempts"`
	ChainBaseDelay   duration `toml:"chain_base_delay"`
	ChainMaxDelay    duration `toml:"chain_max_delay"`
}

// SettlementConfig holds commission parameters. Rates are keyed by evaluator
// tier; TierRates falls back to DefaultRate for unknown tiers.
type SettlementConfig struct {
	PlatformAccount string             `toml:"platform_account"`
	DefaultRate     float64            `toml:"default_rate"`
	TierRates       map[string]float64 `toml:"tier_rates"`
}

// SweepConfig holds the expiry sweep schedule.
type SweepConfig struct {
	Cron      string `toml:"cron"`
	BatchSize int    `toml:"batch_size"`
}

// ArchiveConfig holds parameters for archiving terminal contracts to object
// storage.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Cron           string   `toml:"cron"`
	After          duration `toml:"after"` // minimum age of a terminal contract before archiving
	BatchSize      int      `toml:"batch_size"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "72h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "watchd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Stellar: StellarConfig{
			HorizonURL:        "https://horizon-testnet.stellar.org",
			NetworkPassphrase: "Test SDF Network ; September 2015",
			AssetPrefix:       "WTCH",
			SubmitTimeout:     duration{30 * time.Second},
		},
		Escrow: EscrowConfig{
			DefaultDeadline:  duration{72 * time.Hour},
			LockTTL:          duration{15 * time.Second},
			OpenRateLimit:    5,
			OpenRateWindow:   duration{time.Minute},
			ChainMaxAttempts: 3,
			ChainBaseDelay:   duration{200 * time.Millisecond},
			ChainMaxDelay:    duration{2 * time.Second},
		},
		Settlement: SettlementConfig{
			PlatformAccount: "platform",
			DefaultRate:     0.03,
			TierRates: map[string]float64{
				"standard": 0.025,
				"master":   0.05,
			},
		},
		Sweep: SweepConfig{
			Cron:      "@every 1m",
			BatchSize: 100,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Cron:           "@daily",
			After:          duration{24 * time.Hour},
			BatchSize:      500,
			Region:         "us-east-1",
			Bucket:         "watchd-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"escrow_released", "escrow_refunded", "escrow_expired", "token_minted"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"sweep": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, sweep, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Stellar
	if c.Stellar.HorizonURL == "" {
		errs = append(errs, "stellar: horizon_url must not be empty")
	}
	if c.Stellar.NetworkPassphrase == "" {
		errs = append(errs, "stellar: network_passphrase must not be empty")
	}
	if c.Stellar.IssuerSeed == "" {
		errs = append(errs, "stellar: issuer_seed must be set (WATCHD_STELLAR_ISSUER_SEED)")
	}
	if c.Stellar.AssetPrefix == "" || len(c.Stellar.AssetPrefix) > 6 {
		errs = append(errs, fmt.Sprintf("stellar: asset_prefix must be 1-6 characters, got %q", c.Stellar.AssetPrefix))
	}

	// Escrow
	if c.Escrow.DefaultDeadline.Duration <= 0 {
		errs = append(errs, "escrow: default_deadline must be positive")
	}
	if c.Escrow.LockTTL.Duration <= 0 {
		errs = append(errs, "escrow: lock_ttl must be positive")
	}
	if c.Escrow.OpenRateLimit < 1 {
		errs = append(errs, "escrow: open_rate_limit must be >= 1")
	}
	if c.Escrow.ChainMaxAttempts < 1 {
		errs = append(errs, "escrow: chain_max_attempts must be >= 1")
	}

	// Settlement
	if c.Settlement.PlatformAccount == "" {
		errs = append(errs, "settlement: platform_account must not be empty")
	}
	if c.Settlement.DefaultRate < 0 || c.Settlement.DefaultRate >= 1 {
		errs = append(errs, fmt.Sprintf("settlement: default_rate must be in [0, 1), got %v", c.Settlement.DefaultRate))
	}
	for tier, rate := range c.Settlement.TierRates {
		if rate < 0 || rate >= 1 {
			errs = append(errs, fmt.Sprintf("settlement: tier_rates[%s] must be in [0, 1), got %v", tier, rate))
		}
	}

	// Sweep
	if c.Sweep.Cron == "" {
		errs = append(errs, "sweep: cron must not be empty")
	}
	if c.Sweep.BatchSize < 1 {
		errs = append(errs, "sweep: batch_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
		if c.Archive.Cron == "" {
			errs = append(errs, "archive: cron must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CommissionRate returns the commission rate for an evaluator tier, falling
// back to the default rate when the tier is unknown.
func (c *Config) CommissionRate(tier string) float64 {
	if rate, ok := c.Settlement.TierRates[tier]; ok {
		return rate
	}
	return c.Settlement.DefaultRate
}

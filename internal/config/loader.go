package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WATCHD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WATCHD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "WATCHD_MODE")
	setStr(&cfg.LogLevel, "WATCHD_LOG_LEVEL")

	// Postgres
	setStr(&cfg.Postgres.DSN, "WATCHD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WATCHD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WATCHD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WATCHD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WATCHD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WATCHD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WATCHD_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "WATCHD_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "WATCHD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WATCHD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WATCHD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "WATCHD_REDIS_TLS_ENABLED")

	// Stellar
	setStr(&cfg.Stellar.HorizonURL, "WATCHD_STELLAR_HORIZON_URL")
	setStr(&cfg.Stellar.NetworkPassphrase, "WATCHD_STELLAR_NETWORK_PASSPHRASE")
	setStr(&cfg.Stellar.IssuerSeed, "WATCHD_STELLAR_ISSUER_SEED")
	setStr(&cfg.Stellar.AssetPrefix, "WATCHD_STELLAR_ASSET_PREFIX")

	// Escrow
	setDuration(&cfg.Escrow.DefaultDeadline, "WATCHD_ESCROW_DEFAULT_DEADLINE")
	setDuration(&cfg.Escrow.LockTTL, "WATCHD_ESCROW_LOCK_TTL")
	setInt(&cfg.Escrow.OpenRateLimit, "WATCHD_ESCROW_OPEN_RATE_LIMIT")

	// Archive
	setBool(&cfg.Archive.Enabled, "WATCHD_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "WATCHD_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Bucket, "WATCHD_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "WATCHD_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "WATCHD_ARCHIVE_SECRET_KEY")

	// Server
	setBool(&cfg.Server.Enabled, "WATCHD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WATCHD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "WATCHD_SERVER_API_KEY")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "WATCHD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WATCHD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WATCHD_NOTIFY_DISCORD_WEBHOOK_URL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

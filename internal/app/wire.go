package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/Maicon-MK/integra--o-blockchain/internal/blob/s3"
	"github.com/Maicon-MK/integra--o-blockchain/internal/cache/redis"
	"github.com/Maicon-MK/integra--o-blockchain/internal/chain/stellar"
	"github.com/Maicon-MK/integra--o-blockchain/internal/config"
	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/notify"
	"github.com/Maicon-MK/integra--o-blockchain/internal/payment"
	"github.com/Maicon-MK/integra--o-blockchain/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	WatchStore      domain.WatchStore
	EscrowStore     domain.EscrowStore
	EvaluationStore domain.EvaluationStore
	TokenStore      domain.TokenStore
	CommissionStore domain.CommissionStore
	TransferStore   domain.TransferStore
	Evaluators      domain.EvaluatorDirectory

	// Redis-backed collaborators
	Listings    domain.ListingCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	Bus         domain.EventBus
	Stream      *redis.EventBus

	// Outbound collaborators
	Chain   domain.ChainClient
	Gateway domain.PaymentGateway

	// Blob storage (nil unless archiving is enabled)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.WatchStore = postgres.NewWatchStore(pool)
	deps.EscrowStore = postgres.NewEscrowStore(pool)
	deps.EvaluationStore = postgres.NewEvaluationStore(pool)
	deps.TokenStore = postgres.NewTokenStore(pool)
	deps.CommissionStore = postgres.NewCommissionStore(pool)
	deps.TransferStore = postgres.NewTransferStore(pool)
	deps.Evaluators = postgres.NewEvaluatorStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Listings = redis.NewListingCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.Stream = redis.NewEventBus(redisClient)
	deps.Bus = deps.Stream

	// --- Stellar chain client ---
	chainClient, err := stellar.New(stellar.Config{
		HorizonURL:        cfg.Stellar.HorizonURL,
		NetworkPassphrase: cfg.Stellar.NetworkPassphrase,
		IssuerSeed:        cfg.Stellar.IssuerSeed,
		SubmitTimeout:     cfg.Stellar.SubmitTimeout.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: stellar: %w", err)
	}
	deps.Chain = chainClient

	// --- Payment gateway ---
	deps.Gateway = payment.NewSimulator()

	// --- S3 blob storage (only when archiving is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.EscrowStore, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

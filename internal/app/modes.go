package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Maicon-MK/integra--o-blockchain/internal/notify"
	"github.com/Maicon-MK/integra--o-blockchain/internal/retry"
	"github.com/Maicon-MK/integra--o-blockchain/internal/server"
	"github.com/Maicon-MK/integra--o-blockchain/internal/server/handler"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
	"github.com/Maicon-MK/integra--o-blockchain/internal/worker"
)

// services bundles the domain services built on top of the wired
// dependencies. Every mode shares the same construction.
type services struct {
	watches     *service.WatchService
	evaluations *service.EvaluationService
	tokens      *service.TokenService
	settlement  *service.SettlementService
	escrows     *service.EscrowService
}

// buildServices constructs the service layer from the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	watchSvc := service.NewWatchService(
		deps.WatchStore, deps.TokenStore, deps.TransferStore,
		deps.Listings, deps.Bus, a.logger,
	)
	evalSvc := service.NewEvaluationService(
		deps.EvaluationStore, deps.Evaluators, deps.Bus, a.logger,
	)
	tokenSvc := service.NewTokenService(
		deps.TokenStore, deps.Chain, a.cfg.Stellar.AssetPrefix, deps.Bus, a.logger,
	)
	settlementSvc := service.NewSettlementService(
		deps.Gateway, deps.CommissionStore,
		a.cfg.Settlement.PlatformAccount, a.cfg.Settlement.DefaultRate, a.cfg.Settlement.TierRates,
		a.logger,
	)
	escrowSvc := service.NewEscrowService(
		deps.EscrowStore, deps.WatchStore, deps.TransferStore,
		evalSvc, tokenSvc, settlementSvc,
		deps.LockManager, deps.RateLimiter, deps.Listings, deps.Bus,
		service.EscrowConfig{
			DefaultDeadline: a.cfg.Escrow.DefaultDeadline.Duration,
			LockTTL:         a.cfg.Escrow.LockTTL.Duration,
			OpenRateLimit:   a.cfg.Escrow.OpenRateLimit,
			OpenRateWindow:  a.cfg.Escrow.OpenRateWindow.Duration,
			ChainRetry: retry.Policy{
				MaxAttempts: a.cfg.Escrow.ChainMaxAttempts,
				BaseDelay:   a.cfg.Escrow.ChainBaseDelay.Duration,
				MaxDelay:    a.cfg.Escrow.ChainMaxDelay.Duration,
			},
		},
		a.logger,
	)

	return &services{
		watches:     watchSvc,
		evaluations: evalSvc,
		tokens:      tokenSvc,
		settlement:  settlementSvc,
		escrows:     escrowSvc,
	}
}

// ServeMode runs the HTTP API without the background jobs.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startNotifierRelay(ctx, g, deps)
	a.startHTTPServer(ctx, g, svcs)
	return g.Wait()
}

// SweepMode runs only the background jobs: the expiry sweep and, when
// enabled, the archive job. Useful as a sidecar next to serve instances.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startNotifierRelay(ctx, g, deps)
	if err := a.startWorker(ctx, g, deps, svcs); err != nil {
		return err
	}
	return g.Wait()
}

// FullMode runs the HTTP API and the background jobs in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startNotifierRelay(ctx, g, deps)

	if err := a.startWorker(ctx, g, deps, svcs); err != nil {
		return err
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svcs)
	}
	return g.Wait()
}

// startNotifierRelay subscribes the operator alert channels to the lifecycle
// bus. A no-op unless at least one sender is configured.
func (a *App) startNotifierRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !deps.Notifier.Enabled() {
		return
	}
	relay := notify.NewEventNotifier(deps.Notifier, a.logger)
	g.Go(func() error {
		return relay.Run(ctx, deps.Stream)
	})
}

// startHTTPServer adds the HTTP server and its graceful shutdown to the
// errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svcs *services) {
	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:      handler.NewHealthHandler(a.logger),
			Watches:     handler.NewWatchHandler(svcs.watches, a.logger),
			Escrows:     handler.NewEscrowHandler(svcs.escrows, a.logger),
			Evaluations: handler.NewEvaluationHandler(svcs.evaluations, svcs.escrows, a.logger),
			Settlement:  handler.NewSettlementHandler(svcs.settlement, a.logger),
		},
		a.logger,
	)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startWorker starts the cron runner for the sweep and archive jobs.
func (a *App) startWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) error {
	runner := worker.NewRunner(svcs.escrows, deps.Archiver, worker.Config{
		SweepSpec:        a.cfg.Sweep.Cron,
		SweepBatchSize:   a.cfg.Sweep.BatchSize,
		ArchiveEnabled:   a.cfg.Archive.Enabled,
		ArchiveSpec:      a.cfg.Archive.Cron,
		ArchiveAfter:     a.cfg.Archive.After.Duration,
		ArchiveBatchSize: a.cfg.Archive.BatchSize,
	}, a.logger)

	if err := runner.Start(ctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return nil
}

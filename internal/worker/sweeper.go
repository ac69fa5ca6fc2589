// Package worker runs the background jobs: the expiry sweep that closes
// overdue contracts and the archive job that moves settled contracts to
// object storage.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	s3blob "github.com/Maicon-MK/integra--o-blockchain/internal/blob/s3"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
)

// Config tunes the background jobs. Cron specs use the standard five-field
// format.
type Config struct {
	SweepSpec      string
	SweepBatchSize int

	ArchiveEnabled   bool
	ArchiveSpec      string
	ArchiveAfter     time.Duration
	ArchiveBatchSize int
}

// Runner schedules and runs the background jobs until stopped.
type Runner struct {
	cron     *cron.Cron
	escrow   *service.EscrowService
	archiver *s3blob.Archiver
	cfg      Config
	logger   *slog.Logger
}

// NewRunner creates a Runner. archiver may be nil when archiving is disabled.
func NewRunner(escrow *service.EscrowService, archiver *s3blob.Archiver, cfg Config, logger *slog.Logger) *Runner {
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "* * * * *"
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	if cfg.ArchiveSpec == "" {
		cfg.ArchiveSpec = "0 3 * * *"
	}
	if cfg.ArchiveAfter <= 0 {
		cfg.ArchiveAfter = 30 * 24 * time.Hour
	}
	if cfg.ArchiveBatchSize <= 0 {
		cfg.ArchiveBatchSize = 500
	}
	return &Runner{
		cron:     cron.New(),
		escrow:   escrow,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "worker")),
	}
}

// Start registers the jobs and starts the scheduler. The jobs run until Stop
// is called or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.cfg.SweepSpec, func() { r.runSweep(ctx) }); err != nil {
		return fmt.Errorf("worker: schedule sweep: %w", err)
	}

	if r.cfg.ArchiveEnabled && r.archiver != nil {
		if _, err := r.cron.AddFunc(r.cfg.ArchiveSpec, func() { r.runArchive(ctx) }); err != nil {
			return fmt.Errorf("worker: schedule archive: %w", err)
		}
	}

	r.cron.Start()
	r.logger.Info("background jobs started",
		"sweep_spec", r.cfg.SweepSpec,
		"archive_enabled", r.cfg.ArchiveEnabled)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("background jobs stopped")
}

func (r *Runner) runSweep(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	expired, err := r.escrow.SweepExpired(jobCtx, r.cfg.SweepBatchSize)
	if err != nil {
		r.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if expired > 0 {
		r.logger.Info("expiry sweep run", "expired", expired)
	}
}

func (r *Runner) runArchive(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.cfg.ArchiveAfter)
	archived, err := r.archiver.ArchiveContracts(jobCtx, cutoff, r.cfg.ArchiveBatchSize)
	if err != nil {
		r.logger.Error("archive run failed", "error", err)
		return
	}
	if archived > 0 {
		r.logger.Info("archive run", "archived", archived)
	}
}

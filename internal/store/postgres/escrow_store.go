package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// EscrowStore implements domain.EscrowStore using PostgreSQL. The single
// active contract per watch invariant is enforced by a partial unique index;
// optimistic concurrency is enforced by a state_version compare-and-swap.
type EscrowStore struct {
	pool *pgxpool.Pool
}

// NewEscrowStore creates a new EscrowStore backed by the given connection pool.
func NewEscrowStore(pool *pgxpool.Pool) *EscrowStore {
	return &EscrowStore{pool: pool}
}

// Create inserts a new escrow contract. If a non-terminal contract already
// exists for the watch the partial unique index rejects the insert and
// ErrConflict is returned.
func (s *EscrowStore) Create(ctx context.Context, c domain.EscrowContract) error {
	const query = `
		INSERT INTO escrow_contracts (
			id, watch_id, buyer_id, seller_id, buyer_key, amount, state,
			hold_ref, evaluation_id, retry_eligible, needs_intervention,
			refund_pending, state_version, created_at, deadline, resolved_at,
			archived
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.WatchID, c.BuyerID, c.SellerID, c.BuyerKey, int64(c.Amount),
		string(c.State), c.HoldRef, c.EvaluationID, c.RetryEligible,
		c.NeedsIntervention, c.RefundPending, c.StateVersion, c.CreatedAt,
		c.Deadline, c.ResolvedAt, c.Archived,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: create escrow contract %s: %w", c.ID, err)
	}
	return nil
}

const escrowSelectCols = `id, watch_id, buyer_id, seller_id, buyer_key, amount,
	state, hold_ref, evaluation_id, retry_eligible, needs_intervention,
	refund_pending, state_version, created_at, deadline, resolved_at, archived`

func scanEscrow(scanner interface{ Scan(dest ...any) error }) (domain.EscrowContract, error) {
	var c domain.EscrowContract
	var state string
	var amount int64

	err := scanner.Scan(
		&c.ID, &c.WatchID, &c.BuyerID, &c.SellerID, &c.BuyerKey, &amount,
		&state, &c.HoldRef, &c.EvaluationID, &c.RetryEligible,
		&c.NeedsIntervention, &c.RefundPending, &c.StateVersion, &c.CreatedAt,
		&c.Deadline, &c.ResolvedAt, &c.Archived,
	)
	if err != nil {
		return domain.EscrowContract{}, err
	}

	c.Amount = domain.Money(amount)
	c.State = domain.EscrowState(state)
	return c, nil
}

// GetByID retrieves a single contract by ID.
func (s *EscrowStore) GetByID(ctx context.Context, id string) (domain.EscrowContract, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escrowSelectCols+` FROM escrow_contracts WHERE id = $1`, id)

	c, err := scanEscrow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EscrowContract{}, domain.ErrNotFound
		}
		return domain.EscrowContract{}, fmt.Errorf("postgres: get escrow contract %s: %w", id, err)
	}
	return c, nil
}

// GetActiveByWatch returns the single non-terminal contract for a watch, or
// ErrNotFound when none exists.
func (s *EscrowStore) GetActiveByWatch(ctx context.Context, watchID string) (domain.EscrowContract, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escrowSelectCols+` FROM escrow_contracts
		 WHERE watch_id = $1 AND state NOT IN ('released', 'refunded', 'expired')`,
		watchID)

	c, err := scanEscrow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EscrowContract{}, domain.ErrNotFound
		}
		return domain.EscrowContract{}, fmt.Errorf("postgres: get active escrow for watch %s: %w", watchID, err)
	}
	return c, nil
}

// Update applies a compare-and-swap on state_version. A lost race returns
// ErrConflict; the first writer wins and the loser must re-read.
func (s *EscrowStore) Update(ctx context.Context, c domain.EscrowContract, expectedVersion int64) error {
	const query = `
		UPDATE escrow_contracts SET
			state = $1, hold_ref = $2, evaluation_id = $3,
			retry_eligible = $4, needs_intervention = $5,
			refund_pending = $6, resolved_at = $7, archived = $8,
			state_version = state_version + 1
		WHERE id = $9 AND state_version = $10`

	tag, err := s.pool.Exec(ctx, query,
		string(c.State), c.HoldRef, c.EvaluationID,
		c.RetryEligible, c.NeedsIntervention,
		c.RefundPending, c.ResolvedAt, c.Archived,
		c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: update escrow contract %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ListExpirable returns contracts the expiry sweep may act on: past deadline
// and still in a state without an evaluation outcome.
func (s *EscrowStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.EscrowContract, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+escrowSelectCols+` FROM escrow_contracts
		 WHERE state IN ('funded', 'awaiting_evaluation') AND deadline < $1
		 ORDER BY deadline
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expirable contracts: %w", err)
	}
	defer rows.Close()

	return scanEscrowRows(rows)
}

// ListRefundPending returns expired contracts whose refund has not landed
// yet. These are re-driven by the sweep until the idempotent refund succeeds.
func (s *EscrowStore) ListRefundPending(ctx context.Context, limit int) ([]domain.EscrowContract, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+escrowSelectCols+` FROM escrow_contracts
		 WHERE state = 'expired' AND refund_pending
		 ORDER BY resolved_at
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list refund-pending contracts: %w", err)
	}
	defer rows.Close()

	return scanEscrowRows(rows)
}

// ListTerminalUnarchived returns terminal contracts resolved before the
// cutoff that have not yet been archived to object storage. Contracts with a
// pending refund stay out of the archive until the money has moved.
func (s *EscrowStore) ListTerminalUnarchived(ctx context.Context, before time.Time, limit int) ([]domain.EscrowContract, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+escrowSelectCols+` FROM escrow_contracts
		 WHERE state IN ('released', 'refunded', 'expired')
		   AND archived = FALSE AND refund_pending = FALSE
		   AND resolved_at IS NOT NULL AND resolved_at < $1
		 ORDER BY resolved_at
		 LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal unarchived contracts: %w", err)
	}
	defer rows.Close()

	return scanEscrowRows(rows)
}

// MarkArchived flags the given contracts as archived.
func (s *EscrowStore) MarkArchived(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE escrow_contracts SET archived = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: mark contracts archived: %w", err)
	}
	return nil
}

func scanEscrowRows(rows pgx.Rows) ([]domain.EscrowContract, error) {
	var contracts []domain.EscrowContract
	for rows.Next() {
		c, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan escrow contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

var _ domain.EscrowStore = (*EscrowStore)(nil)

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// EvaluatorStore implements domain.EvaluatorDirectory using PostgreSQL.
type EvaluatorStore struct {
	pool *pgxpool.Pool
}

// NewEvaluatorStore creates a new EvaluatorStore backed by the given pool.
func NewEvaluatorStore(pool *pgxpool.Pool) *EvaluatorStore {
	return &EvaluatorStore{pool: pool}
}

const evaluatorSelectCols = `id, name, category, tier, fee, active, chain_key`

func scanEvaluator(scanner interface{ Scan(dest ...any) error }) (domain.EvaluatorRef, error) {
	var e domain.EvaluatorRef
	var fee int64
	err := scanner.Scan(&e.ID, &e.Name, &e.Category, &e.Tier, &fee, &e.Active, &e.ChainKey)
	e.Fee = domain.Money(fee)
	return e, err
}

// FindEligible picks the cheapest active evaluator accredited for the
// category. No match means ErrNoEvaluatorAvailable.
func (s *EvaluatorStore) FindEligible(ctx context.Context, category string) (domain.EvaluatorRef, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+evaluatorSelectCols+` FROM evaluators
		 WHERE category = $1 AND active
		 ORDER BY fee, id
		 LIMIT 1`, category)

	e, err := scanEvaluator(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EvaluatorRef{}, domain.ErrNoEvaluatorAvailable
		}
		return domain.EvaluatorRef{}, fmt.Errorf("postgres: find evaluator for category %s: %w", category, err)
	}
	return e, nil
}

// GetByID retrieves an evaluator by id.
func (s *EvaluatorStore) GetByID(ctx context.Context, id string) (domain.EvaluatorRef, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+evaluatorSelectCols+` FROM evaluators WHERE id = $1`, id)

	e, err := scanEvaluator(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EvaluatorRef{}, domain.ErrNotFound
		}
		return domain.EvaluatorRef{}, fmt.Errorf("postgres: get evaluator %s: %w", id, err)
	}
	return e, nil
}

// Upsert registers or updates an evaluator in the directory.
func (s *EvaluatorStore) Upsert(ctx context.Context, e domain.EvaluatorRef) error {
	const query = `
		INSERT INTO evaluators (id, name, category, tier, fee, active, chain_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			tier = EXCLUDED.tier,
			fee = EXCLUDED.fee,
			active = EXCLUDED.active,
			chain_key = EXCLUDED.chain_key`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Name, e.Category, e.Tier, int64(e.Fee), e.Active, e.ChainKey)
	if err != nil {
		return fmt.Errorf("postgres: upsert evaluator %s: %w", e.ID, err)
	}
	return nil
}

var _ domain.EvaluatorDirectory = (*EvaluatorStore)(nil)

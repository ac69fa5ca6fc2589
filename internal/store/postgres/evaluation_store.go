package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// EvaluationStore implements domain.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *pgxpool.Pool
}

// NewEvaluationStore creates a new EvaluationStore backed by the given pool.
func NewEvaluationStore(pool *pgxpool.Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// Create inserts a new pending evaluation.
func (s *EvaluationStore) Create(ctx context.Context, e domain.Evaluation) error {
	const query = `
		INSERT INTO evaluations (
			id, watch_id, contract_id, evaluator_id, result,
			certificate_ref, notes, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.WatchID, e.ContractID, e.EvaluatorID, string(e.Result),
		e.CertificateRef, e.Notes, e.CreatedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create evaluation %s: %w", e.ID, err)
	}
	return nil
}

const evaluationSelectCols = `id, watch_id, contract_id, evaluator_id, result,
	certificate_ref, notes, created_at, completed_at`

func scanEvaluation(scanner interface{ Scan(dest ...any) error }) (domain.Evaluation, error) {
	var e domain.Evaluation
	var result string

	err := scanner.Scan(
		&e.ID, &e.WatchID, &e.ContractID, &e.EvaluatorID, &result,
		&e.CertificateRef, &e.Notes, &e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		return domain.Evaluation{}, err
	}

	e.Result = domain.EvaluationResult(result)
	return e, nil
}

// GetByID retrieves a single evaluation by ID.
func (s *EvaluationStore) GetByID(ctx context.Context, id string) (domain.Evaluation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+evaluationSelectCols+` FROM evaluations WHERE id = $1`, id)

	e, err := scanEvaluation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Evaluation{}, domain.ErrNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("postgres: get evaluation %s: %w", id, err)
	}
	return e, nil
}

// GetByContract returns the most recent evaluation for a contract.
func (s *EvaluationStore) GetByContract(ctx context.Context, contractID string) (domain.Evaluation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+evaluationSelectCols+` FROM evaluations
		 WHERE contract_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, contractID)

	e, err := scanEvaluation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Evaluation{}, domain.ErrNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("postgres: get evaluation for contract %s: %w", contractID, err)
	}
	return e, nil
}

// Complete records the result exactly once. The WHERE result = 'pending'
// predicate makes a second completion attempt affect zero rows, which is
// surfaced as ErrAlreadyCompleted.
func (s *EvaluationStore) Complete(ctx context.Context, id string, result domain.EvaluationResult, certificateRef string, at time.Time) error {
	const query = `
		UPDATE evaluations SET result = $1, certificate_ref = $2, completed_at = $3
		WHERE id = $4 AND result = 'pending'`

	tag, err := s.pool.Exec(ctx, query, string(result), certificateRef, at, id)
	if err != nil {
		return fmt.Errorf("postgres: complete evaluation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a repeat completion from a missing row.
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrAlreadyCompleted
	}
	return nil
}

var _ domain.EvaluationStore = (*EvaluationStore)(nil)

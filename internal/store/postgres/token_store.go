package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL. Rows are
// append-only: there is no update or delete path, and the unique op_ref
// column collapses retried chain operations into a single record.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Append inserts a new token record. A duplicate op_ref (a retried mint that
// already landed) or duplicate (watch, seq) fails with ErrAlreadyExists.
func (s *TokenStore) Append(ctx context.Context, rec domain.TokenRecord) error {
	const query = `
		INSERT INTO token_records (
			id, watch_id, contract_id, op_ref, tx_ref, owner_key, seq, minted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.WatchID, rec.ContractID, rec.OpRef, rec.TxRef,
		rec.OwnerKey, rec.Seq, rec.MintedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: append token record %s: %w", rec.ID, err)
	}
	return nil
}

const tokenSelectCols = `id, watch_id, contract_id, op_ref, tx_ref, owner_key, seq, minted_at`

func scanToken(scanner interface{ Scan(dest ...any) error }) (domain.TokenRecord, error) {
	var r domain.TokenRecord
	err := scanner.Scan(
		&r.ID, &r.WatchID, &r.ContractID, &r.OpRef, &r.TxRef,
		&r.OwnerKey, &r.Seq, &r.MintedAt,
	)
	return r, err
}

// GetByOpRef retrieves the record created by a particular chain operation.
func (s *TokenStore) GetByOpRef(ctx context.Context, opRef string) (domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tokenSelectCols+` FROM token_records WHERE op_ref = $1`, opRef)

	r, err := scanToken(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TokenRecord{}, domain.ErrNotFound
		}
		return domain.TokenRecord{}, fmt.Errorf("postgres: get token record by op_ref %s: %w", opRef, err)
	}
	return r, nil
}

// Active returns the record with the highest sequence for a watch, i.e. the
// current certified owner.
func (s *TokenStore) Active(ctx context.Context, watchID string) (domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tokenSelectCols+` FROM token_records
		 WHERE watch_id = $1
		 ORDER BY seq DESC
		 LIMIT 1`, watchID)

	r, err := scanToken(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TokenRecord{}, domain.ErrNotFound
		}
		return domain.TokenRecord{}, fmt.Errorf("postgres: get active token for watch %s: %w", watchID, err)
	}
	return r, nil
}

// History returns the full provenance history for a watch in sequence order.
func (s *TokenStore) History(ctx context.Context, watchID string) ([]domain.TokenRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenSelectCols+` FROM token_records
		 WHERE watch_id = $1
		 ORDER BY seq`, watchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: token history for watch %s: %w", watchID, err)
	}
	defer rows.Close()

	var records []domain.TokenRecord
	for rows.Next() {
		r, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ domain.TokenStore = (*TokenStore)(nil)

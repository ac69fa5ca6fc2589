package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Create appends an ownership transfer record.
func (s *TransferStore) Create(ctx context.Context, t domain.OwnershipTransfer) error {
	const query = `
		INSERT INTO ownership_transfers (
			id, watch_id, contract_id, from_owner, to_owner, price, tx_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.WatchID, t.ContractID, t.FromOwner, t.ToOwner,
		int64(t.Price), t.TxRef, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create ownership transfer %s: %w", t.ID, err)
	}
	return nil
}

// ListByWatch returns all transfers recorded for a watch, oldest first.
func (s *TransferStore) ListByWatch(ctx context.Context, watchID string) ([]domain.OwnershipTransfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, watch_id, contract_id, from_owner, to_owner, price, tx_ref, created_at
		 FROM ownership_transfers
		 WHERE watch_id = $1
		 ORDER BY created_at`, watchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers for watch %s: %w", watchID, err)
	}
	defer rows.Close()

	var out []domain.OwnershipTransfer
	for rows.Next() {
		var t domain.OwnershipTransfer
		var price int64
		if err := rows.Scan(&t.ID, &t.WatchID, &t.ContractID, &t.FromOwner,
			&t.ToOwner, &price, &t.TxRef, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ownership transfer: %w", err)
		}
		t.Price = domain.Money(price)
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ domain.TransferStore = (*TransferStore)(nil)

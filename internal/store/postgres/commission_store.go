package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// CommissionStore implements domain.CommissionStore using PostgreSQL.
type CommissionStore struct {
	pool *pgxpool.Pool
}

// NewCommissionStore creates a new CommissionStore backed by the given pool.
func NewCommissionStore(pool *pgxpool.Pool) *CommissionStore {
	return &CommissionStore{pool: pool}
}

// Create inserts a commission record. The UNIQUE(contract_id, beneficiary)
// constraint makes a repeated settlement write fail with ErrAlreadyExists.
func (s *CommissionStore) Create(ctx context.Context, c domain.Commission) error {
	const query = `
		INSERT INTO commissions (
			id, contract_id, beneficiary, beneficiary_id, rate, amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.ContractID, string(c.Beneficiary), c.BeneficiaryID,
		c.Rate, int64(c.Amount), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create commission %s: %w", c.ID, err)
	}
	return nil
}

// ListByContract returns all commissions settled for one contract.
func (s *CommissionStore) ListByContract(ctx context.Context, contractID string) ([]domain.Commission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, contract_id, beneficiary, beneficiary_id, rate, amount, created_at
		 FROM commissions
		 WHERE contract_id = $1
		 ORDER BY created_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commissions for contract %s: %w", contractID, err)
	}
	defer rows.Close()

	var out []domain.Commission
	for rows.Next() {
		var c domain.Commission
		var beneficiary string
		var amount int64
		if err := rows.Scan(&c.ID, &c.ContractID, &beneficiary, &c.BeneficiaryID,
			&c.Rate, &amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan commission: %w", err)
		}
		c.Beneficiary = domain.CommissionBeneficiary(beneficiary)
		c.Amount = domain.Money(amount)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SumByBeneficiary totals commission amounts earned by a beneficiary class
// since the given time.
func (s *CommissionStore) SumByBeneficiary(ctx context.Context, b domain.CommissionBeneficiary, since time.Time) (domain.Money, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM commissions
		 WHERE beneficiary = $1 AND created_at >= $2`,
		string(b), since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum commissions for %s: %w", b, err)
	}
	return domain.Money(total), nil
}

var _ domain.CommissionStore = (*CommissionStore)(nil)

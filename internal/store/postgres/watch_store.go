package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// WatchStore implements domain.WatchStore using PostgreSQL.
type WatchStore struct {
	pool *pgxpool.Pool
}

// NewWatchStore creates a new WatchStore backed by the given connection pool.
func NewWatchStore(pool *pgxpool.Pool) *WatchStore {
	return &WatchStore{pool: pool}
}

// Create inserts a new watch. A duplicate serial fails with ErrAlreadyExists.
func (s *WatchStore) Create(ctx context.Context, w domain.Watch) error {
	const query = `
		INSERT INTO watches (
			id, serial, brand, model, year, category, condition,
			owner_id, asking_price, state, state_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.Serial, w.Brand, w.Model, w.Year, w.Category, w.Condition,
		w.OwnerID, int64(w.AskingPrice), string(w.State), w.StateVersion,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create watch %s: %w", w.ID, err)
	}
	return nil
}

const watchSelectCols = `id, serial, brand, model, year, category, condition,
	owner_id, asking_price, state, state_version, created_at, updated_at`

func scanWatch(scanner interface{ Scan(dest ...any) error }) (domain.Watch, error) {
	var w domain.Watch
	var state string
	var price int64

	err := scanner.Scan(
		&w.ID, &w.Serial, &w.Brand, &w.Model, &w.Year, &w.Category, &w.Condition,
		&w.OwnerID, &price, &state, &w.StateVersion, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return domain.Watch{}, err
	}

	w.AskingPrice = domain.Money(price)
	w.State = domain.WatchState(state)
	return w, nil
}

// GetByID retrieves a single watch by ID.
func (s *WatchStore) GetByID(ctx context.Context, id string) (domain.Watch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+watchSelectCols+` FROM watches WHERE id = $1`, id)

	w, err := scanWatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Watch{}, domain.ErrNotFound
		}
		return domain.Watch{}, fmt.Errorf("postgres: get watch %s: %w", id, err)
	}
	return w, nil
}

// GetBySerial retrieves a watch by its immutable serial number.
func (s *WatchStore) GetBySerial(ctx context.Context, serial string) (domain.Watch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+watchSelectCols+` FROM watches WHERE serial = $1`, serial)

	w, err := scanWatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Watch{}, domain.ErrNotFound
		}
		return domain.Watch{}, fmt.Errorf("postgres: get watch by serial %s: %w", serial, err)
	}
	return w, nil
}

// ListByState returns watches in the given lifecycle state with pagination.
func (s *WatchStore) ListByState(ctx context.Context, state domain.WatchState, opts domain.ListOpts) ([]domain.Watch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+watchSelectCols+` FROM watches
		 WHERE state = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		string(state), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watches by state: %w", err)
	}
	defer rows.Close()

	var watches []domain.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// Update applies a compare-and-swap keyed on the expected state version,
// bumping the version on success. ErrConflict signals a lost race; the caller
// must re-read and retry.
func (s *WatchStore) Update(ctx context.Context, w domain.Watch, expectedVersion int64) error {
	const query = `
		UPDATE watches SET
			owner_id = $1, asking_price = $2, state = $3,
			state_version = state_version + 1, updated_at = NOW()
		WHERE id = $4 AND state_version = $5`

	tag, err := s.pool.Exec(ctx, query,
		w.OwnerID, int64(w.AskingPrice), string(w.State), w.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: update watch %s: %w", w.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

var _ domain.WatchStore = (*WatchStore)(nil)

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// WatchStore persists watches. Update applies a compare-and-swap keyed on the
// watch's StateVersion and returns ErrConflict when the stored version no
// longer matches.
type WatchStore interface {
	Create(ctx context.Context, w Watch) error
	GetByID(ctx context.Context, id string) (Watch, error)
	GetBySerial(ctx context.Context, serial string) (Watch, error)
	ListByState(ctx context.Context, state WatchState, opts ListOpts) ([]Watch, error)
	Update(ctx context.Context, w Watch, expectedVersion int64) error
}

// EscrowStore persists escrow contracts. Create must fail with ErrConflict if
// a non-terminal contract already exists for the watch; Update applies a
// compare-and-swap on StateVersion.
type EscrowStore interface {
	Create(ctx context.Context, c EscrowContract) error
	GetByID(ctx context.Context, id string) (EscrowContract, error)
	GetActiveByWatch(ctx context.Context, watchID string) (EscrowContract, error)
	Update(ctx context.Context, c EscrowContract, expectedVersion int64) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]EscrowContract, error)
	ListRefundPending(ctx context.Context, limit int) ([]EscrowContract, error)
	ListTerminalUnarchived(ctx context.Context, before time.Time, limit int) ([]EscrowContract, error)
	MarkArchived(ctx context.Context, ids []string) error
}

// EvaluationStore persists evaluations. Complete records a result exactly
// once per evaluation; a second attempt fails with ErrAlreadyCompleted.
type EvaluationStore interface {
	Create(ctx context.Context, e Evaluation) error
	GetByID(ctx context.Context, id string) (Evaluation, error)
	GetByContract(ctx context.Context, contractID string) (Evaluation, error)
	Complete(ctx context.Context, id string, result EvaluationResult, certificateRef string, at time.Time) error
}

// TokenStore persists the append-only token provenance history. Append must
// fail with ErrAlreadyExists when a record with the same OpRef is present,
// which makes retried mints collapse into a single row.
type TokenStore interface {
	Append(ctx context.Context, rec TokenRecord) error
	GetByOpRef(ctx context.Context, opRef string) (TokenRecord, error)
	Active(ctx context.Context, watchID string) (TokenRecord, error)
	History(ctx context.Context, watchID string) ([]TokenRecord, error)
}

// CommissionStore persists commissions tied to resolved contracts.
type CommissionStore interface {
	Create(ctx context.Context, c Commission) error
	ListByContract(ctx context.Context, contractID string) ([]Commission, error)
	SumByBeneficiary(ctx context.Context, b CommissionBeneficiary, since time.Time) (Money, error)
}

// TransferStore persists the append-only ownership transfer history.
type TransferStore interface {
	Create(ctx context.Context, t OwnershipTransfer) error
	ListByWatch(ctx context.Context, watchID string) ([]OwnershipTransfer, error)
}

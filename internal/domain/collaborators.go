package domain

import (
	"context"
	"io"
	"time"
)

// EvaluatorDirectory looks up accredited evaluators. FindEligible returns
// ErrNoEvaluatorAvailable when no active evaluator covers the category.
type EvaluatorDirectory interface {
	FindEligible(ctx context.Context, category string) (EvaluatorRef, error)
	GetByID(ctx context.Context, id string) (EvaluatorRef, error)
}

// ChainOpKind distinguishes the two token operations submitted to the chain.
type ChainOpKind string

const (
	ChainOpMint     ChainOpKind = "mint"
	ChainOpTransfer ChainOpKind = "transfer"
)

// ChainOp describes one token operation. OpRef is the deterministic
// idempotency reference: resubmitting the same OpRef must have at most one
// on-chain effect.
type ChainOp struct {
	OpRef     string
	Kind      ChainOpKind
	AssetCode string
	ToKey     string
	MemoHash  [32]byte
}

// ChainClient submits token operations to the blockchain collaborator.
// Submit returns the chain transaction reference, ErrChainUnavailable for
// transient failures (safe to resubmit with the same OpRef), or
// ErrChainRejected for fatal ones such as a malformed destination key.
type ChainClient interface {
	Submit(ctx context.Context, op ChainOp) (txRef string, err error)
}

// Transfer is one leg of a payout.
type Transfer struct {
	Payee  string
	Amount Money
}

// PaymentGateway exposes the payment collaborator's hold primitives. Every
// call is keyed by an idempotency reference; repeating a call with the same
// reference has at most one effect. Release posts all transfers atomically.
type PaymentGateway interface {
	Hold(ctx context.Context, idemRef, payer string, amount Money) (holdRef string, err error)
	Release(ctx context.Context, idemRef, holdRef string, transfers []Transfer) error
	Refund(ctx context.Context, idemRef, holdRef string) error
}

// LockManager provides per-identity mutual exclusion. Acquire returns an
// unlock function on success or ErrLockHeld if another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles operations per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Event is a lifecycle event published after a committed state transition.
type Event struct {
	Type       string
	WatchID    string
	ContractID string
	Detail     map[string]string
	At         time.Time
}

// Lifecycle event types.
const (
	EventWatchRegistered     = "watch_registered"
	EventWatchListed         = "watch_listed"
	EventWatchDelisted       = "watch_delisted"
	EventEscrowOpened        = "escrow_opened"
	EventEvaluationRequested = "evaluation_requested"
	EventEvaluationCompleted = "evaluation_completed"
	EventEscrowReleased      = "escrow_released"
	EventEscrowRefunded      = "escrow_refunded"
	EventEscrowExpired       = "escrow_expired"
	EventTokenMinted         = "token_minted"
	EventTokenTransferred    = "token_transferred"
)

// EventTypes lists every lifecycle event type, in lifecycle order.
func EventTypes() []string {
	return []string{
		EventWatchRegistered,
		EventWatchListed,
		EventWatchDelisted,
		EventEscrowOpened,
		EventEvaluationRequested,
		EventEvaluationCompleted,
		EventEscrowReleased,
		EventEscrowRefunded,
		EventEscrowExpired,
		EventTokenMinted,
		EventTokenTransferred,
	}
}

// EventBus publishes lifecycle events to interested consumers.
type EventBus interface {
	Publish(ctx context.Context, e Event) error
}

// ListingCache caches the marketplace listing page. A miss is reported as
// ErrNotFound.
type ListingCache interface {
	GetListings(ctx context.Context) ([]Watch, error)
	SetListings(ctx context.Context, watches []Watch) error
	Invalidate(ctx context.Context) error
}

// BlobWriter stores an archive object under a key.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

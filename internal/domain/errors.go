package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrConflict             = errors.New("concurrent modification conflict")
	ErrInvalidState         = errors.New("operation not valid in current state")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNoEvaluatorAvailable = errors.New("no eligible evaluator available")
	ErrAlreadyCompleted     = errors.New("evaluation already completed")
	ErrChainUnavailable     = errors.New("chain unavailable")
	ErrChainRejected        = errors.New("chain rejected operation")
	ErrRateLimited          = errors.New("rate limited")
	ErrLockHeld             = errors.New("lock already held")
)

// Retryable reports whether an operation that failed with err may be retried
// with the same idempotency reference. Only transient collaborator failures
// qualify; business-rule violations never do.
func Retryable(err error) bool {
	return errors.Is(err, ErrChainUnavailable) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrRateLimited) || errors.Is(err, ErrLockHeld)
}

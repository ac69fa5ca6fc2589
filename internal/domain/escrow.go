package domain

import "time"

// EscrowState tracks the escrow contract lifecycle.
type EscrowState string

const (
	EscrowStateFunded             EscrowState = "funded"
	EscrowStateAwaitingEvaluation EscrowState = "awaiting_evaluation"
	EscrowStateApproved           EscrowState = "approved"
	EscrowStateRejected           EscrowState = "rejected"
	EscrowStateReleased           EscrowState = "released"
	EscrowStateRefunded           EscrowState = "refunded"
	EscrowStateExpired            EscrowState = "expired"
)

// Terminal reports whether the state is final. Terminal contracts are archived
// and never transition again.
func (s EscrowState) Terminal() bool {
	switch s {
	case EscrowStateReleased, EscrowStateRefunded, EscrowStateExpired:
		return true
	}
	return false
}

// escrowTransitions is the closed transition table. Expiry is deliberately
// reachable only from Funded and AwaitingEvaluation: once an evaluation
// outcome exists, that outcome takes precedence over the deadline.
var escrowTransitions = map[EscrowState][]EscrowState{
	EscrowStateFunded:             {EscrowStateAwaitingEvaluation, EscrowStateExpired},
	EscrowStateAwaitingEvaluation: {EscrowStateApproved, EscrowStateRejected, EscrowStateExpired},
	EscrowStateApproved:           {EscrowStateReleased},
	EscrowStateRejected:           {EscrowStateRefunded},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s EscrowState) CanTransition(next EscrowState) bool {
	for _, t := range escrowTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// EscrowContract holds a buyer's funds in trust against a single watch until
// evaluation and tokenization resolve the sale. At most one non-terminal
// contract may exist per watch.
type EscrowContract struct {
	ID           string
	WatchID      string
	BuyerID      string
	SellerID     string
	BuyerKey     string // buyer's chain public key, token destination
	Amount       Money
	State        EscrowState
	HoldRef      string // settlement hold reference for the funded amount
	EvaluationID string // set once an evaluation has been requested

	// RetryEligible marks a contract whose tokenization failed transiently;
	// it stays Approved and resolve may be re-invoked with the same keys.
	RetryEligible bool

	// NeedsIntervention marks a contract the chain rejected outright. It is
	// never auto-refunded or auto-released.
	NeedsIntervention bool

	// RefundPending marks an Expired contract whose refund failed after the
	// expiry transition committed. The hold is still active; the sweep and
	// resolve re-drive the refund until it lands.
	RefundPending bool

	StateVersion int64
	CreatedAt    time.Time
	Deadline     time.Time
	ResolvedAt   *time.Time
	Archived     bool
}

// PastDeadline reports whether the contract deadline has been breached.
func (c EscrowContract) PastDeadline(now time.Time) bool {
	return now.After(c.Deadline)
}

// Expirable reports whether the expiry sweep may act on the contract. The
// sweep never touches contracts that already carry an evaluation outcome.
func (c EscrowContract) Expirable(now time.Time) bool {
	return c.State.CanTransition(EscrowStateExpired) && c.PastDeadline(now)
}

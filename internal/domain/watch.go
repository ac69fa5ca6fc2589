package domain

import "time"

// WatchState tracks where a watch sits in the marketplace lifecycle.
type WatchState string

const (
	WatchStateRegistered WatchState = "registered"
	WatchStateListed     WatchState = "listed"
	WatchStateInEscrow   WatchState = "in_escrow"
	WatchStateEvaluated  WatchState = "evaluated"
	WatchStateTokenized  WatchState = "tokenized"
	WatchStateSold       WatchState = "sold"
	WatchStateDelisted   WatchState = "delisted"
)

// Watch is a registered luxury watch. The serial number is its immutable
// identity; everything else describes the current point in its lifecycle.
// Ownership is reassigned only by a completed settlement.
type Watch struct {
	ID           string
	Serial       string // unique, immutable
	Brand        string
	Model        string
	Year         int
	Category     string // evaluator specialisation bucket, e.g. "dress", "diver"
	Condition    string
	OwnerID      string
	AskingPrice  Money
	State        WatchState
	StateVersion int64 // monotonic, bumped on every CAS update
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sellable reports whether a purchase intent may be opened against the watch.
func (w Watch) Sellable() bool {
	return w.State == WatchStateListed
}

// OwnershipTransfer is one completed change of ownership. Rows are append-only
// and written exclusively by the settlement path.
type OwnershipTransfer struct {
	ID         string
	WatchID    string
	ContractID string
	FromOwner  string
	ToOwner    string
	Price      Money
	TxRef      string // chain transaction that moved the token
	CreatedAt  time.Time
}

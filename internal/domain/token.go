package domain

import "time"

// TokenRecord is one entry in a watch's on-chain provenance history. The
// history is append-only: a resale appends a new record with a higher
// sequence number and never mutates prior rows. The record with the highest
// sequence is the active one.
type TokenRecord struct {
	ID         string
	WatchID    string
	ContractID string
	OpRef      string // deterministic idempotency reference for the chain call
	TxRef      string // chain transaction hash
	OwnerKey   string // chain public key of the certified owner
	Seq        int
	MintedAt   time.Time
}

// Mint reports whether this record created the token rather than moving it.
func (r TokenRecord) Mint() bool {
	return r.Seq == 1
}

// Package payment provides the payment collaborator. The simulator keeps
// accounts, holds, and an idempotency journal in memory and honours the same
// contract a production gateway would: every mutation is keyed by an
// idempotency reference, and a repeated call with the same reference has at
// most one effect.
package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

type holdState string

const (
	holdActive   holdState = "active"
	holdReleased holdState = "released"
	holdRefunded holdState = "refunded"
)

type hold struct {
	ref    string
	payer  string
	amount domain.Money
	state  holdState
}

// Simulator implements domain.PaymentGateway in memory.
type Simulator struct {
	mu       sync.Mutex
	balances map[string]domain.Money
	holds    map[string]*hold
	// journal maps an idempotency reference to the hold ref it produced (for
	// Hold) or to the hold ref it settled (for Release and Refund).
	journal map[string]string
}

// NewSimulator creates an empty Simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		balances: make(map[string]domain.Money),
		holds:    make(map[string]*hold),
		journal:  make(map[string]string),
	}
}

// Credit adds funds to an account. Used to seed buyer balances.
func (s *Simulator) Credit(account string, amount domain.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
}

// Balance returns the available balance of an account.
func (s *Simulator) Balance(account string) domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account]
}

// Hold moves amount out of the payer's available balance into a named hold.
// A repeated call with the same idemRef returns the original hold ref without
// moving funds again. Returns ErrInsufficientFunds when the payer's balance
// cannot cover the amount.
func (s *Simulator) Hold(ctx context.Context, idemRef, payer string, amount domain.Money) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.journal[idemRef]; ok {
		return ref, nil
	}

	if s.balances[payer] < amount {
		return "", fmt.Errorf("payment: hold for %s: %w", payer, domain.ErrInsufficientFunds)
	}

	h := &hold{
		ref:    uuid.New().String(),
		payer:  payer,
		amount: amount,
		state:  holdActive,
	}
	s.balances[payer] -= amount
	s.holds[h.ref] = h
	s.journal[idemRef] = h.ref
	return h.ref, nil
}

// Release settles a hold by crediting every transfer leg. All legs post
// atomically under the lock. The transfer amounts must sum to exactly the
// held amount; a mismatch leaves the hold untouched.
func (s *Simulator) Release(ctx context.Context, idemRef, holdRef string, transfers []domain.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journal[idemRef]; ok {
		return nil
	}

	h, ok := s.holds[holdRef]
	if !ok {
		return fmt.Errorf("payment: release %s: %w", holdRef, domain.ErrNotFound)
	}
	if h.state != holdActive {
		return fmt.Errorf("payment: release %s in state %s: %w", holdRef, h.state, domain.ErrInvalidState)
	}

	var total domain.Money
	for _, t := range transfers {
		if t.Amount < 0 {
			return fmt.Errorf("payment: release %s: negative leg: %w", holdRef, domain.ErrInvalidAmount)
		}
		total += t.Amount
	}
	if total != h.amount {
		return fmt.Errorf("payment: release %s: legs sum %d held %d: %w",
			holdRef, int64(total), int64(h.amount), domain.ErrInvalidAmount)
	}

	for _, t := range transfers {
		s.balances[t.Payee] += t.Amount
	}
	h.state = holdReleased
	s.journal[idemRef] = holdRef
	return nil
}

// Refund returns the full held amount to the payer.
func (s *Simulator) Refund(ctx context.Context, idemRef, holdRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journal[idemRef]; ok {
		return nil
	}

	h, ok := s.holds[holdRef]
	if !ok {
		return fmt.Errorf("payment: refund %s: %w", holdRef, domain.ErrNotFound)
	}
	if h.state != holdActive {
		return fmt.Errorf("payment: refund %s in state %s: %w", holdRef, h.state, domain.ErrInvalidState)
	}

	s.balances[h.payer] += h.amount
	h.state = holdRefunded
	s.journal[idemRef] = holdRef
	return nil
}

// Compile-time interface check.
var _ domain.PaymentGateway = (*Simulator)(nil)

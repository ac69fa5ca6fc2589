package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

func TestHoldMovesFundsOnce(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 10000)

	ctx := context.Background()
	ref, err := s.Hold(ctx, "idem-1", "buyer", 10000)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if got := s.Balance("buyer"); got != 0 {
		t.Fatalf("balance after hold = %d, want 0", int64(got))
	}

	// Retried call with the same reference is a no-op returning the same ref.
	ref2, err := s.Hold(ctx, "idem-1", "buyer", 10000)
	if err != nil {
		t.Fatalf("repeated Hold: %v", err)
	}
	if ref2 != ref {
		t.Fatalf("repeated Hold ref = %s, want %s", ref2, ref)
	}
	if got := s.Balance("buyer"); got != 0 {
		t.Fatalf("balance after repeat = %d, want 0", int64(got))
	}
}

func TestHoldInsufficientFunds(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 500)

	_, err := s.Hold(context.Background(), "idem-1", "buyer", 10000)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := s.Balance("buyer"); got != 500 {
		t.Fatalf("balance = %d, want 500", int64(got))
	}
}

func TestReleasePostsAllLegs(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 10000)

	ctx := context.Background()
	ref, err := s.Hold(ctx, "hold-1", "buyer", 10000)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	transfers := []domain.Transfer{
		{Payee: "seller", Amount: 9550},
		{Payee: "platform", Amount: 250},
		{Payee: "evaluator", Amount: 200},
	}
	if err := s.Release(ctx, "rel-1", ref, transfers); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if got := s.Balance("seller"); got != 9550 {
		t.Errorf("seller = %d, want 9550", int64(got))
	}
	if got := s.Balance("platform"); got != 250 {
		t.Errorf("platform = %d, want 250", int64(got))
	}
	if got := s.Balance("evaluator"); got != 200 {
		t.Errorf("evaluator = %d, want 200", int64(got))
	}

	// Retried release does not double-post.
	if err := s.Release(ctx, "rel-1", ref, transfers); err != nil {
		t.Fatalf("repeated Release: %v", err)
	}
	if got := s.Balance("seller"); got != 9550 {
		t.Errorf("seller after repeat = %d, want 9550", int64(got))
	}
}

func TestReleaseRejectsMismatchedLegs(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 10000)

	ctx := context.Background()
	ref, err := s.Hold(ctx, "hold-1", "buyer", 10000)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	err = s.Release(ctx, "rel-1", ref, []domain.Transfer{{Payee: "seller", Amount: 9999}})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	// Hold is still active, so a correct release succeeds afterwards.
	if err := s.Release(ctx, "rel-2", ref, []domain.Transfer{{Payee: "seller", Amount: 10000}}); err != nil {
		t.Fatalf("Release after mismatch: %v", err)
	}
}

func TestRefundReturnsFundsToPayer(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 10000)

	ctx := context.Background()
	ref, err := s.Hold(ctx, "hold-1", "buyer", 10000)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	if err := s.Refund(ctx, "ref-1", ref); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if got := s.Balance("buyer"); got != 10000 {
		t.Fatalf("balance after refund = %d, want 10000", int64(got))
	}

	// Repeated refund is a no-op.
	if err := s.Refund(ctx, "ref-1", ref); err != nil {
		t.Fatalf("repeated Refund: %v", err)
	}
	if got := s.Balance("buyer"); got != 10000 {
		t.Fatalf("balance after repeat = %d, want 10000", int64(got))
	}
}

func TestRefundAfterReleaseFails(t *testing.T) {
	s := NewSimulator()
	s.Credit("buyer", 100)

	ctx := context.Background()
	ref, err := s.Hold(ctx, "hold-1", "buyer", 100)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if err := s.Release(ctx, "rel-1", ref, []domain.Transfer{{Payee: "seller", Amount: 100}}); err != nil {
		t.Fatalf("Release: %v", err)
	}

	err = s.Refund(ctx, "ref-1", ref)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

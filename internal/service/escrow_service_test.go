package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

func TestFullSaleLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)

	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateFunded, c.State)
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testBuyer), "funds held")

	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "eval-1", ev.EvaluatorID)

	resolved, err := f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, resolved.State)
	require.NotNil(t, resolved.ResolvedAt)

	// Commission at the standard tier: 100.00 at 0.025 is 2.50 to the
	// platform, the evaluator's flat 2.00, and 95.50 to the seller.
	assert.Equal(t, domain.Money(9550), f.gateway.Balance(testSeller))
	assert.Equal(t, domain.Money(250), f.gateway.Balance("platform"))
	assert.Equal(t, domain.Money(200), f.gateway.Balance("eval-1"))

	// Token minted at sequence 1 for the buyer's key.
	rec, err := f.tokenSvc.Active(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, rec.Mint())
	assert.Equal(t, testBuyerKey, rec.OwnerKey)

	// Ownership moved to the buyer and the watch left the market.
	updated, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, testBuyer, updated.OwnerID)
	assert.Equal(t, domain.WatchStateSold, updated.State)

	transfers, err := f.transfers.ListByWatch(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, testSeller, transfers[0].FromOwner)
	assert.Equal(t, testBuyer, transfers[0].ToOwner)

	assert.Contains(t, f.bus.types(), domain.EventEscrowReleased)
	assert.Contains(t, f.bus.types(), domain.EventTokenMinted)
}

func TestRejectedEvaluationRefundsBuyer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	resolved, err := f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationRejected, "cert-bad")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateRefunded, resolved.State)

	// Full refund, no token, ownership unchanged, watch back on the market.
	assert.Equal(t, domain.Money(10000), f.gateway.Balance(testBuyer))
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testSeller))
	assert.Zero(t, f.tokens.count())

	updated, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, testSeller, updated.OwnerID)
	assert.Equal(t, domain.WatchStateListed, updated.State)
}

func TestChainUnavailableMarksRetryEligible(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	// Chain down for longer than the retry budget.
	f.chain.script(-1, domain.ErrChainUnavailable)

	_, err = f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.ErrorIs(t, err, domain.ErrChainUnavailable)

	stuck, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateApproved, stuck.State)
	assert.True(t, stuck.RetryEligible)

	// Funds stay held while the contract waits for the chain.
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testBuyer))
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testSeller))

	// Chain recovers; re-resolving releases with exactly one token record.
	f.chain.script(0, nil)
	resolved, err := f.escrowSvc.Resolve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, resolved.State)
	assert.Equal(t, 1, f.tokens.count())
	assert.Equal(t, domain.Money(9550), f.gateway.Balance(testSeller))
}

func TestChainRejectedNeedsIntervention(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	f.chain.script(-1, domain.ErrChainRejected)

	_, err = f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.ErrorIs(t, err, domain.ErrChainRejected)

	flagged, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateApproved, flagged.State)
	assert.True(t, flagged.NeedsIntervention)

	// A fatal rejection is submitted once; the retry loop must not hammer it.
	assert.Equal(t, 1, f.chain.submitCount())

	// No automatic refund or release in either direction.
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testBuyer))
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testSeller))

	// Automatic resolution is disabled until an operator clears the flag.
	_, err = f.escrowSvc.Resolve(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRepeatedEvaluationSubmissionIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	first, err := f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, first.State)

	// Identical repeat: no-op success, nothing posts twice.
	second, err := f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, second.State)
	assert.Equal(t, domain.Money(9550), f.gateway.Balance(testSeller))
	assert.Equal(t, 1, f.tokens.count())

	// Conflicting repeat is rejected.
	_, err = f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationRejected, "cert-other")
	require.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

func TestOpenValidations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)

	// Offer must match the asking price.
	f.gateway.Credit(testBuyer, 20000)
	_, err = f.escrowSvc.Open(ctx, w.ID, testBuyer, testBuyerKey, 9999)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Owner cannot buy their own watch.
	_, err = f.escrowSvc.Open(ctx, w.ID, testSeller, testBuyerKey, 10000)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	// Broke buyer sees ErrInsufficientFunds and the watch stays listed.
	_, err = f.escrowSvc.Open(ctx, w.ID, "broke-buyer", testBuyerKey, 10000)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	current, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WatchStateListed, current.State)
}

func TestOpenRateLimited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)

	// Exhaust the buyer's open budget.
	for i := 0; i < 10; i++ {
		_, _ = f.limiter.Allow(ctx, "escrow:open:"+testBuyer, 10, 0)
	}

	f.gateway.Credit(testBuyer, 10000)
	_, err = f.escrowSvc.Open(ctx, w.ID, testBuyer, testBuyerKey, 10000)
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestConcurrentOpensSingleWinner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)

	buyers := []string{"buyer-a", "buyer-b", "buyer-c"}
	for _, b := range buyers {
		f.gateway.Credit(b, 10000)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, buyer string) {
			defer wg.Done()
			_, errs[i] = f.escrowSvc.Open(ctx, w.ID, buyer, testBuyerKey, 10000)
		}(i, b)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		lostRace := errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrLockHeld)
		require.True(t, lostRace, "loser error should be a conflict class: %v", err)
	}
	require.Equal(t, 1, wins, "exactly one buyer wins the watch")

	// Every loser got their hold refunded in full.
	held := domain.Money(0)
	for _, b := range buyers {
		held += 10000 - f.gateway.Balance(b)
	}
	assert.Equal(t, domain.Money(10000), held, "only the winner's funds remain held")
}

func TestConcurrentResolvesSingleRelease(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	// Park the contract in Approved: the chain is down when the outcome
	// lands, so resolution stops short of release.
	f.chain.script(-1, domain.ErrChainUnavailable)
	_, err = f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
	f.chain.script(0, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.escrowSvc.Resolve(ctx, c.ID)
		}(i)
	}
	wg.Wait()

	// Each caller either won the release, saw the released contract as a
	// no-op, or lost a compare-and-swap.
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, domain.ErrConflict, "loser error should be a conflict: %v", err)
	}
	require.GreaterOrEqual(t, wins, 1)

	// The transition, token record, payout, and transfer each happened once.
	final, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, final.State)
	assert.Equal(t, 1, f.tokens.count())
	assert.Equal(t, domain.Money(9550), f.gateway.Balance(testSeller))
	assert.Equal(t, domain.Money(250), f.gateway.Balance("platform"))
	assert.Equal(t, domain.Money(200), f.gateway.Balance("eval-1"))

	transfers, err := f.transfers.ListByWatch(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestSweepExpiresOnlyContractsWithoutOutcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)

	// Force the deadline into the past.
	stored, err := f.escrows.GetByID(ctx, c.ID)
	require.NoError(t, err)
	stored.Deadline = stored.CreatedAt.Add(-time.Hour)
	require.NoError(t, f.escrows.Update(ctx, stored, stored.StateVersion))

	expired, err := f.escrowSvc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	final, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateExpired, final.State)
	assert.Equal(t, domain.Money(10000), f.gateway.Balance(testBuyer), "buyer refunded")

	relisted, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WatchStateListed, relisted.State)
}

func TestExpiryRefundFailureIsRedriven(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)

	stored, err := f.escrows.GetByID(ctx, c.ID)
	require.NoError(t, err)
	stored.Deadline = stored.CreatedAt.Add(-time.Hour)
	require.NoError(t, f.escrows.Update(ctx, stored, stored.StateVersion))

	// The gateway is unreachable for the expiry's own refund attempt.
	deadCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.escrowSvc.Expire(deadCtx, c.ID)
	require.Error(t, err)

	// Expiry committed, the refund did not, and the contract says so.
	stuck, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateExpired, stuck.State)
	assert.True(t, stuck.RefundPending)
	assert.Equal(t, domain.Money(0), f.gateway.Balance(testBuyer), "refund not landed yet")

	// Resolve re-drives the journaled refund.
	recovered, err := f.escrowSvc.Resolve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateExpired, recovered.State)
	assert.False(t, recovered.RefundPending)
	assert.Equal(t, domain.Money(10000), f.gateway.Balance(testBuyer))

	relisted, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WatchStateListed, relisted.State)

	// Nothing left to recover and nothing refunds twice.
	expired, err := f.escrowSvc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, domain.Money(10000), f.gateway.Balance(testBuyer))
}

func TestSweepSettlesPendingRefunds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)

	stored, err := f.escrows.GetByID(ctx, c.ID)
	require.NoError(t, err)
	stored.Deadline = stored.CreatedAt.Add(-time.Hour)
	require.NoError(t, f.escrows.Update(ctx, stored, stored.StateVersion))

	deadCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.escrowSvc.Expire(deadCtx, c.ID)
	require.Error(t, err)

	// The next sweep run settles the outstanding refund.
	expired, err := f.escrowSvc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, expired, "contract was already expired")

	final, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, final.RefundPending)
	assert.Equal(t, domain.Money(10000), f.gateway.Balance(testBuyer))

	relisted, err := f.watchSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WatchStateListed, relisted.State)
}

func TestExpireRefusesTerminalContract(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.NoError(t, err)

	_, err = f.escrowSvc.Expire(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEvaluationOutcomeBeatsDeadline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	c, err := f.openFunded(ctx, w.ID)
	require.NoError(t, err)
	ev, err := f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.NoError(t, err)

	// Push the deadline into the past, then record the outcome before the
	// sweep runs. The outcome wins; the sweep finds nothing to expire.
	stored, err := f.escrows.GetByID(ctx, c.ID)
	require.NoError(t, err)
	stored.Deadline = stored.CreatedAt.Add(-time.Hour)
	require.NoError(t, f.escrows.Update(ctx, stored, stored.StateVersion))

	resolved, err := f.escrowSvc.SubmitEvaluation(ctx, ev.ID, domain.EvaluationCertified, "cert-abc")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateReleased, resolved.State)

	expired, err := f.escrowSvc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestBeginEvaluationNoEvaluator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.watchSvc.Register(ctx, RegisterWatchInput{
		Serial:      "SN-2000",
		Brand:       "Complication & Cie",
		Category:    "tourbillon",
		OwnerID:     testSeller,
		AskingPrice: 50000,
	})
	require.NoError(t, err)
	_, err = f.watchSvc.List(ctx, w.ID, testSeller, 50000)
	require.NoError(t, err)

	f.gateway.Credit(testBuyer, 50000)
	c, err := f.escrowSvc.Open(ctx, w.ID, testBuyer, testBuyerKey, 50000)
	require.NoError(t, err)

	_, err = f.escrowSvc.BeginEvaluation(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrNoEvaluatorAvailable)

	// The contract is untouched and can be retried once an evaluator joins.
	unchanged, err := f.escrowSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStateFunded, unchanged.State)
}

func TestSecondContractForWatchRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := f.listedWatch(ctx)
	require.NoError(t, err)
	_, err = f.openFunded(ctx, w.ID)
	require.NoError(t, err)

	// The watch is now InEscrow; a second buyer cannot open against it.
	f.gateway.Credit("buyer-2", 10000)
	_, err = f.escrowSvc.Open(ctx, w.ID, "buyer-2", testBuyerKey, 10000)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.Money(10000), f.gateway.Balance("buyer-2"), "hold never placed")
}

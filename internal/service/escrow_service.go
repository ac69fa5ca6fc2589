package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/retry"
)

// EscrowConfig tunes the orchestrator.
type EscrowConfig struct {
	DefaultDeadline time.Duration
	LockTTL         time.Duration
	OpenRateLimit   int
	OpenRateWindow  time.Duration
	ChainRetry      retry.Policy
}

// EscrowService orchestrates the escrow lifecycle: opening contracts against
// listed watches, routing evaluation outcomes, and resolving contracts
// through tokenization and settlement. State authority lives in the store's
// compare-and-swap; the distributed lock only narrows open races and is never
// held across a chain or payment call.
type EscrowService struct {
	escrows     domain.EscrowStore
	watches     domain.WatchStore
	transfers   domain.TransferStore
	evaluations *EvaluationService
	tokens      *TokenService
	settlement  *SettlementService
	locks       domain.LockManager
	limiter     domain.RateLimiter
	listings    domain.ListingCache
	bus         domain.EventBus
	cfg         EscrowConfig
	logger      *slog.Logger
}

// NewEscrowService creates an EscrowService with all required dependencies.
func NewEscrowService(
	escrows domain.EscrowStore,
	watches domain.WatchStore,
	transfers domain.TransferStore,
	evaluations *EvaluationService,
	tokens *TokenService,
	settlement *SettlementService,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	listings domain.ListingCache,
	bus domain.EventBus,
	cfg EscrowConfig,
	logger *slog.Logger,
) *EscrowService {
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = 72 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.OpenRateLimit <= 0 {
		cfg.OpenRateLimit = 5
	}
	if cfg.OpenRateWindow <= 0 {
		cfg.OpenRateWindow = time.Minute
	}
	if cfg.ChainRetry.MaxAttempts == 0 {
		cfg.ChainRetry = retry.DefaultPolicy
	}
	return &EscrowService{
		escrows:     escrows,
		watches:     watches,
		transfers:   transfers,
		evaluations: evaluations,
		tokens:      tokens,
		settlement:  settlement,
		locks:       locks,
		limiter:     limiter,
		listings:    listings,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
	}
}

// Open funds a new escrow contract against a listed watch. The buyer's funds
// are placed on hold before the contract is persisted; if another buyer wins
// the race for the watch, the hold is refunded and the loser sees
// ErrConflict. The watch moves to InEscrow atomically with the win.
func (s *EscrowService) Open(ctx context.Context, watchID, buyerID, buyerKey string, amount domain.Money) (domain.EscrowContract, error) {
	allowed, err := s.limiter.Allow(ctx, "escrow:open:"+buyerID, s.cfg.OpenRateLimit, s.cfg.OpenRateWindow)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: open by %s: %w", buyerID, domain.ErrRateLimited)
	}

	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: open for watch %s: %w", watchID, err)
	}
	if !w.Sellable() {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: watch %s in state %s: %w", watchID, w.State, domain.ErrInvalidState)
	}
	if w.OwnerID == buyerID {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: %s already owns watch %s: %w", buyerID, watchID, domain.ErrInvalidState)
	}
	if amount != w.AskingPrice {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: offered %s against asking %s: %w",
			amount, w.AskingPrice, domain.ErrInvalidAmount)
	}

	contractID := uuid.New().String()

	// Place the hold before taking the lock; the gateway call is idempotent
	// on the contract ID and must not run under the lock.
	holdRef, err := s.settlement.Hold(ctx, contractID, buyerID, amount)
	if err != nil {
		return domain.EscrowContract{}, err
	}

	unlock, err := s.locks.Acquire(ctx, "watch:"+watchID, s.cfg.LockTTL)
	if err != nil {
		s.compensateHold(ctx, contractID, holdRef)
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: open for watch %s: %w", watchID, err)
	}
	defer unlock()

	// Re-read under the lock; the CAS to InEscrow is what actually decides
	// the race between concurrent buyers.
	w, err = s.watches.GetByID(ctx, watchID)
	if err != nil {
		s.compensateHold(ctx, contractID, holdRef)
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: open for watch %s: %w", watchID, err)
	}
	if !w.Sellable() {
		s.compensateHold(ctx, contractID, holdRef)
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: watch %s in state %s: %w", watchID, w.State, domain.ErrConflict)
	}

	expected := w.StateVersion
	w.State = domain.WatchStateInEscrow
	w.UpdatedAt = time.Now().UTC()
	if err := s.watches.Update(ctx, w, expected); err != nil {
		s.compensateHold(ctx, contractID, holdRef)
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: open for watch %s: %w", watchID, err)
	}

	now := time.Now().UTC()
	c := domain.EscrowContract{
		ID:           contractID,
		WatchID:      watchID,
		BuyerID:      buyerID,
		SellerID:     w.OwnerID,
		BuyerKey:     buyerKey,
		Amount:       amount,
		State:        domain.EscrowStateFunded,
		HoldRef:      holdRef,
		StateVersion: 1,
		CreatedAt:    now,
		Deadline:     now.Add(s.cfg.DefaultDeadline),
	}
	if err := s.escrows.Create(ctx, c); err != nil {
		// Roll the watch back and release the hold; the unique active-
		// contract index caught a race the CAS did not.
		w.State = domain.WatchStateListed
		if rbErr := s.watches.Update(ctx, w, expected+1); rbErr != nil {
			s.logger.Error("watch rollback failed", "watch_id", watchID, "error", rbErr)
		}
		s.compensateHold(ctx, contractID, holdRef)
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: create contract for watch %s: %w", watchID, err)
	}

	s.invalidateListings(ctx)
	s.publishEvent(ctx, domain.EventEscrowOpened, watchID, contractID, map[string]string{
		"buyer_id": buyerID,
		"amount":   amount.String(),
	})
	s.logger.Info("escrow opened",
		"contract_id", contractID, "watch_id", watchID, "buyer_id", buyerID, "amount", amount.String())
	return c, nil
}

// BeginEvaluation assigns an evaluator to a funded contract and moves it to
// AwaitingEvaluation. If no evaluator covers the watch's category the
// contract is left untouched in Funded.
func (s *EscrowService) BeginEvaluation(ctx context.Context, contractID string) (domain.Evaluation, error) {
	unlock, err := s.locks.Acquire(ctx, "escrow:"+contractID, s.cfg.LockTTL)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("escrow_service: begin evaluation %s: %w", contractID, err)
	}
	defer unlock()

	c, err := s.escrows.GetByID(ctx, contractID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("escrow_service: begin evaluation %s: %w", contractID, err)
	}
	if c.State != domain.EscrowStateFunded {
		return domain.Evaluation{}, fmt.Errorf("escrow_service: begin evaluation %s in state %s: %w",
			contractID, c.State, domain.ErrInvalidState)
	}

	w, err := s.watches.GetByID(ctx, c.WatchID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("escrow_service: begin evaluation %s: %w", contractID, err)
	}

	ev, err := s.evaluations.Request(ctx, w, c.ID)
	if err != nil {
		return domain.Evaluation{}, err
	}

	expected := c.StateVersion
	c.State = domain.EscrowStateAwaitingEvaluation
	c.EvaluationID = ev.ID
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		return domain.Evaluation{}, fmt.Errorf("escrow_service: begin evaluation %s: %w", contractID, err)
	}
	return ev, nil
}

// SubmitEvaluation records the evaluator's determination, transitions the
// contract to Approved or Rejected, and drives resolution. An outcome
// recorded while the contract still awaits evaluation always beats a later
// deadline; an outcome arriving after the sweep expired the contract is too
// late and fails with ErrInvalidState.
func (s *EscrowService) SubmitEvaluation(ctx context.Context, evaluationID string, result domain.EvaluationResult, certificateRef string) (domain.EscrowContract, error) {
	ev, err := s.evaluations.Complete(ctx, evaluationID, result, certificateRef)
	if err != nil {
		return domain.EscrowContract{}, err
	}

	c, err := s.escrows.GetByID(ctx, ev.ContractID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: submit evaluation %s: %w", evaluationID, err)
	}

	target := domain.EscrowStateApproved
	if result == domain.EvaluationRejected {
		target = domain.EscrowStateRejected
	}

	switch {
	case c.State == domain.EscrowStateAwaitingEvaluation:
		expected := c.StateVersion
		c.State = target
		if err := s.escrows.Update(ctx, c, expected); err != nil {
			return domain.EscrowContract{}, fmt.Errorf("escrow_service: submit evaluation %s: %w", evaluationID, err)
		}
		c.StateVersion = expected + 1
		s.markWatchEvaluated(ctx, c.WatchID)
	case c.State == target,
		target == domain.EscrowStateApproved && c.State == domain.EscrowStateReleased,
		target == domain.EscrowStateRejected && c.State == domain.EscrowStateRefunded:
		// Repeat of an already-applied outcome; fall through to resolution.
	default:
		return c, fmt.Errorf("escrow_service: evaluation %s outcome against contract in state %s: %w",
			evaluationID, c.State, domain.ErrInvalidState)
	}

	return s.Resolve(ctx, c.ID)
}

// Resolve drives an Approved contract through tokenization and payout, a
// Rejected one through refund, and an Expired one with a pending refund
// through a refund retry. It is safe to re-invoke: every chain and payment
// call is idempotent on contract-derived references, and the final state
// transition is a compare-and-swap with exactly one winner. Contracts flagged
// NeedsIntervention are never resolved automatically.
func (s *EscrowService) Resolve(ctx context.Context, contractID string) (domain.EscrowContract, error) {
	c, err := s.escrows.GetByID(ctx, contractID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: resolve %s: %w", contractID, err)
	}

	if c.NeedsIntervention {
		return c, fmt.Errorf("escrow_service: resolve %s: flagged for intervention: %w", contractID, domain.ErrInvalidState)
	}

	switch c.State {
	case domain.EscrowStateApproved:
		return s.resolveApproved(ctx, c)
	case domain.EscrowStateRejected:
		return s.resolveRejected(ctx, c)
	case domain.EscrowStateExpired:
		if c.RefundPending {
			return s.redriveExpiredRefund(ctx, c)
		}
		return c, nil
	case domain.EscrowStateReleased, domain.EscrowStateRefunded:
		return c, nil
	default:
		return c, fmt.Errorf("escrow_service: resolve %s in state %s: %w", contractID, c.State, domain.ErrInvalidState)
	}
}

func (s *EscrowService) resolveApproved(ctx context.Context, c domain.EscrowContract) (domain.EscrowContract, error) {
	w, err := s.watches.GetByID(ctx, c.WatchID)
	if err != nil {
		return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
	}

	// Tokenization gates the release of funds: no money moves until the
	// chain confirms the mint or transfer.
	var rec domain.TokenRecord
	err = s.cfg.ChainRetry.Do(ctx, func() error {
		var submitErr error
		rec, submitErr = s.tokens.MintOrTransfer(ctx, w, c)
		return submitErr
	}, func(err error) bool {
		return errors.Is(err, domain.ErrChainUnavailable)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChainRejected):
			s.flagContract(ctx, c.ID, func(fc *domain.EscrowContract) { fc.NeedsIntervention = true })
			s.logger.Error("chain rejected token operation, contract flagged",
				"contract_id", c.ID, "error", err)
		case errors.Is(err, domain.ErrChainUnavailable):
			s.flagContract(ctx, c.ID, func(fc *domain.EscrowContract) { fc.RetryEligible = true })
			s.logger.Warn("chain unavailable, contract retry-eligible",
				"contract_id", c.ID, "error", err)
		}
		return c, err
	}

	// Only move the watch forward; a concurrent resolve that already carried
	// it to Tokenized or Sold must not be rewound.
	if w.State != domain.WatchStateTokenized && w.State != domain.WatchStateSold {
		expected := w.StateVersion
		w.State = domain.WatchStateTokenized
		w.UpdatedAt = time.Now().UTC()
		if err := s.watches.Update(ctx, w, expected); err != nil {
			return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
		}
		w.StateVersion = expected + 1
	}

	ev, err := s.evaluations.Get(ctx, c.EvaluationID)
	if err != nil {
		return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
	}
	evaluator, err := s.evaluations.Evaluator(ctx, ev.EvaluatorID)
	if err != nil {
		return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
	}

	if _, err := s.settlement.Payout(ctx, c, c.SellerID, evaluator); err != nil {
		return c, err
	}

	now := time.Now().UTC()
	expected := c.StateVersion
	c.State = domain.EscrowStateReleased
	c.ResolvedAt = &now
	c.RetryEligible = false
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
	}
	c.StateVersion = expected + 1

	// This path runs exactly once: only the CAS winner reaches it.
	transfer := domain.OwnershipTransfer{
		ID:         uuid.New().String(),
		WatchID:    c.WatchID,
		ContractID: c.ID,
		FromOwner:  c.SellerID,
		ToOwner:    c.BuyerID,
		Price:      c.Amount,
		TxRef:      rec.TxRef,
		CreatedAt:  now,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		s.logger.Error("ownership transfer record failed", "contract_id", c.ID, "error", err)
	}

	w, err = s.watches.GetByID(ctx, c.WatchID)
	if err == nil {
		expected := w.StateVersion
		w.OwnerID = c.BuyerID
		w.State = domain.WatchStateSold
		w.UpdatedAt = now
		if err := s.watches.Update(ctx, w, expected); err != nil {
			s.logger.Error("watch ownership update failed", "watch_id", w.ID, "error", err)
		}
	}

	s.invalidateListings(ctx)
	s.publishEvent(ctx, domain.EventEscrowReleased, c.WatchID, c.ID, map[string]string{
		"tx_ref": rec.TxRef,
	})
	s.logger.Info("escrow released",
		"contract_id", c.ID, "watch_id", c.WatchID, "buyer_id", c.BuyerID, "tx_ref", rec.TxRef)
	return c, nil
}

func (s *EscrowService) resolveRejected(ctx context.Context, c domain.EscrowContract) (domain.EscrowContract, error) {
	if err := s.settlement.Refund(ctx, c); err != nil {
		return c, err
	}

	now := time.Now().UTC()
	expected := c.StateVersion
	c.State = domain.EscrowStateRefunded
	c.ResolvedAt = &now
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		return c, fmt.Errorf("escrow_service: resolve %s: %w", c.ID, err)
	}
	c.StateVersion = expected + 1

	// Ownership never moved; the watch goes straight back on the market.
	s.relistWatch(ctx, c.WatchID)

	s.invalidateListings(ctx)
	s.publishEvent(ctx, domain.EventEscrowRefunded, c.WatchID, c.ID, nil)
	s.logger.Info("escrow refunded",
		"contract_id", c.ID, "watch_id", c.WatchID, "buyer_id", c.BuyerID)
	return c, nil
}

// Expire refunds and closes a contract whose deadline passed before any
// evaluation outcome was recorded. A contract that already carries an
// outcome is not expirable; that outcome wins.
func (s *EscrowService) Expire(ctx context.Context, contractID string) (domain.EscrowContract, error) {
	c, err := s.escrows.GetByID(ctx, contractID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: expire %s: %w", contractID, err)
	}
	if !c.Expirable(time.Now().UTC()) {
		return c, fmt.Errorf("escrow_service: expire %s in state %s: %w", contractID, c.State, domain.ErrInvalidState)
	}

	// The CAS decides the race against a concurrent evaluation outcome. No
	// money moves until expiry has won; a lost CAS means an outcome was
	// recorded first and that outcome stands.
	now := time.Now().UTC()
	expected := c.StateVersion
	c.State = domain.EscrowStateExpired
	c.ResolvedAt = &now
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		return c, fmt.Errorf("escrow_service: expire %s: %w", contractID, err)
	}
	c.StateVersion = expected + 1

	// Expiry has committed but the hold is still active. A refund failure
	// here must not strand the buyer's funds: the contract is flagged
	// refund-pending and the sweep or a resolve re-drives the idempotent
	// refund until it lands.
	if err := s.settlement.Refund(ctx, c); err != nil {
		s.flagContract(ctx, c.ID, func(fc *domain.EscrowContract) { fc.RefundPending = true })
		s.logger.Error("expiry refund failed, flagged for retry", "contract_id", c.ID, "error", err)
		return c, err
	}

	return s.finishExpiry(ctx, c), nil
}

// redriveExpiredRefund retries the refund for an expired contract whose
// earlier refund attempt failed. The gateway journals on the contract ID, so
// a repeat pays out at most once.
func (s *EscrowService) redriveExpiredRefund(ctx context.Context, c domain.EscrowContract) (domain.EscrowContract, error) {
	if err := s.settlement.Refund(ctx, c); err != nil {
		return c, err
	}

	expected := c.StateVersion
	c.RefundPending = false
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		// A concurrent re-drive cleared the flag; the refund itself landed.
		return c, fmt.Errorf("escrow_service: expire %s: %w", c.ID, err)
	}
	c.StateVersion = expected + 1

	return s.finishExpiry(ctx, c), nil
}

// finishExpiry runs the side effects of a settled expiry: the watch goes
// back on the market and the lifecycle event goes out.
func (s *EscrowService) finishExpiry(ctx context.Context, c domain.EscrowContract) domain.EscrowContract {
	s.relistWatch(ctx, c.WatchID)

	s.invalidateListings(ctx)
	s.publishEvent(ctx, domain.EventEscrowExpired, c.WatchID, c.ID, nil)
	s.logger.Info("escrow expired", "contract_id", c.ID, "watch_id", c.WatchID)
	return c
}

// SweepExpired expires every contract past its deadline that still lacks an
// evaluation outcome, then re-drives refunds for expired contracts whose
// refund has not landed yet. Contracts that gained an outcome between listing
// and expiry lose the race gracefully and are skipped. Returns the number of
// contracts expired.
func (s *EscrowService) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	candidates, err := s.escrows.ListExpirable(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("escrow_service: sweep: %w", err)
	}

	expired := 0
	for _, c := range candidates {
		if _, err := s.Expire(ctx, c.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrConflict) {
				continue
			}
			s.logger.Error("sweep expire failed", "contract_id", c.ID, "error", err)
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("expiry sweep finished", "candidates", len(candidates), "expired", expired)
	}

	pending, err := s.escrows.ListRefundPending(ctx, batchSize)
	if err != nil {
		return expired, fmt.Errorf("escrow_service: sweep: %w", err)
	}
	recovered := 0
	for _, c := range pending {
		if _, err := s.redriveExpiredRefund(ctx, c); err != nil {
			s.logger.Error("pending refund retry failed", "contract_id", c.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Info("pending refunds settled", "recovered", recovered)
	}
	return expired, nil
}

// Get retrieves a contract by ID.
func (s *EscrowService) Get(ctx context.Context, contractID string) (domain.EscrowContract, error) {
	c, err := s.escrows.GetByID(ctx, contractID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: get %s: %w", contractID, err)
	}
	return c, nil
}

// ActiveForWatch returns the non-terminal contract for a watch, if any.
func (s *EscrowService) ActiveForWatch(ctx context.Context, watchID string) (domain.EscrowContract, error) {
	c, err := s.escrows.GetActiveByWatch(ctx, watchID)
	if err != nil {
		return domain.EscrowContract{}, fmt.Errorf("escrow_service: active for watch %s: %w", watchID, err)
	}
	return c, nil
}

// flagContract re-reads the contract and applies a flag mutation under CAS.
func (s *EscrowService) flagContract(ctx context.Context, contractID string, mutate func(*domain.EscrowContract)) {
	c, err := s.escrows.GetByID(ctx, contractID)
	if err != nil {
		s.logger.Error("flag contract read failed", "contract_id", contractID, "error", err)
		return
	}
	expected := c.StateVersion
	mutate(&c)
	if err := s.escrows.Update(ctx, c, expected); err != nil {
		s.logger.Error("flag contract update failed", "contract_id", contractID, "error", err)
	}
}

func (s *EscrowService) markWatchEvaluated(ctx context.Context, watchID string) {
	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		s.logger.Error("watch read failed", "watch_id", watchID, "error", err)
		return
	}
	if w.State != domain.WatchStateInEscrow {
		return
	}
	expected := w.StateVersion
	w.State = domain.WatchStateEvaluated
	w.UpdatedAt = time.Now().UTC()
	if err := s.watches.Update(ctx, w, expected); err != nil {
		s.logger.Error("watch state update failed", "watch_id", watchID, "error", err)
	}
}

func (s *EscrowService) relistWatch(ctx context.Context, watchID string) {
	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		s.logger.Error("watch read failed", "watch_id", watchID, "error", err)
		return
	}
	expected := w.StateVersion
	w.State = domain.WatchStateListed
	w.UpdatedAt = time.Now().UTC()
	if err := s.watches.Update(ctx, w, expected); err != nil {
		s.logger.Error("watch relist failed", "watch_id", watchID, "error", err)
	}
}

func (s *EscrowService) compensateHold(ctx context.Context, contractID, holdRef string) {
	if err := s.settlement.ReleaseHoldForFailedOpen(ctx, contractID, holdRef); err != nil {
		s.logger.Error("compensating refund failed", "contract_id", contractID, "error", err)
	}
}

func (s *EscrowService) invalidateListings(ctx context.Context) {
	if s.listings == nil {
		return
	}
	if err := s.listings.Invalidate(ctx); err != nil {
		s.logger.Warn("listing cache invalidation failed", "error", err)
	}
}

func (s *EscrowService) publishEvent(ctx context.Context, eventType, watchID, contractID string, detail map[string]string) {
	if s.bus == nil {
		return
	}
	e := domain.Event{
		Type:       eventType,
		WatchID:    watchID,
		ContractID: contractID,
		Detail:     detail,
		At:         time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed", "type", eventType, "error", err)
	}
}

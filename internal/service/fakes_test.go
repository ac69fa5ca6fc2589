package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/payment"
	"github.com/Maicon-MK/integra--o-blockchain/internal/retry"
)

// In-memory store fakes mirroring the postgres layer's concurrency
// semantics: compare-and-swap on StateVersion and unique-constraint errors.

type fakeWatchStore struct {
	mu      sync.Mutex
	watches map[string]domain.Watch
}

func newFakeWatchStore() *fakeWatchStore {
	return &fakeWatchStore{watches: make(map[string]domain.Watch)}
}

func (s *fakeWatchStore) Create(_ context.Context, w domain.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.watches {
		if existing.Serial == w.Serial {
			return domain.ErrAlreadyExists
		}
	}
	s.watches[w.ID] = w
	return nil
}

func (s *fakeWatchStore) GetByID(_ context.Context, id string) (domain.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[id]
	if !ok {
		return domain.Watch{}, domain.ErrNotFound
	}
	return w, nil
}

func (s *fakeWatchStore) GetBySerial(_ context.Context, serial string) (domain.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watches {
		if w.Serial == serial {
			return w, nil
		}
	}
	return domain.Watch{}, domain.ErrNotFound
}

func (s *fakeWatchStore) ListByState(_ context.Context, state domain.WatchState, opts domain.ListOpts) ([]domain.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Watch
	for _, w := range s.watches {
		if w.State == state {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeWatchStore) Update(_ context.Context, w domain.Watch, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.watches[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.StateVersion != expectedVersion {
		return domain.ErrConflict
	}
	w.StateVersion = expectedVersion + 1
	s.watches[w.ID] = w
	return nil
}

type fakeEscrowStore struct {
	mu        sync.Mutex
	contracts map[string]domain.EscrowContract
}

func newFakeEscrowStore() *fakeEscrowStore {
	return &fakeEscrowStore{contracts: make(map[string]domain.EscrowContract)}
}

func (s *fakeEscrowStore) Create(_ context.Context, c domain.EscrowContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contracts {
		if existing.WatchID == c.WatchID && !existing.State.Terminal() {
			return domain.ErrConflict
		}
	}
	s.contracts[c.ID] = c
	return nil
}

func (s *fakeEscrowStore) GetByID(_ context.Context, id string) (domain.EscrowContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return domain.EscrowContract{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *fakeEscrowStore) GetActiveByWatch(_ context.Context, watchID string) (domain.EscrowContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if c.WatchID == watchID && !c.State.Terminal() {
			return c, nil
		}
	}
	return domain.EscrowContract{}, domain.ErrNotFound
}

func (s *fakeEscrowStore) Update(_ context.Context, c domain.EscrowContract, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.contracts[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.StateVersion != expectedVersion {
		return domain.ErrConflict
	}
	c.StateVersion = expectedVersion + 1
	s.contracts[c.ID] = c
	return nil
}

func (s *fakeEscrowStore) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.EscrowContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EscrowContract
	for _, c := range s.contracts {
		if c.Expirable(now) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeEscrowStore) ListRefundPending(_ context.Context, limit int) ([]domain.EscrowContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EscrowContract
	for _, c := range s.contracts {
		if c.State == domain.EscrowStateExpired && c.RefundPending {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeEscrowStore) ListTerminalUnarchived(_ context.Context, before time.Time, limit int) ([]domain.EscrowContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EscrowContract
	for _, c := range s.contracts {
		if c.State.Terminal() && !c.Archived && c.ResolvedAt != nil && c.ResolvedAt.Before(before) {
			out = append(out, c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeEscrowStore) MarkArchived(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if c, ok := s.contracts[id]; ok {
			c.Archived = true
			s.contracts[id] = c
		}
	}
	return nil
}

type fakeEvaluationStore struct {
	mu          sync.Mutex
	evaluations map[string]domain.Evaluation
}

func newFakeEvaluationStore() *fakeEvaluationStore {
	return &fakeEvaluationStore{evaluations: make(map[string]domain.Evaluation)}
}

func (s *fakeEvaluationStore) Create(_ context.Context, e domain.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations[e.ID] = e
	return nil
}

func (s *fakeEvaluationStore) GetByID(_ context.Context, id string) (domain.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluations[id]
	if !ok {
		return domain.Evaluation{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *fakeEvaluationStore) GetByContract(_ context.Context, contractID string) (domain.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest domain.Evaluation
	found := false
	for _, e := range s.evaluations {
		if e.ContractID == contractID && (!found || e.CreatedAt.After(latest.CreatedAt)) {
			latest = e
			found = true
		}
	}
	if !found {
		return domain.Evaluation{}, domain.ErrNotFound
	}
	return latest, nil
}

func (s *fakeEvaluationStore) Complete(_ context.Context, id string, result domain.EvaluationResult, certificateRef string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Result != domain.EvaluationPending {
		return domain.ErrAlreadyCompleted
	}
	e.Result = result
	e.CertificateRef = certificateRef
	e.CompletedAt = &at
	s.evaluations[id] = e
	return nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	records []domain.TokenRecord
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{}
}

func (s *fakeTokenStore) Append(_ context.Context, rec domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.OpRef == rec.OpRef {
			return domain.ErrAlreadyExists
		}
		if r.WatchID == rec.WatchID && r.Seq == rec.Seq {
			return domain.ErrAlreadyExists
		}
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeTokenStore) GetByOpRef(_ context.Context, opRef string) (domain.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.OpRef == opRef {
			return r, nil
		}
	}
	return domain.TokenRecord{}, domain.ErrNotFound
}

func (s *fakeTokenStore) Active(_ context.Context, watchID string) (domain.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.TokenRecord
	found := false
	for _, r := range s.records {
		if r.WatchID == watchID && (!found || r.Seq > best.Seq) {
			best = r
			found = true
		}
	}
	if !found {
		return domain.TokenRecord{}, domain.ErrNotFound
	}
	return best, nil
}

func (s *fakeTokenStore) History(_ context.Context, watchID string) ([]domain.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TokenRecord
	for _, r := range s.records {
		if r.WatchID == watchID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *fakeTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeCommissionStore struct {
	mu      sync.Mutex
	records []domain.Commission
}

func newFakeCommissionStore() *fakeCommissionStore {
	return &fakeCommissionStore{}
}

func (s *fakeCommissionStore) Create(_ context.Context, c domain.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ContractID == c.ContractID && r.Beneficiary == c.Beneficiary {
			return domain.ErrAlreadyExists
		}
	}
	s.records = append(s.records, c)
	return nil
}

func (s *fakeCommissionStore) ListByContract(_ context.Context, contractID string) ([]domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Commission
	for _, r := range s.records {
		if r.ContractID == contractID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeCommissionStore) SumByBeneficiary(_ context.Context, b domain.CommissionBeneficiary, since time.Time) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, r := range s.records {
		if r.Beneficiary == b && !r.CreatedAt.Before(since) {
			total += r.Amount
		}
	}
	return total, nil
}

type fakeTransferStore struct {
	mu        sync.Mutex
	transfers []domain.OwnershipTransfer
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{}
}

func (s *fakeTransferStore) Create(_ context.Context, t domain.OwnershipTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, t)
	return nil
}

func (s *fakeTransferStore) ListByWatch(_ context.Context, watchID string) ([]domain.OwnershipTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OwnershipTransfer
	for _, t := range s.transfers {
		if t.WatchID == watchID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	evaluators []domain.EvaluatorRef
}

func (d *fakeDirectory) FindEligible(_ context.Context, category string) (domain.EvaluatorRef, error) {
	for _, e := range d.evaluators {
		if e.Category == category && e.Active {
			return e, nil
		}
	}
	return domain.EvaluatorRef{}, domain.ErrNoEvaluatorAvailable
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (domain.EvaluatorRef, error) {
	for _, e := range d.evaluators {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.EvaluatorRef{}, domain.ErrNotFound
}

// fakeChain is a scriptable chain client. failures > 0 fails that many
// submissions with failErr; failures < 0 fails every submission.
type fakeChain struct {
	mu       sync.Mutex
	failures int
	failErr  error
	submits  []domain.ChainOp
}

func (c *fakeChain) Submit(_ context.Context, op domain.ChainOp) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits = append(c.submits, op)
	if c.failures != 0 {
		if c.failures > 0 {
			c.failures--
		}
		return "", fmt.Errorf("fake chain: %w", c.failErr)
	}
	return "tx-" + op.OpRef[:8], nil
}

func (c *fakeChain) submitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submits)
}

func (c *fakeChain) script(failures int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = failures
	c.failErr = err
}

type fakeLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (lm *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true
	return func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		delete(lm.held, key)
	}, nil
}

// fakeRateLimiter counts calls per key within the test's lifetime.
type fakeRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{counts: make(map[string]int)}
}

func (rl *fakeRateLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.counts[key]++
	return rl.counts[key] <= limit, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

// fixture wires the full service stack against fakes and the in-memory
// payment simulator.
type fixture struct {
	watches     *fakeWatchStore
	escrows     *fakeEscrowStore
	evaluations *fakeEvaluationStore
	tokens      *fakeTokenStore
	commissions *fakeCommissionStore
	transfers   *fakeTransferStore
	directory   *fakeDirectory
	chain       *fakeChain
	gateway     *payment.Simulator
	limiter     *fakeRateLimiter
	bus         *recordingBus

	watchSvc  *WatchService
	evalSvc   *EvaluationService
	tokenSvc  *TokenService
	settleSvc *SettlementService
	escrowSvc *EscrowService
}

const (
	testSeller   = "seller-1"
	testBuyer    = "buyer-1"
	testBuyerKey = "GDQNY3PBOJOKYZSRMK2S7LHHGWZIUISD4QORETLMXEWXBI7KFZZMKTL3"
)

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		watches:     newFakeWatchStore(),
		escrows:     newFakeEscrowStore(),
		evaluations: newFakeEvaluationStore(),
		tokens:      newFakeTokenStore(),
		commissions: newFakeCommissionStore(),
		transfers:   newFakeTransferStore(),
		chain:       &fakeChain{},
		gateway:     payment.NewSimulator(),
		limiter:     newFakeRateLimiter(),
		bus:         &recordingBus{},
	}
	f.directory = &fakeDirectory{evaluators: []domain.EvaluatorRef{
		{ID: "eval-1", Name: "Horology House", Category: "diver", Tier: "standard", Fee: 200, Active: true},
		{ID: "eval-2", Name: "Atelier Geneva", Category: "dress", Tier: "master", Fee: 500, Active: true},
	}}

	f.watchSvc = NewWatchService(f.watches, f.tokens, f.transfers, nil, f.bus, logger)
	f.evalSvc = NewEvaluationService(f.evaluations, f.directory, f.bus, logger)
	f.tokenSvc = NewTokenService(f.tokens, f.chain, "WT", f.bus, logger)
	f.settleSvc = NewSettlementService(f.gateway, f.commissions, "platform",
		0.03, map[string]float64{"standard": 0.025, "master": 0.05}, logger)
	f.escrowSvc = NewEscrowService(
		f.escrows, f.watches, f.transfers,
		f.evalSvc, f.tokenSvc, f.settleSvc,
		newFakeLockManager(), f.limiter, nil, f.bus,
		EscrowConfig{
			DefaultDeadline: time.Hour,
			LockTTL:         time.Second,
			OpenRateLimit:   10,
			OpenRateWindow:  time.Minute,
			ChainRetry:      retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		},
		logger,
	)
	return f
}

// listedWatch registers and lists a diver watch at 100.00 owned by the test
// seller.
func (f *fixture) listedWatch(ctx context.Context) (domain.Watch, error) {
	w, err := f.watchSvc.Register(ctx, RegisterWatchInput{
		Serial:      "SN-1000",
		Brand:       "Submariner Works",
		Model:       "Reef 200",
		Year:        2019,
		Category:    "diver",
		Condition:   "excellent",
		OwnerID:     testSeller,
		AskingPrice: 10000,
	})
	if err != nil {
		return domain.Watch{}, err
	}
	return f.watchSvc.List(ctx, w.ID, testSeller, 10000)
}

// openFunded seeds the buyer and opens a funded contract for the watch.
func (f *fixture) openFunded(ctx context.Context, watchID string) (domain.EscrowContract, error) {
	f.gateway.Credit(testBuyer, 10000)
	return f.escrowSvc.Open(ctx, watchID, testBuyer, testBuyerKey, 10000)
}

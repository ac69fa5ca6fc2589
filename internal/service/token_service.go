package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Maicon-MK/integra--o-blockchain/internal/chain/stellar"
	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// OpRef derives the deterministic idempotency reference for a contract's
// token operation. The same contract, watch, and destination key always
// produce the same reference, so a retried submission collapses to one
// on-chain effect.
func OpRef(contractID, watchID, ownerKey string) string {
	h := sha256.Sum256([]byte(contractID + "|" + watchID + "|" + ownerKey))
	return hex.EncodeToString(h[:])
}

// TokenService drives the on-chain side of settlement: minting a watch's
// token on first sale and transferring it on resale, with an append-only
// provenance history.
type TokenService struct {
	tokens      domain.TokenStore
	chain       domain.ChainClient
	assetPrefix string
	bus         domain.EventBus
	logger      *slog.Logger
}

// NewTokenService creates a TokenService.
func NewTokenService(
	tokens domain.TokenStore,
	chain domain.ChainClient,
	assetPrefix string,
	bus domain.EventBus,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tokens:      tokens,
		chain:       chain,
		assetPrefix: assetPrefix,
		bus:         bus,
		logger:      logger,
	}
}

// MintOrTransfer executes the token operation for an approved contract. The
// first operation for a watch mints the token at sequence 1; later ones
// transfer it, appending the next sequence. The call is idempotent: if a
// record for the contract's operation reference already exists it is returned
// without touching the chain.
func (s *TokenService) MintOrTransfer(ctx context.Context, w domain.Watch, c domain.EscrowContract) (domain.TokenRecord, error) {
	opRef := OpRef(c.ID, w.ID, c.BuyerKey)

	if rec, err := s.tokens.GetByOpRef(ctx, opRef); err == nil {
		return rec, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.TokenRecord{}, fmt.Errorf("token_service: lookup op %s: %w", opRef, err)
	}

	kind := domain.ChainOpMint
	seq := 1
	active, err := s.tokens.Active(ctx, w.ID)
	switch {
	case err == nil:
		kind = domain.ChainOpTransfer
		seq = active.Seq + 1
	case errors.Is(err, domain.ErrNotFound):
		// No prior record: this operation mints the token.
	default:
		return domain.TokenRecord{}, fmt.Errorf("token_service: active token for watch %s: %w", w.ID, err)
	}

	op := domain.ChainOp{
		OpRef:     opRef,
		Kind:      kind,
		AssetCode: stellar.AssetCode(s.assetPrefix, w.Serial),
		ToKey:     c.BuyerKey,
		MemoHash:  sha256.Sum256([]byte(opRef)),
	}

	txRef, err := s.chain.Submit(ctx, op)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("token_service: submit %s for watch %s: %w", kind, w.ID, err)
	}

	rec := domain.TokenRecord{
		ID:         uuid.New().String(),
		WatchID:    w.ID,
		ContractID: c.ID,
		OpRef:      opRef,
		TxRef:      txRef,
		OwnerKey:   c.BuyerKey,
		Seq:        seq,
		MintedAt:   time.Now().UTC(),
	}
	if err := s.tokens.Append(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent resolve landed the same operation first; its
			// record is authoritative.
			existing, getErr := s.tokens.GetByOpRef(ctx, opRef)
			if getErr != nil {
				return domain.TokenRecord{}, fmt.Errorf("token_service: record op %s: %w", opRef, getErr)
			}
			return existing, nil
		}
		return domain.TokenRecord{}, fmt.Errorf("token_service: record op %s: %w", opRef, err)
	}

	eventType := domain.EventTokenMinted
	if kind == domain.ChainOpTransfer {
		eventType = domain.EventTokenTransferred
	}
	s.publishEvent(ctx, eventType, w.ID, c.ID, map[string]string{
		"tx_ref": txRef,
		"seq":    fmt.Sprintf("%d", seq),
	})
	s.logger.Info("token operation recorded",
		"watch_id", w.ID, "contract_id", c.ID, "kind", kind, "seq", seq, "tx_ref", txRef)
	return rec, nil
}

// Active returns the current token record for a watch.
func (s *TokenService) Active(ctx context.Context, watchID string) (domain.TokenRecord, error) {
	rec, err := s.tokens.Active(ctx, watchID)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("token_service: active for watch %s: %w", watchID, err)
	}
	return rec, nil
}

func (s *TokenService) publishEvent(ctx context.Context, eventType, watchID, contractID string, detail map[string]string) {
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

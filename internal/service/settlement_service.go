package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// SettlementService moves money: it places holds when escrow opens and
// splits the held amount between seller, platform, and evaluator when a
// contract releases. Every gateway call is keyed by a reference derived from
// the contract ID so retried settlements post at most once.
type SettlementService struct {
	gateway         domain.PaymentGateway
	commissions     domain.CommissionStore
	platformAccount string
	defaultRate     float64
	tierRates       map[string]float64
	logger          *slog.Logger
}

// NewSettlementService creates a SettlementService. tierRates maps evaluator
// tiers to commission rates; tiers without an entry use defaultRate.
func NewSettlementService(
	gateway domain.PaymentGateway,
	commissions domain.CommissionStore,
	platformAccount string,
	defaultRate float64,
	tierRates map[string]float64,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		gateway:         gateway,
		commissions:     commissions,
		platformAccount: platformAccount,
		defaultRate:     defaultRate,
		tierRates:       tierRates,
		logger:          logger,
	}
}

// Rate returns the commission rate for an evaluator tier.
func (s *SettlementService) Rate(tier string) float64 {
	if r, ok := s.tierRates[tier]; ok {
		return r
	}
	return s.defaultRate
}

// Hold places the buyer's funds on hold for a contract.
func (s *SettlementService) Hold(ctx context.Context, contractID, buyerID string, amount domain.Money) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("settlement_service: hold %s: %w", amount, domain.ErrInvalidAmount)
	}
	ref, err := s.gateway.Hold(ctx, "hold:"+contractID, buyerID, amount)
	if err != nil {
		return "", fmt.Errorf("settlement_service: hold for contract %s: %w", contractID, err)
	}
	return ref, nil
}

// Payout releases a contract's held funds in three legs: the platform
// commission (evaluator tier rate, rounded half up to the cent), the
// evaluator's flat fee, and the remainder to the seller. All legs post
// atomically. Commission rows are recorded per beneficiary; rows that already
// exist from an earlier attempt are left in place.
func (s *SettlementService) Payout(ctx context.Context, c domain.EscrowContract, sellerAccount string, evaluator domain.EvaluatorRef) ([]domain.Commission, error) {
	rate := s.Rate(evaluator.Tier)
	platformCut := c.Amount.MulRate(rate)
	evaluatorFee := evaluator.Fee

	sellerNet := c.Amount - platformCut - evaluatorFee
	if sellerNet < 0 {
		return nil, fmt.Errorf("settlement_service: payout %s: fees %s exceed amount %s: %w",
			c.ID, platformCut+evaluatorFee, c.Amount, domain.ErrInvalidAmount)
	}

	transfers := []domain.Transfer{
		{Payee: sellerAccount, Amount: sellerNet},
		{Payee: s.platformAccount, Amount: platformCut},
	}
	if evaluatorFee > 0 {
		transfers = append(transfers, domain.Transfer{Payee: evaluator.ID, Amount: evaluatorFee})
	}

	if err := s.gateway.Release(ctx, "release:"+c.ID, c.HoldRef, transfers); err != nil {
		return nil, fmt.Errorf("settlement_service: release for contract %s: %w", c.ID, err)
	}

	now := time.Now().UTC()
	records := []domain.Commission{
		{
			ID:          uuid.New().String(),
			ContractID:  c.ID,
			Beneficiary: domain.BeneficiaryPlatform,
			Rate:        rate,
			Amount:      platformCut,
			CreatedAt:   now,
		},
	}
	if evaluatorFee > 0 {
		records = append(records, domain.Commission{
			ID:            uuid.New().String(),
			ContractID:    c.ID,
			Beneficiary:   domain.BeneficiaryEvaluator,
			BeneficiaryID: evaluator.ID,
			Amount:        evaluatorFee,
			CreatedAt:     now,
		})
	}

	for _, rec := range records {
		if err := s.commissions.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return nil, fmt.Errorf("settlement_service: record commission for contract %s: %w", c.ID, err)
		}
	}

	s.logger.Info("payout settled",
		"contract_id", c.ID,
		"seller_net", sellerNet.String(),
		"platform_cut", platformCut.String(),
		"evaluator_fee", evaluatorFee.String())
	return records, nil
}

// Refund returns a contract's full held amount to the buyer.
func (s *SettlementService) Refund(ctx context.Context, c domain.EscrowContract) error {
	if err := s.gateway.Refund(ctx, "refund:"+c.ID, c.HoldRef); err != nil {
		return fmt.Errorf("settlement_service: refund for contract %s: %w", c.ID, err)
	}
	s.logger.Info("hold refunded", "contract_id", c.ID, "amount", c.Amount.String())
	return nil
}

// Commissions returns the fee rows recorded for a contract.
func (s *SettlementService) Commissions(ctx context.Context, contractID string) ([]domain.Commission, error) {
	rows, err := s.commissions.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service: commissions for %s: %w", contractID, err)
	}
	return rows, nil
}

// EarningsSince totals a beneficiary's commissions recorded at or after the
// given time.
func (s *SettlementService) EarningsSince(ctx context.Context, b domain.CommissionBeneficiary, since time.Time) (domain.Money, error) {
	total, err := s.commissions.SumByBeneficiary(ctx, b, since)
	if err != nil {
		return 0, fmt.Errorf("settlement_service: earnings for %s: %w", b, err)
	}
	return total, nil
}

// ReleaseHoldForFailedOpen compensates a hold placed for a contract that was
// never persisted, typically because another buyer won the open race.
func (s *SettlementService) ReleaseHoldForFailedOpen(ctx context.Context, contractID, holdRef string) error {
	if err := s.gateway.Refund(ctx, "refund:"+contractID, holdRef); err != nil {
		return fmt.Errorf("settlement_service: compensating refund for contract %s: %w", contractID, err)
	}
	return nil
}

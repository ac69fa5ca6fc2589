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

// EvaluationService assigns accredited evaluators and records their
// determinations.
type EvaluationService struct {
	evaluations domain.EvaluationStore
	evaluators  domain.EvaluatorDirectory
	bus         domain.EventBus
	logger      *slog.Logger
}

// NewEvaluationService creates an EvaluationService.
func NewEvaluationService(
	evaluations domain.EvaluationStore,
	evaluators domain.EvaluatorDirectory,
	bus domain.EventBus,
	logger *slog.Logger,
) *EvaluationService {
	return &EvaluationService{
		evaluations: evaluations,
		evaluators:  evaluators,
		bus:         bus,
		logger:      logger,
	}
}

// Request assigns an evaluator accredited for the watch's category and opens
// a pending evaluation against the contract. No evaluator covering the
// category means ErrNoEvaluatorAvailable and the contract stays untouched.
func (s *EvaluationService) Request(ctx context.Context, w domain.Watch, contractID string) (domain.Evaluation, error) {
	evaluator, err := s.evaluators.FindEligible(ctx, w.Category)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: request for watch %s: %w", w.ID, err)
	}

	e := domain.Evaluation{
		ID:          uuid.New().String(),
		WatchID:     w.ID,
		ContractID:  contractID,
		EvaluatorID: evaluator.ID,
		Result:      domain.EvaluationPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.evaluations.Create(ctx, e); err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: create for watch %s: %w", w.ID, err)
	}

	s.publishEvent(ctx, domain.EventEvaluationRequested, w.ID, contractID, map[string]string{
		"evaluation_id": e.ID,
		"evaluator_id":  evaluator.ID,
	})
	s.logger.Info("evaluation requested",
		"evaluation_id", e.ID, "watch_id", w.ID, "evaluator_id", evaluator.ID)
	return e, nil
}

// Complete records the evaluator's determination. The result is written at
// most once: a repeat with the identical result and certificate is a no-op
// returning the stored record, while a conflicting repeat fails with
// ErrAlreadyCompleted.
func (s *EvaluationService) Complete(ctx context.Context, evaluationID string, result domain.EvaluationResult, certificateRef string) (domain.Evaluation, error) {
	if result != domain.EvaluationCertified && result != domain.EvaluationRejected {
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: complete %s with result %s: %w",
			evaluationID, result, domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	err := s.evaluations.Complete(ctx, evaluationID, result, certificateRef, now)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			existing, getErr := s.evaluations.GetByID(ctx, evaluationID)
			if getErr != nil {
				return domain.Evaluation{}, fmt.Errorf("evaluation_service: complete %s: %w", evaluationID, getErr)
			}
			if existing.Result == result && existing.CertificateRef == certificateRef {
				return existing, nil
			}
		}
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: complete %s: %w", evaluationID, err)
	}

	e, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: complete %s: %w", evaluationID, err)
	}

	s.publishEvent(ctx, domain.EventEvaluationCompleted, e.WatchID, e.ContractID, map[string]string{
		"evaluation_id": e.ID,
		"result":        string(result),
	})
	s.logger.Info("evaluation completed",
		"evaluation_id", e.ID, "watch_id", e.WatchID, "result", result)
	return e, nil
}

// Get retrieves an evaluation by ID.
func (s *EvaluationService) Get(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	e, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluation_service: get %s: %w", evaluationID, err)
	}
	return e, nil
}

// Evaluator retrieves the directory entry for an evaluator.
func (s *EvaluationService) Evaluator(ctx context.Context, evaluatorID string) (domain.EvaluatorRef, error) {
	ev, err := s.evaluators.GetByID(ctx, evaluatorID)
	if err != nil {
		return domain.EvaluatorRef{}, fmt.Errorf("evaluation_service: evaluator %s: %w", evaluatorID, err)
	}
	return ev, nil
}

func (s *EvaluationService) publishEvent(ctx context.Context, eventType, watchID, contractID string, detail map[string]string) {
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

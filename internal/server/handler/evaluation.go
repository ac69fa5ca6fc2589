package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
)

// EvaluationHandler serves the evaluation endpoints.
type EvaluationHandler struct {
	evaluations *service.EvaluationService
	escrows     *service.EscrowService
	logger      *slog.Logger
}

// NewEvaluationHandler creates an EvaluationHandler.
func NewEvaluationHandler(evaluations *service.EvaluationService, escrows *service.EscrowService, logger *slog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		escrows:     escrows,
		logger:      logHandler(logger, "evaluation"),
	}
}

type evaluationJSON struct {
	ID             string `json:"id"`
	WatchID        string `json:"watch_id"`
	ContractID     string `json:"contract_id"`
	EvaluatorID    string `json:"evaluator_id"`
	Result         string `json:"result"`
	CertificateRef string `json:"certificate_ref,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

func toEvaluationJSON(e domain.Evaluation) evaluationJSON {
	out := evaluationJSON{
		ID:             e.ID,
		WatchID:        e.WatchID,
		ContractID:     e.ContractID,
		EvaluatorID:    e.EvaluatorID,
		Result:         string(e.Result),
		CertificateRef: e.CertificateRef,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
	if e.CompletedAt != nil {
		out.CompletedAt = e.CompletedAt.Format(time.RFC3339)
	}
	return out
}

// Get returns an evaluation by ID.
// GET /api/evaluations/{id}
func (h *EvaluationHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.evaluations.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationJSON(e))
}

// Complete records the evaluator's determination and drives the contract
// through resolution. The call is idempotent for identical repeats.
// POST /api/evaluations/{id}/complete
func (h *EvaluationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result         string `json:"result"`
		CertificateRef string `json:"certificate_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.escrows.SubmitEvaluation(r.Context(),
		pathParam(r, "id"), domain.EvaluationResult(req.Result), req.CertificateRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

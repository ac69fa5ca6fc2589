package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
)

// EscrowHandler serves the escrow contract endpoints.
type EscrowHandler struct {
	escrows *service.EscrowService
	logger  *slog.Logger
}

// NewEscrowHandler creates an EscrowHandler.
func NewEscrowHandler(escrows *service.EscrowService, logger *slog.Logger) *EscrowHandler {
	return &EscrowHandler{escrows: escrows, logger: logHandler(logger, "escrow")}
}

type contractJSON struct {
	ID                string  `json:"id"`
	WatchID           string  `json:"watch_id"`
	BuyerID           string  `json:"buyer_id"`
	SellerID          string  `json:"seller_id"`
	Amount            float64 `json:"amount"`
	State             string  `json:"state"`
	EvaluationID      string  `json:"evaluation_id,omitempty"`
	RetryEligible     bool    `json:"retry_eligible"`
	NeedsIntervention bool    `json:"needs_intervention"`
	CreatedAt         string  `json:"created_at"`
	Deadline          string  `json:"deadline"`
	ResolvedAt        string  `json:"resolved_at,omitempty"`
}

func toContractJSON(c domain.EscrowContract) contractJSON {
	out := contractJSON{
		ID:                c.ID,
		WatchID:           c.WatchID,
		BuyerID:           c.BuyerID,
		SellerID:          c.SellerID,
		Amount:            c.Amount.Float(),
		State:             string(c.State),
		EvaluationID:      c.EvaluationID,
		RetryEligible:     c.RetryEligible,
		NeedsIntervention: c.NeedsIntervention,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
		Deadline:          c.Deadline.Format(time.RFC3339),
	}
	if c.ResolvedAt != nil {
		out.ResolvedAt = c.ResolvedAt.Format(time.RFC3339)
	}
	return out
}

// Open funds a new escrow contract against a listed watch.
// POST /api/escrows
func (h *EscrowHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WatchID  string  `json:"watch_id"`
		BuyerID  string  `json:"buyer_id"`
		BuyerKey string  `json:"buyer_key"`
		Amount   float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.escrows.Open(r.Context(), req.WatchID, req.BuyerID, req.BuyerKey, domain.MoneyFromFloat(req.Amount))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractJSON(c))
}

// Get returns a contract by ID.
// GET /api/escrows/{id}
func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.escrows.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

// ActiveForWatch returns the non-terminal contract for a watch.
// GET /api/watches/{id}/escrow
func (h *EscrowHandler) ActiveForWatch(w http.ResponseWriter, r *http.Request) {
	c, err := h.escrows.ActiveForWatch(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

// BeginEvaluation assigns an evaluator to a funded contract.
// POST /api/escrows/{id}/evaluation
func (h *EscrowHandler) BeginEvaluation(w http.ResponseWriter, r *http.Request) {
	ev, err := h.escrows.BeginEvaluation(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvaluationJSON(ev))
}

// Resolve re-drives resolution of an approved or rejected contract. Used to
// retry contracts left retry-eligible by a chain outage.
// POST /api/escrows/{id}/resolve
func (h *EscrowHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	c, err := h.escrows.Resolve(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

// Expire closes a contract whose deadline passed without an evaluation
// outcome.
// POST /api/escrows/{id}/expire
func (h *EscrowHandler) Expire(w http.ResponseWriter, r *http.Request) {
	c, err := h.escrows.Expire(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

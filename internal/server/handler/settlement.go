package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
)

// SettlementHandler exposes read access to recorded commissions.
type SettlementHandler struct {
	settlement *service.SettlementService
	logger     *slog.Logger
}

func NewSettlementHandler(settlement *service.SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, logger: logHandler(logger, "settlement")}
}

type commissionJSON struct {
	ID            string  `json:"id"`
	ContractID    string  `json:"contract_id"`
	Beneficiary   string  `json:"beneficiary"`
	BeneficiaryID string  `json:"beneficiary_id,omitempty"`
	Rate          float64 `json:"rate"`
	Amount        float64 `json:"amount"`
	CreatedAt     string  `json:"created_at"`
}

func toCommissionJSON(c domain.Commission) commissionJSON {
	return commissionJSON{
		ID:            c.ID,
		ContractID:    c.ContractID,
		Beneficiary:   string(c.Beneficiary),
		BeneficiaryID: c.BeneficiaryID,
		Rate:          c.Rate,
		Amount:        c.Amount.Float(),
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Commissions handles GET /api/escrows/{id}/commissions.
func (h *SettlementHandler) Commissions(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing contract id")
		return
	}

	rows, err := h.settlement.Commissions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]commissionJSON, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCommissionJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commissions": out,
		"count":       len(out),
	})
}

// Earnings handles GET /api/earnings/{beneficiary}. The optional "since"
// query parameter (RFC 3339) bounds the window; it defaults to the start of
// the current month.
func (h *SettlementHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	b := domain.CommissionBeneficiary(pathParam(r, "beneficiary"))
	if b != domain.BeneficiaryPlatform && b != domain.BeneficiaryEvaluator {
		writeError(w, http.StatusBadRequest, "beneficiary must be platform or evaluator")
		return
	}

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	total, err := h.settlement.EarningsSince(r.Context(), b, since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"beneficiary": string(b),
		"since":       since.Format(time.RFC3339),
		"total":       total.Float(),
	})
}

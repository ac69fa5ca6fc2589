package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
	"github.com/Maicon-MK/integra--o-blockchain/internal/service"
)

// WatchHandler serves the watch registry and marketplace endpoints.
type WatchHandler struct {
	watches *service.WatchService
	logger  *slog.Logger
}

// NewWatchHandler creates a WatchHandler.
func NewWatchHandler(watches *service.WatchService, logger *slog.Logger) *WatchHandler {
	return &WatchHandler{watches: watches, logger: logHandler(logger, "watch")}
}

type watchJSON struct {
	ID          string  `json:"id"`
	Serial      string  `json:"serial"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Year        int     `json:"year"`
	Category    string  `json:"category"`
	Condition   string  `json:"condition"`
	OwnerID     string  `json:"owner_id"`
	AskingPrice float64 `json:"asking_price"`
	State       string  `json:"state"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toWatchJSON(w domain.Watch) watchJSON {
	return watchJSON{
		ID:          w.ID,
		Serial:      w.Serial,
		Brand:       w.Brand,
		Model:       w.Model,
		Year:        w.Year,
		Category:    w.Category,
		Condition:   w.Condition,
		OwnerID:     w.OwnerID,
		AskingPrice: w.AskingPrice.Float(),
		State:       string(w.State),
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   w.UpdatedAt.Format(time.RFC3339),
	}
}

// Register creates a watch.
// POST /api/watches
func (h *WatchHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Serial      string  `json:"serial"`
		Brand       string  `json:"brand"`
		Model       string  `json:"model"`
		Year        int     `json:"year"`
		Category    string  `json:"category"`
		Condition   string  `json:"condition"`
		OwnerID     string  `json:"owner_id"`
		AskingPrice float64 `json:"asking_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watch, err := h.watches.Register(r.Context(), service.RegisterWatchInput{
		Serial:      req.Serial,
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
		Category:    req.Category,
		Condition:   req.Condition,
		OwnerID:     req.OwnerID,
		AskingPrice: domain.MoneyFromFloat(req.AskingPrice),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWatchJSON(watch))
}

// Get returns a single watch.
// GET /api/watches/{id}
func (h *WatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	watch, err := h.watches.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWatchJSON(watch))
}

// List puts a watch up for sale.
// POST /api/watches/{id}/list
func (h *WatchHandler) List(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string  `json:"owner_id"`
		Price   float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watch, err := h.watches.List(r.Context(), pathParam(r, "id"), req.OwnerID, domain.MoneyFromFloat(req.Price))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWatchJSON(watch))
}

// Delist withdraws a watch from sale.
// POST /api/watches/{id}/delist
func (h *WatchHandler) Delist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watch, err := h.watches.Delist(r.Context(), pathParam(r, "id"), req.OwnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWatchJSON(watch))
}

// Marketplace lists the watches currently for sale.
// GET /api/marketplace
func (h *WatchHandler) Marketplace(w http.ResponseWriter, r *http.Request) {
	watches, err := h.watches.Marketplace(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]watchJSON, len(watches))
	for i, watch := range watches {
		out[i] = toWatchJSON(watch)
	}
	writeJSON(w, http.StatusOK, map[string]any{"watches": out, "count": len(out)})
}

// History returns a watch's provenance: token records and ownership
// transfers.
// GET /api/watches/{id}/history
func (h *WatchHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.watches.History(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type recordJSON struct {
		Seq      int    `json:"seq"`
		OwnerKey string `json:"owner_key"`
		TxRef    string `json:"tx_ref"`
		Mint     bool   `json:"mint"`
		MintedAt string `json:"minted_at"`
	}
	type transferJSON struct {
		FromOwner string  `json:"from_owner"`
		ToOwner   string  `json:"to_owner"`
		Price     float64 `json:"price"`
		TxRef     string  `json:"tx_ref"`
		CreatedAt string  `json:"created_at"`
	}

	records := make([]recordJSON, len(hist.Records))
	for i, rec := range hist.Records {
		records[i] = recordJSON{
			Seq:      rec.Seq,
			OwnerKey: rec.OwnerKey,
			TxRef:    rec.TxRef,
			Mint:     rec.Mint(),
			MintedAt: rec.MintedAt.Format(time.RFC3339),
		}
	}
	transfers := make([]transferJSON, len(hist.Transfers))
	for i, tr := range hist.Transfers {
		transfers[i] = transferJSON{
			FromOwner: tr.FromOwner,
			ToOwner:   tr.ToOwner,
			Price:     tr.Price.Float(),
			TxRef:     tr.TxRef,
			CreatedAt: tr.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens":    records,
		"transfers": transfers,
	})
}

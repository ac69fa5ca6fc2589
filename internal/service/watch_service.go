// Package service implements the marketplace lifecycle operations on top of
// the domain stores and collaborator interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// marketplacePageSize is the listing page cached in Redis.
const marketplacePageSize = 50

// RegisterWatchInput carries the fields a seller provides when registering a
// watch.
type RegisterWatchInput struct {
	Serial      string
	Brand       string
	Model       string
	Year        int
	Category    string
	Condition   string
	OwnerID     string
	AskingPrice domain.Money
}

// Provenance is the full recorded history of a watch: its on-chain token
// records and every completed change of ownership.
type Provenance struct {
	Records   []domain.TokenRecord
	Transfers []domain.OwnershipTransfer
}

// WatchService manages watch registration and marketplace listing.
type WatchService struct {
	watches   domain.WatchStore
	tokens    domain.TokenStore
	transfers domain.TransferStore
	listings  domain.ListingCache
	bus       domain.EventBus
	logger    *slog.Logger
}

// NewWatchService creates a WatchService with all required dependencies.
func NewWatchService(
	watches domain.WatchStore,
	tokens domain.TokenStore,
	transfers domain.TransferStore,
	listings domain.ListingCache,
	bus domain.EventBus,
	logger *slog.Logger,
) *WatchService {
	return &WatchService{
		watches:   watches,
		tokens:    tokens,
		transfers: transfers,
		listings:  listings,
		bus:       bus,
		logger:    logger,
	}
}

// Register creates a new watch in the Registered state. The serial number is
// the watch's identity; a duplicate fails with ErrAlreadyExists.
func (s *WatchService) Register(ctx context.Context, in RegisterWatchInput) (domain.Watch, error) {
	if strings.TrimSpace(in.Serial) == "" || strings.TrimSpace(in.Brand) == "" {
		return domain.Watch{}, fmt.Errorf("watch_service: serial and brand are required: %w", domain.ErrInvalidState)
	}
	if in.AskingPrice <= 0 {
		return domain.Watch{}, fmt.Errorf("watch_service: asking price %s: %w", in.AskingPrice, domain.ErrInvalidAmount)
	}

	now := time.Now().UTC()
	w := domain.Watch{
		ID:           uuid.New().String(),
		Serial:       in.Serial,
		Brand:        in.Brand,
		Model:        in.Model,
		Year:         in.Year,
		Category:     in.Category,
		Condition:    in.Condition,
		OwnerID:      in.OwnerID,
		AskingPrice:  in.AskingPrice,
		State:        domain.WatchStateRegistered,
		StateVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.watches.Create(ctx, w); err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: register %s: %w", in.Serial, err)
	}

	s.publish(ctx, domain.EventWatchRegistered, w.ID, "", map[string]string{"serial": w.Serial})
	s.logger.Info("watch registered", "watch_id", w.ID, "serial", w.Serial, "owner", w.OwnerID)
	return w, nil
}

// listableFrom are the states a watch may be listed for sale from. A watch
// bought through a completed settlement (Sold) may be relisted by its new
// owner.
func listableFrom(state domain.WatchState) bool {
	switch state {
	case domain.WatchStateRegistered, domain.WatchStateDelisted, domain.WatchStateSold:
		return true
	}
	return false
}

// List puts a watch up for sale at the given price. Only the current owner
// may list.
func (s *WatchService) List(ctx context.Context, watchID, ownerID string, price domain.Money) (domain.Watch, error) {
	if price <= 0 {
		return domain.Watch{}, fmt.Errorf("watch_service: list price %s: %w", price, domain.ErrInvalidAmount)
	}

	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: list %s: %w", watchID, err)
	}
	if w.OwnerID != ownerID {
		return domain.Watch{}, fmt.Errorf("watch_service: list %s: not owned by %s: %w", watchID, ownerID, domain.ErrInvalidState)
	}
	if !listableFrom(w.State) {
		return domain.Watch{}, fmt.Errorf("watch_service: list %s in state %s: %w", watchID, w.State, domain.ErrInvalidState)
	}

	expected := w.StateVersion
	w.State = domain.WatchStateListed
	w.AskingPrice = price
	w.UpdatedAt = time.Now().UTC()
	if err := s.watches.Update(ctx, w, expected); err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: list %s: %w", watchID, err)
	}
	w.StateVersion = expected + 1

	s.invalidateListings(ctx)
	s.publish(ctx, domain.EventWatchListed, w.ID, "", map[string]string{"price": price.String()})
	return w, nil
}

// Delist withdraws a listed watch from sale. A watch under escrow is no
// longer Listed and cannot be delisted until the contract resolves.
func (s *WatchService) Delist(ctx context.Context, watchID, ownerID string) (domain.Watch, error) {
	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: delist %s: %w", watchID, err)
	}
	if w.OwnerID != ownerID {
		return domain.Watch{}, fmt.Errorf("watch_service: delist %s: not owned by %s: %w", watchID, ownerID, domain.ErrInvalidState)
	}
	if w.State != domain.WatchStateListed {
		return domain.Watch{}, fmt.Errorf("watch_service: delist %s in state %s: %w", watchID, w.State, domain.ErrInvalidState)
	}

	expected := w.StateVersion
	w.State = domain.WatchStateDelisted
	w.UpdatedAt = time.Now().UTC()
	if err := s.watches.Update(ctx, w, expected); err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: delist %s: %w", watchID, err)
	}
	w.StateVersion = expected + 1

	s.invalidateListings(ctx)
	s.publish(ctx, domain.EventWatchDelisted, w.ID, "", nil)
	return w, nil
}

// Get retrieves a watch by ID.
func (s *WatchService) Get(ctx context.Context, watchID string) (domain.Watch, error) {
	w, err := s.watches.GetByID(ctx, watchID)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("watch_service: get %s: %w", watchID, err)
	}
	return w, nil
}

// Marketplace returns the watches currently for sale. The first page is
// served from the listing cache when warm; cache failures fall through to the
// store.
func (s *WatchService) Marketplace(ctx context.Context, opts domain.ListOpts) ([]domain.Watch, error) {
	if opts.Limit <= 0 {
		opts.Limit = marketplacePageSize
	}
	firstPage := opts.Offset == 0 && opts.Limit == marketplacePageSize

	if firstPage && s.listings != nil {
		cached, err := s.listings.GetListings(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("listing cache read failed", "error", err)
		}
	}

	watches, err := s.watches.ListByState(ctx, domain.WatchStateListed, opts)
	if err != nil {
		return nil, fmt.Errorf("watch_service: marketplace: %w", err)
	}

	if firstPage && s.listings != nil {
		if err := s.listings.SetListings(ctx, watches); err != nil {
			s.logger.Warn("listing cache write failed", "error", err)
		}
	}
	return watches, nil
}

// History returns the provenance of a watch: token records in sequence order
// and completed ownership transfers in time order.
func (s *WatchService) History(ctx context.Context, watchID string) (Provenance, error) {
	if _, err := s.watches.GetByID(ctx, watchID); err != nil {
		return Provenance{}, fmt.Errorf("watch_service: history %s: %w", watchID, err)
	}

	records, err := s.tokens.History(ctx, watchID)
	if err != nil {
		return Provenance{}, fmt.Errorf("watch_service: history %s: %w", watchID, err)
	}
	transfers, err := s.transfers.ListByWatch(ctx, watchID)
	if err != nil {
		return Provenance{}, fmt.Errorf("watch_service: history %s: %w", watchID, err)
	}
	return Provenance{Records: records, Transfers: transfers}, nil
}

func (s *WatchService) invalidateListings(ctx context.Context) {
	if s.listings == nil {
		return
	}
	if err := s.listings.Invalidate(ctx); err != nil {
		s.logger.Warn("listing cache invalidation failed", "error", err)
	}
}

func (s *WatchService) publish(ctx context.Context, eventType, watchID, contractID string, detail map[string]string) {
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

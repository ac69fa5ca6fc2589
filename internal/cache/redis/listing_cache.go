package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

const listingTTL = 30 * time.Second

// ListingCache implements domain.ListingCache using a single Redis key
// holding the JSON-serialized marketplace page. The short TTL bounds
// staleness between invalidations.
//
// Key schema:
//
//	listings:marketplace - JSON array of watches
type ListingCache struct {
	rdb *redis.Client
}

// NewListingCache creates a ListingCache backed by the given Client.
func NewListingCache(c *Client) *ListingCache {
	return &ListingCache{rdb: c.Underlying()}
}

const listingKey = "listings:marketplace"

// GetListings retrieves the cached marketplace page.
// It returns domain.ErrNotFound on a cache miss.
func (lc *ListingCache) GetListings(ctx context.Context) ([]domain.Watch, error) {
	data, err := lc.rdb.Get(ctx, listingKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get listings: %w", err)
	}

	var watches []domain.Watch
	if err := json.Unmarshal(data, &watches); err != nil {
		return nil, fmt.Errorf("redis: unmarshal listings: %w", err)
	}
	return watches, nil
}

// SetListings stores the marketplace page with a 30-second TTL.
func (lc *ListingCache) SetListings(ctx context.Context, watches []domain.Watch) error {
	data, err := json.Marshal(watches)
	if err != nil {
		return fmt.Errorf("redis: marshal listings: %w", err)
	}
	if err := lc.rdb.Set(ctx, listingKey, data, listingTTL).Err(); err != nil {
		return fmt.Errorf("redis: set listings: %w", err)
	}
	return nil
}

// Invalidate drops the cached page. Called after any transition that changes
// which watches are for sale.
func (lc *ListingCache) Invalidate(ctx context.Context) error {
	if err := lc.rdb.Del(ctx, listingKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate listings: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingCache = (*ListingCache)(nil)

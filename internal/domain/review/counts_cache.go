package review

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signpost/signpost/internal/platform/cache"
	"github.com/signpost/signpost/internal/platform/db"
)

const countsKind = "review-counts"

// CountsCache keeps computed Counts per tenant and surgery. Failures are
// logged and treated as misses. It also serves the symptom catalog, whose
// mutations change what the counts are computed from.
type CountsCache struct {
	store  cache.Store
	logger zerolog.Logger
}

func NewCountsCache(store cache.Store, logger zerolog.Logger) *CountsCache {
	if store == nil {
		store = cache.NopStore{}
	}
	return &CountsCache{store: store, logger: logger.With().Str("component", countsKind).Logger()}
}

func (c *CountsCache) key(ctx context.Context, surgeryID uuid.UUID) string {
	return cache.Key(db.TenantFromContext(ctx), countsKind, surgeryID.String())
}

func (c *CountsCache) get(ctx context.Context, surgeryID uuid.UUID) (Counts, bool) {
	var counts Counts
	ok, err := c.store.GetJSON(ctx, c.key(ctx, surgeryID), &counts)
	if err != nil {
		c.logger.Warn().Err(err).Str("surgery_id", surgeryID.String()).Msg("review counts cache read failed")
		return Counts{}, false
	}
	return counts, ok
}

func (c *CountsCache) put(ctx context.Context, surgeryID uuid.UUID, counts Counts) {
	if err := c.store.SetJSON(ctx, c.key(ctx, surgeryID), counts); err != nil {
		c.logger.Warn().Err(err).Str("surgery_id", surgeryID.String()).Msg("review counts cache write failed")
	}
}

// InvalidateCounts drops the cached counts of one surgery in the request's
// tenant.
func (c *CountsCache) InvalidateCounts(ctx context.Context, surgeryID uuid.UUID) {
	if err := c.store.Delete(ctx, c.key(ctx, surgeryID)); err != nil {
		c.logger.Warn().Err(err).Str("surgery_id", surgeryID.String()).Msg("review counts cache invalidation failed")
	}
}

// InvalidateAllCounts drops cached counts of every surgery in every tenant.
// The base library is shared, so a reseed affects them all.
func (c *CountsCache) InvalidateAllCounts(ctx context.Context) {
	removed, err := c.store.DeleteMatch(ctx, cache.Key("*", countsKind, "*"))
	if err != nil {
		c.logger.Warn().Err(err).Msg("review counts cache flush failed")
		return
	}
	c.logger.Debug().Int("removed", removed).Msg("review counts cache flushed")
}

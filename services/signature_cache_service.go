package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/actionos/actionos-backend/database"
	"github.com/actionos/actionos-backend/models"
	"github.com/sirupsen/logrus"
)

// SignatureCacheStore is the store surface the response cache needs.
type SignatureCacheStore interface {
	CacheEntry(ctx context.Context, signature string) (*models.SignatureCacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry *models.SignatureCacheEntry) error
	DeleteCacheEntry(ctx context.Context, signature string) error
	DeleteCacheEntriesByOwner(ctx context.Context, userID string) (int64, error)
	DeleteExpiredCacheEntries(ctx context.Context) (int64, error)
}

// SignatureCache maps request signatures to previously computed suggestion
// payloads. The signature is computed by the caller (deterministic,
// order-independent over the semantic input fields); the cache trusts it
// and never recomputes or validates it.
//
// Expiry is lazy: a stale row reads as a miss even while it still exists
// physically. The cleanup job sweeps stale rows for store hygiene only.
type SignatureCache struct {
	store      SignatureCacheStore
	defaultTTL time.Duration
	queryOpts  database.QueryOptions

	now func() time.Time

	// Non-authoritative counters, safe to share across request tasks.
	hits   atomic.Int64
	misses atomic.Int64
}

func NewSignatureCache(store SignatureCacheStore, defaultTTL time.Duration) *SignatureCache {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &SignatureCache{
		store:      store,
		defaultTTL: defaultTTL,
		queryOpts:  database.DefaultQueryOptions(),
		now:        time.Now,
	}
}

// Get returns the live entry for a signature, or nil when the signature is
// absent or its expiry has passed. Saved entries are exempt from expiry.
func (c *SignatureCache) Get(ctx context.Context, signature string) (*models.SignatureCacheEntry, error) {
	lookupOpts := c.queryOpts
	lookupOpts.AllowEmpty = true

	entry, err := database.Execute(ctx, func(ctx context.Context) (*models.SignatureCacheEntry, error) {
		return c.store.CacheEntry(ctx, signature)
	}, lookupOpts)
	if err != nil {
		return nil, err
	}

	if entry == nil || entry.IsExpired(c.now().UTC()) {
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)
	return entry, nil
}

// Stats returns cumulative hit/miss counters since process start.
func (c *SignatureCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"hits":   c.hits.Load(),
		"misses": c.misses.Load(),
	}
}

// Put inserts or overwrites the entry for its signature, stamping
// expires_at = now + ttl (the default TTL when ttl <= 0). Overwrite is
// allowed so a saved promotion can rewrite metadata without changing the
// payload.
func (c *SignatureCache) Put(ctx context.Context, entry *models.SignatureCacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	expiresAt := c.now().UTC().Add(ttl)
	entry.ExpiresAt = &expiresAt

	_, err := database.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.UpsertCacheEntry(ctx, entry)
	}, c.queryOpts)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"signature":  entry.Signature,
		"profile_id": entry.ProfileID,
		"expires_at": expiresAt,
		"is_saved":   entry.IsSaved,
	}).Debug("Cache entry written")

	return nil
}

// Invalidate deletes the entry for a signature. An absent entry is not an
// error.
func (c *SignatureCache) Invalidate(ctx context.Context, signature string) error {
	_, err := database.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.DeleteCacheEntry(ctx, signature)
	}, c.queryOpts)
	return err
}

// InvalidateByOwner deletes every entry owned by userID. Used when the
// inputs that influence signature computation change (e.g. the user's
// baseline), leaving the cached baseline snapshots stale.
func (c *SignatureCache) InvalidateByOwner(ctx context.Context, userID string) (int64, error) {
	removed, err := database.Execute(ctx, func(ctx context.Context) (int64, error) {
		return c.store.DeleteCacheEntriesByOwner(ctx, userID)
	}, c.queryOpts)
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"removed": removed,
	}).Info("Invalidated cache entries for owner")

	return removed, nil
}

// SweepExpired removes expired, non-saved rows from the store. Lazy expiry
// on Get remains authoritative.
func (c *SignatureCache) SweepExpired(ctx context.Context) (int64, error) {
	return database.Execute(ctx, func(ctx context.Context) (int64, error) {
		return c.store.DeleteExpiredCacheEntries(ctx)
	}, c.queryOpts)
}

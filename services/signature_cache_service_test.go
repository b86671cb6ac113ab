package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/actionos/actionos-backend/models"
)

func newTestCache(store SignatureCacheStore) *SignatureCache {
	cache := NewSignatureCache(store, 24*time.Hour)
	cache.now = fixedClock
	return cache
}

func strPtr(s string) *string {
	return &s
}

func testEntry(signature, owner string) *models.SignatureCacheEntry {
	return &models.SignatureCacheEntry{
		Signature: signature,
		ProfileID: "a1b2c3d4e5f60718",
		UserID:    strPtr(owner),
		Response:  json.RawMessage(`{"suggestion":"take a walk"}`),
	}
}

func TestCacheMissOnAbsentSignature(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)

	entry, err := cache.Get(context.Background(), "no-such-signature")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("Get returned %+v for an absent signature, want nil", entry)
	}

	stats := cache.Stats()
	if stats["misses"] != int64(1) || stats["hits"] != int64(0) {
		t.Errorf("stats = %v, want 1 miss and 0 hits", stats)
	}
}

func TestCachePutThenGet(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	if err := cache.Put(ctx, testEntry("sig-a", "user-1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := cache.Get(ctx, "sig-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Get returned nil for a live entry")
	}
	if entry.ExpiresAt == nil {
		t.Fatal("Put did not stamp an expiry")
	}
	if want := fixedClock().Add(24 * time.Hour); !entry.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want default TTL %v", entry.ExpiresAt, want)
	}

	stats := cache.Stats()
	if stats["hits"] != int64(1) {
		t.Errorf("stats = %v, want 1 hit", stats)
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	if err := cache.Put(ctx, testEntry("sig-a", "user-1"), time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	cache.now = func() time.Time {
		return fixedClock().Add(2 * time.Hour)
	}

	entry, err := cache.Get(ctx, "sig-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Error("expired entry returned as a hit")
	}

	// Expiry is lazy: the row still exists physically until the sweep.
	if store.cacheLen() != 1 {
		t.Errorf("store holds %d rows after lazy-expired read, want 1", store.cacheLen())
	}
}

func TestSavedEntriesExemptFromExpiry(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	saved := testEntry("sig-saved", "user-1")
	saved.IsSaved = true
	saved.Title = strPtr("morning routine")
	if err := cache.Put(ctx, saved, time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	cache.now = func() time.Time {
		return fixedClock().Add(30 * 24 * time.Hour)
	}

	entry, err := cache.Get(ctx, "sig-saved")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("saved entry expired")
	}
	if entry.Title == nil || *entry.Title != "morning routine" {
		t.Errorf("saved entry lost its title: %+v", entry)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	if err := cache.Put(ctx, testEntry("sig-a", "user-1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := cache.Invalidate(ctx, "sig-a"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "sig-a"); err != nil {
		t.Errorf("second Invalidate of the same signature failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "never-existed"); err != nil {
		t.Errorf("Invalidate of an absent signature failed: %v", err)
	}

	if entry, _ := cache.Get(ctx, "sig-a"); entry != nil {
		t.Error("entry survived invalidation")
	}
}

func TestInvalidateByOwnerRemovesOnlyThatOwner(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	for _, entry := range []*models.SignatureCacheEntry{
		testEntry("sig-a", "user-1"),
		testEntry("sig-b", "user-1"),
		testEntry("sig-c", "user-2"),
	} {
		if err := cache.Put(ctx, entry, 0); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	removed, err := cache.InvalidateByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("InvalidateByOwner failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if entry, _ := cache.Get(ctx, "sig-c"); entry == nil {
		t.Error("another owner's entry was removed")
	}
}

func TestSweepExpiredSparesSavedAndLiveRows(t *testing.T) {
	store := newMemoryStore()
	cache := newTestCache(store)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	stale := testEntry("sig-stale", "user-1")
	stale.ExpiresAt = &past

	savedStale := testEntry("sig-saved", "user-1")
	savedStale.IsSaved = true
	savedStale.ExpiresAt = &past

	live := testEntry("sig-live", "user-1")
	live.ExpiresAt = &future

	for _, entry := range []*models.SignatureCacheEntry{stale, savedStale, live} {
		if err := store.UpsertCacheEntry(ctx, entry); err != nil {
			t.Fatalf("UpsertCacheEntry failed: %v", err)
		}
	}

	removed, err := cache.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if store.cacheLen() != 2 {
		t.Errorf("store holds %d rows after sweep, want 2", store.cacheLen())
	}
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/actionos/actionos-backend/models"
	"github.com/actionos/actionos-backend/shared"
)

// memoryStore is an in-memory stand-in for the Postgres store. It enforces
// the same constraints the schema does (unique profile_id, unique user_id,
// non-negative token counters) and returns the same tagged errors, so the
// services under test exercise their real conflict-handling paths.
type memoryStore struct {
	mu sync.Mutex

	profilesByUser map[string]*models.Profile
	profileIDs     map[string]bool
	cache          map[string]*models.SignatureCacheEntry
	usage          map[string]int

	// Optional fault injection hooks, called before the backing maps are
	// touched.
	insertProfileErr func() error
	incrementErr     func() error
	usageReadErr     func() error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profilesByUser: make(map[string]*models.Profile),
		profileIDs:     make(map[string]bool),
		cache:          make(map[string]*models.SignatureCacheEntry),
		usage:          make(map[string]int),
	}
}

func (m *memoryStore) ProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profilesByUser[userID]
	if !ok {
		return nil, nil
	}
	clone := *profile
	return &clone, nil
}

func (m *memoryStore) InsertProfile(ctx context.Context, profileID, userID string) (*models.Profile, error) {
	if m.insertProfileErr != nil {
		if err := m.insertProfileErr(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profileIDs[profileID] {
		return nil, shared.NewStoreError(shared.StoreErrUniqueViolation, "duplicate profile identifier", nil)
	}
	if _, exists := m.profilesByUser[userID]; exists {
		return nil, shared.NewStoreError(shared.StoreErrUniqueViolation, "duplicate user identifier", nil)
	}

	owner := userID
	profile := &models.Profile{
		ProfileID: profileID,
		UserID:    &owner,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.profileIDs[profileID] = true
	m.profilesByUser[userID] = profile

	clone := *profile
	return &clone, nil
}

func (m *memoryStore) CacheEntry(ctx context.Context, signature string) (*models.SignatureCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[signature]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (m *memoryStore) UpsertCacheEntry(ctx context.Context, entry *models.SignatureCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *entry
	m.cache[entry.Signature] = &clone
	return nil
}

func (m *memoryStore) DeleteCacheEntry(ctx context.Context, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, signature)
	return nil
}

func (m *memoryStore) DeleteCacheEntriesByOwner(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for signature, entry := range m.cache {
		if entry.UserID != nil && *entry.UserID == userID {
			delete(m.cache, signature)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryStore) DeleteExpiredCacheEntries(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var removed int64
	for signature, entry := range m.cache {
		if !entry.IsSaved && entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
			delete(m.cache, signature)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryStore) TokenUsageFor(ctx context.Context, userID, date string) (int, error) {
	if m.usageReadErr != nil {
		if err := m.usageReadErr(); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tokens, ok := m.usage[userID+"|"+date]
	if !ok {
		return 0, shared.NewStoreError(shared.StoreErrNotFound, "no usage row", nil)
	}
	return tokens, nil
}

func (m *memoryStore) IncrementTokenUsage(ctx context.Context, userID, date string, tokens int) error {
	if m.incrementErr != nil {
		if err := m.incrementErr(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "|" + date
	next := m.usage[key] + tokens
	if next < 0 {
		return shared.NewStoreError(shared.StoreErrCheckViolation, "token counter below zero", nil)
	}
	m.usage[key] = next
	return nil
}

func (m *memoryStore) UpsertTokenUsage(ctx context.Context, userID, date string, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tokens < 0 {
		return shared.NewStoreError(shared.StoreErrCheckViolation, "token counter below zero", nil)
	}
	m.usage[userID+"|"+date] = tokens
	return nil
}

// tokensFor reads the backing counter directly, bypassing the service layer.
func (m *memoryStore) tokensFor(userID, date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.usage[userID+"|"+date]
}

// cacheLen reports the number of physically stored cache rows.
func (m *memoryStore) cacheLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.cache)
}

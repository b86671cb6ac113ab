package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/actionos/actionos-backend/database"
	"github.com/actionos/actionos-backend/models"
	"github.com/actionos/actionos-backend/shared"
	"github.com/sirupsen/logrus"
)

// ProfileStore is the store surface the allocator needs.
type ProfileStore interface {
	ProfileByUser(ctx context.Context, userID string) (*models.Profile, error)
	InsertProfile(ctx context.Context, profileID, userID string) (*models.Profile, error)
}

// profileIDPattern is the canonical identifier shape: 16 lowercase hex
// characters, enforced by the store's CHECK constraint as well.
var profileIDPattern = regexp.MustCompile(`^[a-f0-9]{16}$`)

// allocationAttempts bounds the insert loop. The identifier carries 64 bits
// of entropy, so blind collisions between different users are astronomically
// unlikely; the retry path exists to resolve the same-user double-submit
// race.
const allocationAttempts = 3

// ProfileService allocates one profile per user. Allocation is idempotent:
// concurrent first-time requests for the same user converge on a single
// stored profile, arbitrated by the store's uniqueness constraints rather
// than in-process locking.
type ProfileService struct {
	store     ProfileStore
	queryOpts database.QueryOptions
}

func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{
		store:     store,
		queryOpts: database.DefaultQueryOptions(),
	}
}

// GenerateProfileID returns a fresh 16-character lowercase hex identifier.
// A generated value that fails the canonical pattern indicates a broken
// generator and is fatal, not retryable.
func GenerateProfileID() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", shared.NewStoreError(shared.StoreErrGeneratorInvalid, "identifier generator failed", err)
	}

	id := hex.EncodeToString(raw)
	if !profileIDPattern.MatchString(id) {
		return "", shared.NewStoreError(shared.StoreErrGeneratorInvalid, "generated identifier does not match canonical pattern", nil)
	}

	return id, nil
}

// Allocate returns the user's profile identifier, creating the profile on
// first call. Created is false when the profile already existed, including
// when a concurrent request won the creation race.
func (s *ProfileService) Allocate(ctx context.Context, userID string) (*models.AllocationResult, error) {
	existing, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &models.AllocationResult{ProfileID: existing.ProfileID, Created: false}, nil
	}

	candidate, err := GenerateProfileID()
	if err != nil {
		return nil, err
	}

	// Each insert is a single gateway attempt; the allocator owns the
	// retry budget so conflict resolution stays observable here.
	insertOpts := s.queryOpts
	insertOpts.MaxRetries = 1

	var lastErr error

	for attempt := 0; attempt < allocationAttempts; attempt++ {
		profile, err := database.Execute(ctx, func(ctx context.Context) (*models.Profile, error) {
			return s.store.InsertProfile(ctx, candidate, userID)
		}, insertOpts)

		if err == nil {
			logrus.WithFields(logrus.Fields{
				"profile_id": profile.ProfileID,
				"attempt":    attempt + 1,
			}).Info("Profile created")
			return &models.AllocationResult{ProfileID: profile.ProfileID, Created: true}, nil
		}

		lastErr = err

		if shared.IsStoreErrorCode(err, shared.StoreErrUniqueViolation) {
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
			}).Warn("Profile insert conflict, re-checking for concurrent creation")

			// The conflicting writer may have been allocating for this
			// same user; if so, converge on its identifier.
			recheck, lookupErr := s.lookup(ctx, userID)
			if lookupErr == nil && recheck != nil {
				return &models.AllocationResult{ProfileID: recheck.ProfileID, Created: false}, nil
			}

			// Conflict was on the identifier itself; try a fresh one.
			candidate, err = GenerateProfileID()
			if err != nil {
				return nil, err
			}
			continue
		}

		if shared.IsStoreErrorCode(err, shared.StoreErrTimeout) {
			break
		}
	}

	logrus.WithFields(logrus.Fields{
		"attempts": allocationAttempts,
		"error":    lastErr,
	}).Error("Profile allocation failed after retries")

	return nil, shared.NewStoreError(shared.StoreErrProvisioningFailed, "could not allocate profile", lastErr)
}

func (s *ProfileService) lookup(ctx context.Context, userID string) (*models.Profile, error) {
	lookupOpts := s.queryOpts
	lookupOpts.AllowEmpty = true

	return database.Execute(ctx, func(ctx context.Context) (*models.Profile, error) {
		return s.store.ProfileByUser(ctx, userID)
	}, lookupOpts)
}

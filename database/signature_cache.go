package database

import (
	"context"
	"database/sql"

	"github.com/actionos/actionos-backend/models"
	"github.com/lib/pq"
)

// CacheEntry returns the row for a signature, or nil when no row exists.
// Expiry is not evaluated here; the service layer applies lazy expiry so a
// physically present but stale row still reads as a miss.
func (s *Store) CacheEntry(ctx context.Context, signature string) (*models.SignatureCacheEntry, error) {
	query := `
		SELECT signature, profile_id, user_id, response, normalized_input,
		       baseline_but, baseline_ipp, tags, title, is_saved, created_at, expires_at
		FROM signature_cache
		WHERE signature = $1
	`

	var entry models.SignatureCacheEntry
	err := s.db.QueryRowContext(ctx, query, signature).Scan(
		&entry.Signature, &entry.ProfileID, &entry.UserID, &entry.Response,
		&entry.NormalizedInput, &entry.BaselineBut, &entry.BaselineIpp,
		pq.Array(&entry.Tags), &entry.Title, &entry.IsSaved,
		&entry.CreatedAt, &entry.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, translateError(err, "signature_cache.get")
	}

	return &entry, nil
}

// UpsertCacheEntry inserts or overwrites the entry for its signature.
// Overwrite is deliberate: a saved promotion rewrites metadata for an
// existing signature without changing the payload.
func (s *Store) UpsertCacheEntry(ctx context.Context, entry *models.SignatureCacheEntry) error {
	query := `
		INSERT INTO signature_cache (
			signature, profile_id, user_id, response, normalized_input,
			baseline_but, baseline_ipp, tags, title, is_saved, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (signature) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			user_id = EXCLUDED.user_id,
			response = EXCLUDED.response,
			normalized_input = EXCLUDED.normalized_input,
			baseline_but = EXCLUDED.baseline_but,
			baseline_ipp = EXCLUDED.baseline_ipp,
			tags = EXCLUDED.tags,
			title = EXCLUDED.title,
			is_saved = EXCLUDED.is_saved,
			expires_at = EXCLUDED.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.Signature, entry.ProfileID, entry.UserID, entry.Response,
		entry.NormalizedInput, entry.BaselineBut, entry.BaselineIpp,
		pq.Array(entry.Tags), entry.Title, entry.IsSaved, entry.ExpiresAt,
	)

	return translateError(err, "signature_cache.upsert")
}

// DeleteCacheEntry removes the entry for a signature. Deleting an absent
// entry is not an error.
func (s *Store) DeleteCacheEntry(ctx context.Context, signature string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM signature_cache WHERE signature = $1`, signature)
	return translateError(err, "signature_cache.delete")
}

// DeleteCacheEntriesByOwner removes every cache row owned by userID and
// returns the number of rows removed.
func (s *Store) DeleteCacheEntriesByOwner(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM signature_cache WHERE user_id = $1`, userID)
	if err != nil {
		return 0, translateError(err, "signature_cache.delete_by_owner")
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

// DeleteExpiredCacheEntries removes expired, non-saved rows. Lazy expiry on
// read stays authoritative; this is store hygiene for the cleanup job.
func (s *Store) DeleteExpiredCacheEntries(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM signature_cache
		WHERE expires_at IS NOT NULL AND expires_at < NOW() AND NOT is_saved
	`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, translateError(err, "signature_cache.delete_expired")
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

package database

import (
	"context"
	"database/sql"

	"github.com/actionos/actionos-backend/models"
	"github.com/lib/pq"
)

// ProfileByUser returns the profile owned by userID, or nil when the user
// has no profile yet. Absence is a valid outcome here, not an error.
func (s *Store) ProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT profile_id, user_id, baseline_but, baseline_ipp, strengths, tags,
		       consent_to_store, metadata, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	profile, err := scanProfile(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, translateError(err, "profiles.get_by_user")
	}

	return profile, nil
}

// InsertProfile creates a new profile row owned by userID and returns the
// stored representation. A unique constraint conflict (on profile_id or
// user_id) surfaces as a tagged unique_violation.
func (s *Store) InsertProfile(ctx context.Context, profileID, userID string) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (profile_id, user_id, baseline_but, baseline_ipp, strengths, tags)
		VALUES ($1, $2, 0, 0, '{}', '{}')
		RETURNING profile_id, user_id, baseline_but, baseline_ipp, strengths, tags,
		          consent_to_store, metadata, created_at, updated_at
	`

	profile, err := scanProfile(s.db.QueryRowContext(ctx, query, profileID, userID))
	if err != nil {
		return nil, translateError(err, "profiles.insert")
	}

	return profile, nil
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var profile models.Profile
	err := row.Scan(
		&profile.ProfileID, &profile.UserID, &profile.BaselineBut, &profile.BaselineIpp,
		pq.Array(&profile.Strengths), pq.Array(&profile.Tags),
		&profile.ConsentToStore, &profile.Metadata, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

package database

import "context"

// TokenUsageFor returns the accumulated token counter for (userID, date).
// A missing row surfaces as a tagged not_found; the quota meter maps that
// to zero usage.
func (s *Store) TokenUsageFor(ctx context.Context, userID, date string) (int, error) {
	query := `SELECT tokens_used FROM token_usage WHERE user_id = $1 AND date = $2`

	var tokensUsed int
	err := s.db.QueryRowContext(ctx, query, userID, date).Scan(&tokensUsed)
	if err != nil {
		return 0, translateError(err, "token_usage.get")
	}

	return tokensUsed, nil
}

// IncrementTokenUsage atomically adds tokens to the (userID, date) counter,
// creating the row on first use of the day. The single-statement upsert is
// the store-side arbiter for concurrent requests of the same user; the
// tokens_used >= 0 check rejects a refund larger than the accumulated
// counter as a tagged check_violation.
func (s *Store) IncrementTokenUsage(ctx context.Context, userID, date string, tokens int) error {
	query := `
		INSERT INTO token_usage (user_id, date, tokens_used)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO UPDATE SET
			tokens_used = token_usage.tokens_used + EXCLUDED.tokens_used,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, userID, date, tokens)
	return translateError(err, "token_usage.increment")
}

// UpsertTokenUsage writes an absolute counter value for (userID, date).
// This is the degraded fallback path used when the atomic increment fails:
// read current, compute the new total, upsert. Two concurrent fallbacks for
// the same user can race; the window is accepted and documented.
func (s *Store) UpsertTokenUsage(ctx context.Context, userID, date string, tokens int) error {
	query := `
		INSERT INTO token_usage (user_id, date, tokens_used)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO UPDATE SET
			tokens_used = EXCLUDED.tokens_used,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, userID, date, tokens)
	return translateError(err, "token_usage.upsert")
}

package models

import "time"

// TokenUsage is the accumulated token counter for one user on one UTC
// calendar day. Exactly one row exists per (user_id, date) pair, created
// lazily on the first consumption event of the day. The store enforces
// tokens_used >= 0.
type TokenUsage struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"` // YYYY-MM-DD, UTC
	TokensUsed int       `json:"tokens_used"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TokenUsageStats is a derived, read-only snapshot of a user's standing
// against the daily ceiling.
type TokenUsageStats struct {
	Used       int `json:"used"`
	Remaining  int `json:"remaining"`
	Limit      int `json:"limit"`
	Percentage int `json:"percentage"`
}

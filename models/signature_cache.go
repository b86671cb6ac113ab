package models

import (
	"encoding/json"
	"time"
)

// SignatureCacheEntry is one cached suggestion response, keyed by the
// request signature (a deterministic fingerprint of the normalized request
// input, computed by the caller). The baseline columns are a denormalized
// snapshot of the profile values that produced the response, so a stale
// entry can be recognized after the profile changes.
type SignatureCacheEntry struct {
	Signature       string          `json:"signature"`
	ProfileID       string          `json:"profile_id"`
	UserID          *string         `json:"user_id"`
	Response        json.RawMessage `json:"response"`
	NormalizedInput json.RawMessage `json:"normalized_input"`
	BaselineBut     int             `json:"baseline_but"`
	BaselineIpp     int             `json:"baseline_ipp"`
	Tags            []string        `json:"tags,omitempty"`
	Title           *string         `json:"title,omitempty"`
	IsSaved         bool            `json:"is_saved"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       *time.Time      `json:"expires_at"`
}

// IsExpired reports whether the entry's expiry timestamp has passed. Saved
// entries never expire; an entry without an expiry timestamp stays live.
func (e *SignatureCacheEntry) IsExpired(now time.Time) bool {
	if e.IsSaved || e.ExpiresAt == nil {
		return false
	}
	return now.After(*e.ExpiresAt)
}

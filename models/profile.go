package models

import (
	"encoding/json"
	"time"
)

// Profile is a user's stored profile row. The profile_id is a 16-character
// lowercase hex identifier, created once and never re-keyed; user_id is
// nullable until the profile is claimed and unique per user.
type Profile struct {
	ProfileID      string          `json:"profile_id"`
	UserID         *string         `json:"user_id"`
	BaselineBut    int             `json:"baseline_but"`
	BaselineIpp    int             `json:"baseline_ipp"`
	Strengths      []string        `json:"strengths"`
	Tags           []string        `json:"tags"`
	ConsentToStore bool            `json:"consent_to_store"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AllocationResult is the outcome of a profile allocation request.
// Created is false when the caller's profile already existed, including the
// case where a concurrent request created it first.
type AllocationResult struct {
	ProfileID string `json:"profile_id"`
	Created   bool   `json:"created"`
}

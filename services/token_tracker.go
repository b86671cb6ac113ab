package services

import (
	"context"
	"math"
	"time"

	"github.com/actionos/actionos-backend/database"
	"github.com/actionos/actionos-backend/models"
	"github.com/actionos/actionos-backend/shared"
	"github.com/sirupsen/logrus"
)

// UsageStore is the store surface the quota meter needs.
type UsageStore interface {
	TokenUsageFor(ctx context.Context, userID, date string) (int, error)
	IncrementTokenUsage(ctx context.Context, userID, date string, tokens int) error
	UpsertTokenUsage(ctx context.Context, userID, date string, tokens int) error
}

// TokenTracker meters LLM token consumption per user per UTC calendar day
// against a hard daily ceiling. Concurrent requests for the same user are
// arbitrated by the store's atomic increment-or-create upsert, not by
// in-process locking.
//
// An empty user identifier is unmetered (development and unauthenticated
// traffic). Metering is best-effort by design: recording failures are
// logged and swallowed so they never interrupt the user-facing response,
// and the admission policy decides what a failed usage read answers.
type TokenTracker struct {
	store  UsageStore
	limit  int
	policy shared.AdmissionPolicy

	queryOpts database.QueryOptions
	now       func() time.Time
}

func NewTokenTracker(store UsageStore, quota shared.QuotaConfig) *TokenTracker {
	limit := quota.DailyTokenLimit
	if limit <= 0 {
		limit = 50000
	}
	policy := quota.Policy
	if policy != shared.AdmissionStrict {
		policy = shared.AdmissionFailOpen
	}

	return &TokenTracker{
		store:     store,
		limit:     limit,
		policy:    policy,
		queryOpts: database.DefaultQueryOptions(),
		now:       time.Now,
	}
}

// Limit returns the daily token ceiling.
func (t *TokenTracker) Limit() int {
	return t.limit
}

// EstimateTokens approximates the cost of a request for pre-flight
// admission: roughly 4 characters per input token, plus the declared output
// budget. Final accounting uses the actual count reported by the provider.
func (t *TokenTracker) EstimateTokens(systemPrompt, userPrompt string, maxOutputTokens int) int {
	inputChars := len(systemPrompt) + len(userPrompt)
	estimatedInputTokens := (inputChars + 3) / 4
	return estimatedInputTokens + maxOutputTokens
}

// CanUseTokens reports whether charging tokensToAdd would stay within
// today's ceiling. Empty user identifiers are always allowed. A failed
// usage read answers per the admission policy: failOpen allows, strict
// blocks.
func (t *TokenTracker) CanUseTokens(ctx context.Context, userID string, tokensToAdd int) bool {
	if userID == "" {
		return true
	}

	currentUsage, err := t.todayUsage(ctx, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"policy":  t.policy,
			"error":   err.Error(),
		}).Error("Error checking token limit")
		return t.policy == shared.AdmissionFailOpen
	}

	return currentUsage+tokensToAdd <= t.limit
}

// RecordUsage adds tokensUsed to today's counter for the user. Negative
// values refund. The primary path is the store's atomic
// increment-or-create; when it fails for any reason other than the
// counter's >= 0 clamp, the degraded read-then-upsert fallback runs,
// accepting a race window between concurrent requests for the same user.
// Errors are logged, never surfaced.
func (t *TokenTracker) RecordUsage(ctx context.Context, userID string, tokensUsed int) {
	if userID == "" {
		logrus.WithField("tokens_used", tokensUsed).Debug("Token usage recorded (no user ID)")
		return
	}

	today := t.currentDate()

	_, err := database.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.store.IncrementTokenUsage(ctx, userID, today, tokensUsed)
	}, t.queryOpts)
	if err == nil {
		return
	}

	if shared.IsStoreErrorCode(err, shared.StoreErrCheckViolation) {
		// Refund larger than the accumulated counter; the store's clamp
		// rejected it and the fallback cannot do better.
		logrus.WithFields(logrus.Fields{
			"user_id":     userID,
			"tokens_used": tokensUsed,
		}).Warn("Token usage change rejected by counter clamp")
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"error":   err.Error(),
	}).Warn("Atomic token increment failed, falling back to read-then-upsert")

	currentTokens, readErr := t.todayUsage(ctx, userID)
	if readErr != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   readErr.Error(),
		}).Error("Error recording token usage")
		return
	}

	newTokens := currentTokens + tokensUsed
	if newTokens < 0 {
		logrus.WithFields(logrus.Fields{
			"user_id":     userID,
			"tokens_used": tokensUsed,
			"current":     currentTokens,
		}).Warn("Token usage change would drive counter negative, skipping")
		return
	}

	_, err = database.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.store.UpsertTokenUsage(ctx, userID, today, newTokens)
	}, t.queryOpts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Error recording token usage")
	}
}

// RefundTokens returns tokens to the user, e.g. after a failed downstream
// request. A refund that would drive the counter negative is rejected by
// the store and swallowed: a user cannot be refunded what was never used.
func (t *TokenTracker) RefundTokens(ctx context.Context, userID string, tokensToRefund int) {
	if userID == "" || tokensToRefund <= 0 {
		return
	}

	t.RecordUsage(ctx, userID, -tokensToRefund)

	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"tokens_refunded": tokensToRefund,
	}).Info("Tokens refunded")
}

// GetUsage returns a derived snapshot of the user's standing against the
// daily ceiling. Read failures yield a zero-usage snapshot.
func (t *TokenTracker) GetUsage(ctx context.Context, userID string) *models.TokenUsageStats {
	stats := &models.TokenUsageStats{
		Remaining: t.limit,
		Limit:     t.limit,
	}

	if userID == "" {
		return stats
	}

	used, err := t.todayUsage(ctx, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Error getting token usage")
		return stats
	}

	stats.Used = used
	stats.Remaining = t.limit - used
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	stats.Percentage = int(math.Round(float64(used) / float64(t.limit) * 100))

	return stats
}

// IsLimitReached reports whether the user has consumed the full daily
// ceiling.
func (t *TokenTracker) IsLimitReached(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	used, err := t.todayUsage(ctx, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Error checking if limit reached")
		return false
	}

	return used >= t.limit
}

// todayUsage reads today's accumulated counter; a missing row means no
// usage yet today.
func (t *TokenTracker) todayUsage(ctx context.Context, userID string) (int, error) {
	tokens, err := database.Execute(ctx, func(ctx context.Context) (int, error) {
		return t.store.TokenUsageFor(ctx, userID, t.currentDate())
	}, t.queryOpts)
	if err != nil {
		if shared.IsStoreErrorCode(err, shared.StoreErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return tokens, nil
}

// currentDate is the UTC calendar day key (YYYY-MM-DD). No timezone
// localization or mid-day rollover adjustment is performed.
func (t *TokenTracker) currentDate() string {
	return t.now().UTC().Format("2006-01-02")
}

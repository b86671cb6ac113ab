package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/actionos/actionos-backend/shared"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
}

const fixedDate = "2026-03-15"

func newTestTracker(store UsageStore, policy shared.AdmissionPolicy) *TokenTracker {
	tracker := NewTokenTracker(store, shared.QuotaConfig{
		DailyTokenLimit: 50000,
		Policy:          policy,
	})
	tracker.now = fixedClock
	// Single gateway attempt keeps fault-injection tests free of real
	// backoff sleeps.
	tracker.queryOpts.MaxRetries = 1
	return tracker
}

func TestEstimateTokens(t *testing.T) {
	store := newMemoryStore()
	tracker := newTestTracker(store, shared.AdmissionFailOpen)

	cases := []struct {
		name            string
		systemPrompt    string
		userPrompt      string
		maxOutputTokens int
		want            int
	}{
		{"empty", "", "", 0, 0},
		{"output budget only", "", "", 1024, 1024},
		{"exact multiple of four", "abcd", "efgh", 100, 102},
		{"rounds up", "abc", "", 0, 1},
		{"one char", "", "x", 10, 11},
	}

	for _, tc := range cases {
		got := tracker.EstimateTokens(tc.systemPrompt, tc.userPrompt, tc.maxOutputTokens)
		if got != tc.want {
			t.Errorf("%s: EstimateTokens = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestCanUseTokensBoundary(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 49000
	tracker := newTestTracker(store, shared.AdmissionFailOpen)
	ctx := context.Background()

	if !tracker.CanUseTokens(ctx, "user-1", 1000) {
		t.Error("request landing exactly on the ceiling was denied")
	}
	if tracker.CanUseTokens(ctx, "user-1", 1001) {
		t.Error("request exceeding the ceiling was admitted")
	}
	if !tracker.CanUseTokens(ctx, "fresh-user", 50000) {
		t.Error("fresh user denied the full daily budget")
	}
}

func TestUnmeteredUser(t *testing.T) {
	store := newMemoryStore()
	tracker := newTestTracker(store, shared.AdmissionStrict)
	ctx := context.Background()

	if !tracker.CanUseTokens(ctx, "", 1_000_000) {
		t.Error("unauthenticated request was metered")
	}

	tracker.RecordUsage(ctx, "", 500)
	if len(store.usage) != 0 {
		t.Error("usage was persisted for an empty user identifier")
	}

	stats := tracker.GetUsage(ctx, "")
	if stats.Used != 0 || stats.Remaining != 50000 {
		t.Errorf("unmetered snapshot = %+v, want zero usage", stats)
	}
	if tracker.IsLimitReached(ctx, "") {
		t.Error("unmetered user reported as over limit")
	}
}

func TestRecordAndRefund(t *testing.T) {
	store := newMemoryStore()
	tracker := newTestTracker(store, shared.AdmissionFailOpen)
	ctx := context.Background()

	tracker.RecordUsage(ctx, "user-1", 12000)
	if got := store.tokensFor("user-1", fixedDate); got != 12000 {
		t.Fatalf("counter = %d after recording, want 12000", got)
	}

	stats := tracker.GetUsage(ctx, "user-1")
	if stats.Used != 12000 || stats.Remaining != 38000 || stats.Limit != 50000 || stats.Percentage != 24 {
		t.Errorf("usage snapshot = %+v, want used=12000 remaining=38000 limit=50000 percentage=24", stats)
	}

	tracker.RefundTokens(ctx, "user-1", 2000)
	if got := store.tokensFor("user-1", fixedDate); got != 10000 {
		t.Errorf("counter = %d after refund, want 10000", got)
	}
}

func TestOverRefundIsRejectedByClamp(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 100
	tracker := newTestTracker(store, shared.AdmissionFailOpen)

	tracker.RefundTokens(context.Background(), "user-1", 5000)

	if got := store.tokensFor("user-1", fixedDate); got != 100 {
		t.Errorf("counter = %d after over-refund, want unchanged 100", got)
	}
}

func TestAdmissionPolicyOnReadFailure(t *testing.T) {
	readErr := errors.New("store unavailable")

	failOpenStore := newMemoryStore()
	failOpenStore.usageReadErr = func() error { return readErr }
	failOpen := newTestTracker(failOpenStore, shared.AdmissionFailOpen)

	strictStore := newMemoryStore()
	strictStore.usageReadErr = func() error { return readErr }
	strict := newTestTracker(strictStore, shared.AdmissionStrict)

	ctx := context.Background()

	if !failOpen.CanUseTokens(ctx, "user-1", 100) {
		t.Error("failOpen policy denied a request on read failure")
	}
	if strict.CanUseTokens(ctx, "user-1", 100) {
		t.Error("strict policy admitted a request on read failure")
	}
}

func TestRecordUsageFallsBackToReadThenUpsert(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 100
	store.incrementErr = func() error { return errors.New("atomic upsert unsupported") }
	tracker := newTestTracker(store, shared.AdmissionFailOpen)

	tracker.RecordUsage(context.Background(), "user-1", 50)

	if got := store.tokensFor("user-1", fixedDate); got != 150 {
		t.Errorf("counter = %d after fallback, want 150", got)
	}
}

func TestFallbackSkipsNegativeResult(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 100
	store.incrementErr = func() error { return errors.New("atomic upsert unsupported") }
	tracker := newTestTracker(store, shared.AdmissionFailOpen)

	tracker.RecordUsage(context.Background(), "user-1", -200)

	if got := store.tokensFor("user-1", fixedDate); got != 100 {
		t.Errorf("counter = %d after skipped negative fallback, want unchanged 100", got)
	}
}

func TestIsLimitReached(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 50000
	store.usage["user-2|"+fixedDate] = 49999
	tracker := newTestTracker(store, shared.AdmissionFailOpen)
	ctx := context.Background()

	if !tracker.IsLimitReached(ctx, "user-1") {
		t.Error("user at the ceiling not reported as over limit")
	}
	if tracker.IsLimitReached(ctx, "user-2") {
		t.Error("user below the ceiling reported as over limit")
	}
	if tracker.IsLimitReached(ctx, "user-3") {
		t.Error("user with no usage reported as over limit")
	}
}

func TestUsageResetsAcrossDays(t *testing.T) {
	store := newMemoryStore()
	store.usage["user-1|"+fixedDate] = 50000
	tracker := newTestTracker(store, shared.AdmissionFailOpen)
	ctx := context.Background()

	if !tracker.IsLimitReached(ctx, "user-1") {
		t.Fatal("user not at ceiling on the first day")
	}

	tracker.now = func() time.Time {
		return fixedClock().Add(24 * time.Hour)
	}

	if tracker.IsLimitReached(ctx, "user-1") {
		t.Error("yesterday's usage counted against today's ceiling")
	}
	if stats := tracker.GetUsage(ctx, "user-1"); stats.Used != 0 {
		t.Errorf("usage on the next day = %d, want 0", stats.Used)
	}
}

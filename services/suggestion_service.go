package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/actionos/actionos-backend/models"
	"github.com/actionos/actionos-backend/shared"
	"github.com/sirupsen/logrus"
)

// ComputationProvider produces the expensive payload that gets cached. It
// reports the actual token count consumed when the upstream API exposes
// one; a non-positive count means unknown and the pre-flight estimate is
// charged instead.
type ComputationProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (payload json.RawMessage, tokensUsed int, err error)
}

// SuggestionRequest carries one suggestion computation. The signature is a
// deterministic fingerprint of the normalized input, computed upstream; the
// baseline values are snapshotted into the cache entry alongside the
// payload.
type SuggestionRequest struct {
	UserID          string
	ProfileID       string
	Signature       string
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
	NormalizedInput json.RawMessage
	BaselineBut     int
	BaselineIpp     int
	TTL             time.Duration
}

// SuggestionResult is the computed or cached payload plus accounting
// detail.
type SuggestionResult struct {
	Response      json.RawMessage `json:"response"`
	Cached        bool            `json:"cached"`
	TokensCharged int             `json:"tokens_charged"`
}

// SuggestionService orchestrates the suggestion pipeline: quota admission,
// cache lookup, computation, cache write, consumption recording. Cache and
// quota failures degrade soft; only admission denial and provider failure
// surface to the caller.
type SuggestionService struct {
	provider ComputationProvider
	cache    *SignatureCache
	tracker  *TokenTracker
}

func NewSuggestionService(provider ComputationProvider, cache *SignatureCache, tracker *TokenTracker) *SuggestionService {
	return &SuggestionService{
		provider: provider,
		cache:    cache,
		tracker:  tracker,
	}
}

// Suggest runs the pipeline for one request. A cache hit is free; a miss
// charges the tokens actually used (or the estimate when the provider does
// not report a count). Provider failures charge nothing.
func (s *SuggestionService) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResult, error) {
	estimate := s.tracker.EstimateTokens(req.SystemPrompt, req.UserPrompt, req.MaxOutputTokens)

	if !s.tracker.CanUseTokens(ctx, req.UserID, estimate) {
		return nil, shared.NewServiceError(
			shared.ErrorCategoryQuota,
			"TOKEN_LIMIT_EXCEEDED",
			"daily token limit reached",
			"suggestion-service",
			"suggest",
			false,
			nil,
		)
	}

	entry, err := s.cache.Get(ctx, req.Signature)
	if err != nil {
		// A broken cache read is a miss, not a failure.
		logrus.WithFields(logrus.Fields{
			"signature": req.Signature,
			"error":     err.Error(),
		}).Warn("Cache lookup failed, treating as miss")
	}
	if entry != nil {
		return &SuggestionResult{Response: entry.Response, Cached: true}, nil
	}

	payload, tokensUsed, err := s.provider.Complete(ctx, req.SystemPrompt, req.UserPrompt, req.MaxOutputTokens)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryResource, "COMPUTATION_FAILED", "suggestion-service", "suggest", true)
	}

	if tokensUsed <= 0 {
		tokensUsed = estimate
	}

	cacheErr := s.cache.Put(ctx, &models.SignatureCacheEntry{
		Signature:       req.Signature,
		ProfileID:       req.ProfileID,
		UserID:          optionalString(req.UserID),
		Response:        payload,
		NormalizedInput: req.NormalizedInput,
		BaselineBut:     req.BaselineBut,
		BaselineIpp:     req.BaselineIpp,
	}, req.TTL)
	if cacheErr != nil {
		logrus.WithFields(logrus.Fields{
			"signature": req.Signature,
			"error":     cacheErr.Error(),
		}).Warn("Cache write failed, response served uncached")
	}

	s.tracker.RecordUsage(ctx, req.UserID, tokensUsed)

	return &SuggestionResult{Response: payload, TokensCharged: tokensUsed}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/actionos/actionos-backend/services"
	"github.com/actionos/actionos-backend/shared"
	"github.com/gofiber/fiber/v2"
)

type SuggestHandler struct {
	Service *services.SuggestionService
}

func NewSuggestHandler(service *services.SuggestionService) *SuggestHandler {
	return &SuggestHandler{Service: service}
}

type suggestRequest struct {
	ProfileID       string          `json:"profile_id"`
	Signature       string          `json:"signature"`
	SystemPrompt    string          `json:"system_prompt"`
	UserPrompt      string          `json:"user_prompt"`
	MaxOutputTokens int             `json:"max_output_tokens"`
	NormalizedInput json.RawMessage `json:"normalized_input"`
	BaselineBut     int             `json:"baseline_but"`
	BaselineIpp     int             `json:"baseline_ipp"`
	TTLHours        int             `json:"ttl_hours"`
}

// Suggest runs the suggestion pipeline for the caller. Quota exhaustion
// maps to 429; provider failure to 502.
func (h *SuggestHandler) Suggest(c *fiber.Ctx) error {
	var req suggestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.ProfileID == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "profile_id and signature are required",
		})
	}

	result, err := h.Service.Suggest(c.Context(), services.SuggestionRequest{
		UserID:          UserID(c),
		ProfileID:       req.ProfileID,
		Signature:       req.Signature,
		SystemPrompt:    req.SystemPrompt,
		UserPrompt:      req.UserPrompt,
		MaxOutputTokens: req.MaxOutputTokens,
		NormalizedInput: req.NormalizedInput,
		BaselineBut:     req.BaselineBut,
		BaselineIpp:     req.BaselineIpp,
		TTL:             time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		var serviceErr *shared.ServiceError
		if errors.As(err, &serviceErr) && serviceErr.Category == shared.ErrorCategoryQuota {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   serviceErr.Code,
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "SUGGESTION_FAILED",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

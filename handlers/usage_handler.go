package handlers

import (
	"github.com/actionos/actionos-backend/services"
	"github.com/gofiber/fiber/v2"
)

type UsageHandler struct {
	Tracker *services.TokenTracker
}

func NewUsageHandler(tracker *services.TokenTracker) *UsageHandler {
	return &UsageHandler{Tracker: tracker}
}

// GetUsage returns the caller's standing against the daily token ceiling.
func (h *UsageHandler) GetUsage(c *fiber.Ctx) error {
	stats := h.Tracker.GetUsage(c.Context(), UserID(c))

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// GetLimitReached reports whether the caller has exhausted today's quota.
func (h *UsageHandler) GetLimitReached(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":       true,
		"limit_reached": h.Tracker.IsLimitReached(c.Context(), UserID(c)),
	})
}

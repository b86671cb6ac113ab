package handlers

import (
	"github.com/actionos/actionos-backend/services"
	"github.com/gofiber/fiber/v2"
)

type CacheHandler struct {
	Cache *services.SignatureCache
}

func NewCacheHandler(cache *services.SignatureCache) *CacheHandler {
	return &CacheHandler{Cache: cache}
}

// InvalidateSignature deletes one cache entry. Deleting an absent entry
// succeeds; invalidation is idempotent.
func (h *CacheHandler) InvalidateSignature(c *fiber.Ctx) error {
	signature := c.Params("signature")

	if err := h.Cache.Invalidate(c.Context(), signature); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache entry invalidated",
	})
}

// InvalidateOwned deletes every cache entry belonging to the caller, used
// after a baseline change leaves the cached snapshots stale.
func (h *CacheHandler) InvalidateOwned(c *fiber.Ctx) error {
	removed, err := h.Cache.InvalidateByOwner(c.Context(), UserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"removed": removed,
	})
}

// GetCacheStats returns in-process hit/miss counters.
func (h *CacheHandler) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.Cache.Stats(),
	})
}

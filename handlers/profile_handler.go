package handlers

import (
	"github.com/actionos/actionos-backend/services"
	"github.com/actionos/actionos-backend/shared"
	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	Service *services.ProfileService
}

func NewProfileHandler(service *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{Service: service}
}

// CreateProfile allocates (or returns) the caller's profile identifier.
// Allocation failure is a correctness issue and surfaces as a 5xx.
func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	result, err := h.Service.Allocate(c.Context(), UserID(c))
	if err != nil {
		if shared.IsStoreErrorCode(err, shared.StoreErrGeneratorInvalid) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "PROFILE_ID_INVALID",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "PROFILE_CREATE_FAILED",
		})
	}

	status := fiber.StatusOK
	message := "Profile already exists"
	if result.Created {
		status = fiber.StatusCreated
		message = "Profile created successfully"
	}

	return c.Status(status).JSON(fiber.Map{
		"success":    true,
		"profile_id": result.ProfileID,
		"created":    result.Created,
		"message":    message,
	})
}

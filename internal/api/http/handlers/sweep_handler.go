package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-engine/internal/service"
)

// SweepHandler triggers an on-demand expiration sweep, ahead of the scheduled
// one. Running it twice is harmless.
type SweepHandler struct {
	service *service.LifecycleService
}

// NewSweepHandler constructs handler.
func NewSweepHandler(lifecycleService *service.LifecycleService) *SweepHandler {
	return &SweepHandler{service: lifecycleService}
}

// Run POST /admin/sweep.
func (h *SweepHandler) Run(c *fiber.Ctx) error {
	report, err := h.service.RunExpirationSweep(c.UserContext(), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

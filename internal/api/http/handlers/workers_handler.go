package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-engine/internal/api/dto"
	"github.com/spec-kit/request-engine/internal/domain"
	"github.com/spec-kit/request-engine/internal/service"
)

// WorkersHandler exposes the worker directory read model.
type WorkersHandler struct {
	service *service.LifecycleService
}

// NewWorkersHandler constructs handler.
func NewWorkersHandler(lifecycleService *service.LifecycleService) *WorkersHandler {
	return &WorkersHandler{service: lifecycleService}
}

// ListWorkers GET /workers.
func (h *WorkersHandler) ListWorkers(c *fiber.Ctx) error {
	workers, err := h.service.ListWorkers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.WorkerResponse, 0, len(workers))
	for i := range workers {
		items = append(items, workerResponse(&workers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func workerResponse(w *domain.Worker) dto.WorkerResponse {
	return dto.WorkerResponse{
		ID:          w.ID,
		Name:        w.Name,
		Active:      w.Active,
		SortOrder:   w.SortOrder,
		Skills:      w.Skills,
		Territories: w.Territories,
		CurrentLoad: w.CurrentLoad,
	}
}

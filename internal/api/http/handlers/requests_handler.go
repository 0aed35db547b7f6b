package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-engine/internal/api/dto"
	"github.com/spec-kit/request-engine/internal/auth"
	"github.com/spec-kit/request-engine/internal/domain"
	"github.com/spec-kit/request-engine/internal/repository"
	"github.com/spec-kit/request-engine/internal/service"
	apperrors "github.com/spec-kit/request-engine/pkg/util"
)

// RequestsHandler manages request lifecycle endpoints.
type RequestsHandler struct {
	service *service.LifecycleService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(lifecycleService *service.LifecycleService) *RequestsHandler {
	return &RequestsHandler{service: lifecycleService}
}

// CreateRequest POST /requests.
func (h *RequestsHandler) CreateRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateRequestPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	created, err := h.service.CreateRequest(c.UserContext(), service.CreateInput{
		Attributes: req.Attributes(),
		ActorID:    principal.ActorID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": requestDetail(created, nil)})
}

// ListRequests GET /requests.
func (h *RequestsHandler) ListRequests(c *fiber.Ctx) error {
	filter := parseRequestQuery(c)
	requests, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRequest GET /requests/:id.
func (h *RequestsHandler) GetRequest(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), req.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(req, history)})
}

// Transition POST /requests/:id/transition.
func (h *RequestsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.TransitionPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Target == "" {
		return apperrors.NewValidationError("target required", nil)
	}

	updated, err := h.service.Transition(c.UserContext(), service.TransitionInput{
		RequestID:      c.Params("id"),
		Target:         req.Target,
		ActorID:        principal.ActorID,
		Reason:         req.Reason,
		ArchivalReason: req.ArchivalReason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(updated, nil)})
}

// Assign POST /requests/:id/assign.
func (h *RequestsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.AssignPayload
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	workerID, err := h.service.Assign(c.UserContext(), service.AssignInput{
		RequestID:    c.Params("id"),
		StrategyName: req.Strategy,
		ActorID:      principal.ActorID,
	})
	if err != nil {
		return err
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = h.service.DefaultStrategy()
	}
	return c.JSON(fiber.Map{"data": dto.AssignmentResponse{
		RequestID: c.Params("id"),
		WorkerID:  workerID,
		Strategy:  strategy,
	}})
}

// Reactivate POST /requests/:id/reactivate.
func (h *RequestsHandler) Reactivate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.ReactivatePayload
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.service.Reactivate(c.UserContext(), service.ReactivateInput{
		RequestID:  c.Params("id"),
		ActorID:    principal.ActorID,
		Reason:     req.Reason,
		ResetTimer: req.ResetTimer,
		Reassign:   req.Reassign,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(updated, nil)})
}

// Score POST /requests/:id/score.
func (h *RequestsHandler) Score(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	score, err := h.service.Score(c.UserContext(), c.Params("id"), principal.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ScoreResponse{RequestID: c.Params("id"), Score: score}})
}

// UpdateAttributes PUT /requests/:id/attributes.
func (h *RequestsHandler) UpdateAttributes(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateRequestPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.service.UpdateAttributes(c.UserContext(), c.Params("id"), req.Attributes(), principal.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(updated, nil)})
}

// History GET /requests/:id/history. With ?at=<RFC3339> the audit trail is
// replayed and the reconstructed state at that instant is returned instead.
func (h *RequestsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if at := parseTime(c.Query("at")); at != nil {
		state := domain.ReplayStatus(entries, *at)
		return c.JSON(fiber.Map{"data": dto.ReplayResponse{
			At:         *at,
			Status:     state.Status,
			AssigneeID: state.AssigneeID,
		}})
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

func parseRequestQuery(c *fiber.Ctx) repository.RequestFilter {
	filter := repository.RequestFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.RequestStatus(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requestSummary(req *domain.Request) dto.RequestSummary {
	return dto.RequestSummary{
		ID:                req.ID,
		Status:            req.Status,
		AssigneeID:        req.AssigneeID,
		AssignedAt:        req.AssignedAt,
		Score:             req.Score,
		ArchivalReason:    req.ArchivalReason,
		ReactivationCount: req.ReactivationCount,
		CreatedAt:         req.CreatedAt,
		LastActivityAt:    req.LastActivityAt,
	}
}

func requestDetail(req *domain.Request, history []domain.AuditEntry) dto.RequestDetailResponse {
	return dto.RequestDetailResponse{
		RequestSummary: requestSummary(req),
		Attributes:     req.Attributes,
		Version:        req.Version,
		History:        auditResponses(history),
	}
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:           entry.ID,
			ActorID:      entry.ActorID,
			ChangeType:   string(entry.ChangeType),
			FromStatus:   entry.FromStatus,
			ToStatus:     entry.ToStatus,
			FromAssignee: entry.FromAssignee,
			ToAssignee:   entry.ToAssignee,
			Reason:       entry.Reason,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return resp
}

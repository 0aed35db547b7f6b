package dto

import (
	"time"

	"github.com/spec-kit/request-engine/internal/domain"
)

// CreateRequestPayload payload.
type CreateRequestPayload struct {
	ProductType  string            `json:"product_type"`
	BudgetTier   domain.BudgetTier `json:"budget_tier"`
	City         string            `json:"city"`
	LeadSource   string            `json:"lead_source"`
	HasFinancing bool              `json:"has_financing"`
	HasPermits   bool              `json:"has_permits"`
	HasTimeline  bool              `json:"has_timeline"`
}

// Attributes converts the payload into the domain attribute bag.
func (p CreateRequestPayload) Attributes() domain.RequestAttributes {
	return domain.RequestAttributes{
		ProductType:  p.ProductType,
		BudgetTier:   p.BudgetTier,
		City:         p.City,
		LeadSource:   p.LeadSource,
		HasFinancing: p.HasFinancing,
		HasPermits:   p.HasPermits,
		HasTimeline:  p.HasTimeline,
	}
}

// TransitionPayload payload.
type TransitionPayload struct {
	Target         domain.RequestStatus   `json:"target"`
	Reason         string                 `json:"reason"`
	ArchivalReason *domain.ArchivalReason `json:"archival_reason,omitempty"`
}

// AssignPayload payload.
type AssignPayload struct {
	Strategy string `json:"strategy"`
}

// ReactivatePayload payload.
type ReactivatePayload struct {
	Reason     string `json:"reason"`
	ResetTimer bool   `json:"reset_timer"`
	Reassign   bool   `json:"reassign"`
}

// RequestSummary response.
type RequestSummary struct {
	ID                string                 `json:"id"`
	Status            domain.RequestStatus   `json:"status"`
	AssigneeID        *string                `json:"assignee_id"`
	AssignedAt        *time.Time             `json:"assigned_at"`
	Score             *int                   `json:"score"`
	ArchivalReason    *domain.ArchivalReason `json:"archival_reason,omitempty"`
	ReactivationCount int                    `json:"reactivation_count"`
	CreatedAt         time.Time              `json:"created_at"`
	LastActivityAt    time.Time              `json:"last_activity_at"`
}

// RequestDetailResponse provides full request info.
type RequestDetailResponse struct {
	RequestSummary
	Attributes domain.RequestAttributes `json:"attributes"`
	Version    int64                    `json:"version"`
	History    []AuditEntryResponse     `json:"history,omitempty"`
}

// AuditEntryResponse represents one audit trail record.
type AuditEntryResponse struct {
	ID           string               `json:"id"`
	ActorID      string               `json:"actor_id"`
	ChangeType   string               `json:"change_type"`
	FromStatus   domain.RequestStatus `json:"from_status"`
	ToStatus     domain.RequestStatus `json:"to_status"`
	FromAssignee *string              `json:"from_assignee,omitempty"`
	ToAssignee   *string              `json:"to_assignee,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// ReplayResponse is the reconstructed state at a point in time.
type ReplayResponse struct {
	At         time.Time            `json:"at"`
	Status     domain.RequestStatus `json:"status"`
	AssigneeID *string              `json:"assignee_id"`
}

// AssignmentResponse reports an assignment decision.
type AssignmentResponse struct {
	RequestID string `json:"request_id"`
	WorkerID  string `json:"worker_id"`
	Strategy  string `json:"strategy"`
}

// ScoreResponse reports a recomputed score.
type ScoreResponse struct {
	RequestID string `json:"request_id"`
	Score     int    `json:"score"`
}

// WorkerResponse exposes the directory read model.
type WorkerResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Active      bool           `json:"active"`
	SortOrder   int            `json:"sort_order"`
	Skills      map[string]int `json:"skills,omitempty"`
	Territories []string       `json:"territories,omitempty"`
	CurrentLoad int            `json:"current_load"`
}

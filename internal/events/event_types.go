package events

import (
	"time"

	"github.com/spec-kit/request-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestAssigned      EventType = "request_assigned"
	EventRequestScored        EventType = "request_scored"
	EventRequestExpired       EventType = "request_expired"
	EventRequestReactivated   EventType = "request_reactivated"
)

// Event represents a domain event emitted on every successful mutation.
// External collaborators (notifications, dashboards) subscribe to these.
type Event struct {
	ID         string               `json:"id"`
	Type       EventType            `json:"type"`
	RequestID  string               `json:"request_id"`
	ActorID    string               `json:"actor_id"`
	FromStatus domain.RequestStatus `json:"from_status,omitempty"`
	ToStatus   domain.RequestStatus `json:"to_status,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	Payload    interface{}          `json:"payload,omitempty"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Attributes domain.RequestAttributes `json:"attributes"`
	Score      *int                     `json:"score,omitempty"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	Reason         string                 `json:"reason,omitempty"`
	ArchivalReason *domain.ArchivalReason `json:"archival_reason,omitempty"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	Strategy   string  `json:"strategy"`
}

// RequestScoredPayload payload.
type RequestScoredPayload struct {
	OldScore *int `json:"old_score,omitempty"`
	NewScore int  `json:"new_score"`
}

// RequestReactivatedPayload payload.
type RequestReactivatedPayload struct {
	ReactivationCount int    `json:"reactivation_count"`
	Reason            string `json:"reason,omitempty"`
	TimerReset        bool   `json:"timer_reset"`
}

package domain

import "time"

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	StatusNew                RequestStatus = "NEW"
	StatusPendingWalkthrough RequestStatus = "PENDING_WALKTHROUGH"
	StatusMoveToQuoting      RequestStatus = "MOVE_TO_QUOTING"
	StatusExpired            RequestStatus = "EXPIRED"
	StatusArchived           RequestStatus = "ARCHIVED"
)

// ArchivalReason explains why a request was archived.
type ArchivalReason string

const (
	ArchivalNotInterested ArchivalReason = "NOT_INTERESTED"
	ArchivalUnresponsive  ArchivalReason = "UNRESPONSIVE"
	ArchivalOutOfArea     ArchivalReason = "OUT_OF_AREA"
	ArchivalDuplicate     ArchivalReason = "DUPLICATE"
	ArchivalOther         ArchivalReason = "OTHER"
)

// BudgetTier orders customer budget bands from lowest to highest.
type BudgetTier string

const (
	BudgetEconomy  BudgetTier = "ECONOMY"
	BudgetStandard BudgetTier = "STANDARD"
	BudgetPremium  BudgetTier = "PREMIUM"
	BudgetLuxury   BudgetTier = "LUXURY"
)

// RequestAttributes is the structured bag consumed by scoring and assignment.
// It is owned exclusively by the request.
type RequestAttributes struct {
	ProductType  string     `json:"product_type"`
	BudgetTier   BudgetTier `json:"budget_tier"`
	City         string     `json:"city"`
	LeadSource   string     `json:"lead_source"`
	HasFinancing bool       `json:"has_financing"`
	HasPermits   bool       `json:"has_permits"`
	HasTimeline  bool       `json:"has_timeline"`
}

// Request is the aggregate for service requests moving through the lifecycle.
type Request struct {
	ID                string
	Status            RequestStatus
	AssigneeID        *string
	AssignedAt        *time.Time
	Score             *int
	ArchivalReason    *ArchivalReason
	ReactivationCount int
	Attributes        RequestAttributes
	Version           int64
	CreatedAt         time.Time
	LastActivityAt    time.Time
}

// Assigned reports whether the request currently has a worker.
func (r *Request) Assigned() bool {
	return r.AssigneeID != nil && *r.AssigneeID != ""
}

// OpenStatuses are the states subject to the inactivity sweep.
func OpenStatuses() []RequestStatus {
	return []RequestStatus{StatusNew, StatusPendingWalkthrough, StatusMoveToQuoting}
}

// AssignableStatuses are the states whose entry triggers auto-assignment
// when the request is unassigned.
func AssignableStatuses() []RequestStatus {
	return []RequestStatus{StatusNew, StatusPendingWalkthrough}
}

// IsAssignable reports whether entering status should trigger assignment.
func IsAssignable(status RequestStatus) bool {
	for _, s := range AssignableStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

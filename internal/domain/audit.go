package domain

import "time"

// ActorSystem identifies mutations originated by the engine itself,
// such as the expiration sweep.
const ActorSystem = "system"

// AuditChangeType captures what changed in an audit entry.
type AuditChangeType string

const (
	// ChangeTypeCreated marks the birth entry; FromStatus is empty because
	// no graph edge leads into the initial state.
	ChangeTypeCreated    AuditChangeType = "CREATED"
	ChangeTypeStatus     AuditChangeType = "STATUS_CHANGE"
	ChangeTypeAssignment AuditChangeType = "ASSIGNMENT_CHANGE"
	ChangeTypeScore      AuditChangeType = "SCORE_CHANGE"
	ChangeTypeAttributes AuditChangeType = "ATTRIBUTES_CHANGE"
)

// AuditEntry is an immutable, append-only record of one request mutation.
// The ordered sequence of entries for a request is its full history.
type AuditEntry struct {
	ID           string
	RequestID    string
	ActorID      string
	ChangeType   AuditChangeType
	FromStatus   RequestStatus
	ToStatus     RequestStatus
	FromAssignee *string
	ToAssignee   *string
	Reason       string
	CreatedAt    time.Time
}

// ReplayedState is the reconstruction result of an audit walk.
type ReplayedState struct {
	Status     RequestStatus
	AssigneeID *string
}

// ReplayStatus reconstructs status and assignee at instant t from the ordered
// audit history. Entries after t are ignored.
func ReplayStatus(entries []AuditEntry, t time.Time) ReplayedState {
	state := ReplayedState{Status: StatusNew}
	for _, entry := range entries {
		if entry.CreatedAt.After(t) {
			break
		}
		switch entry.ChangeType {
		case ChangeTypeCreated, ChangeTypeStatus:
			state.Status = entry.ToStatus
		case ChangeTypeAssignment:
			state.AssigneeID = entry.ToAssignee
		}
	}
	return state
}

package domain

import (
	"testing"
	"time"
)

func TestReplayStatusReconstructsHistory(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	worker := "w-1"
	entries := []AuditEntry{
		{ChangeType: ChangeTypeCreated, ToStatus: StatusNew, CreatedAt: base},
		{ChangeType: ChangeTypeAssignment, ToAssignee: &worker, CreatedAt: base.Add(1 * time.Hour)},
		{ChangeType: ChangeTypeStatus, FromStatus: StatusNew, ToStatus: StatusPendingWalkthrough, CreatedAt: base.Add(2 * time.Hour)},
		{ChangeType: ChangeTypeStatus, FromStatus: StatusPendingWalkthrough, ToStatus: StatusMoveToQuoting, CreatedAt: base.Add(3 * time.Hour)},
	}

	state := ReplayStatus(entries, base.Add(90*time.Minute))
	if state.Status != StatusNew {
		t.Fatalf("expected NEW at t+90m, got %s", state.Status)
	}
	if state.AssigneeID == nil || *state.AssigneeID != worker {
		t.Fatalf("expected assignee %s at t+90m", worker)
	}

	state = ReplayStatus(entries, base.Add(4*time.Hour))
	if state.Status != StatusMoveToQuoting {
		t.Fatalf("expected MOVE_TO_QUOTING at end, got %s", state.Status)
	}
}

func TestReplayedHistoryIsValidWalk(t *testing.T) {
	entries := []AuditEntry{
		{ChangeType: ChangeTypeStatus, FromStatus: StatusNew, ToStatus: StatusPendingWalkthrough},
		{ChangeType: ChangeTypeStatus, FromStatus: StatusPendingWalkthrough, ToStatus: StatusExpired},
		{ChangeType: ChangeTypeStatus, FromStatus: StatusExpired, ToStatus: StatusNew},
		{ChangeType: ChangeTypeStatus, FromStatus: StatusNew, ToStatus: StatusArchived},
	}
	for _, entry := range entries {
		if !CanTransition(entry.FromStatus, entry.ToStatus) {
			t.Errorf("history contains edge %s -> %s absent from the graph", entry.FromStatus, entry.ToStatus)
		}
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/request-engine/internal/assignment"
	"github.com/spec-kit/request-engine/internal/config"
	"github.com/spec-kit/request-engine/internal/domain"
	"github.com/spec-kit/request-engine/internal/events"
	"github.com/spec-kit/request-engine/internal/observability"
	"github.com/spec-kit/request-engine/internal/repository"
	"github.com/spec-kit/request-engine/internal/scoring"
	"github.com/spec-kit/request-engine/internal/service"
	apperrors "github.com/spec-kit/request-engine/pkg/util"
)

type testEnv struct {
	Service *service.LifecycleService
	Store   *repository.MemoryStore
	Ctx     context.Context
	Clock   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return clock })

	registry := assignment.NewRegistry(
		assignment.NewRoundRobin(assignment.NewMemoryCursorStore()),
		assignment.NewWorkloadBalanced(),
		assignment.NewSkillBased(),
		assignment.NewTerritoryBased(),
		assignment.NewHybrid(assignment.DefaultHybridWeights()),
	)

	svc := service.NewLifecycleService(service.LifecycleDependencies{
		RequestRepo: store,
		AuditRepo:   store,
		Workers:     store,
		Meetings:    store,
		Strategies:  registry,
		Scorer:      scoring.NewLeadScorer(scoring.DefaultWeights()),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     observability.NewMetrics(),
		Lifecycle: config.LifecycleConfig{
			ExpirationDays:    14,
			ReactivationLimit: 3,
			SweepParallelism:  2,
			SweepBatchLimit:   100,
		},
		DefaultStrategy: assignment.StrategyRoundRobin,
	})
	svc.Now = func() time.Time { return clock }

	return &testEnv{Service: svc, Store: store, Ctx: context.Background(), Clock: clock}
}

func (env *testEnv) seedRequest(t *testing.T, status domain.RequestStatus) domain.Request {
	t.Helper()
	return env.Store.Put(domain.Request{
		Status:         status,
		CreatedAt:      env.Clock,
		LastActivityAt: env.Clock,
	})
}

func (env *testEnv) auditCount(t *testing.T, requestID string) int {
	t.Helper()
	entries, err := env.Store.ListByRequest(env.Ctx, requestID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return len(entries)
}

func TestCreateRequestScoresAndAssigns(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SeedWorker(domain.Worker{ID: "w-1", Active: true, SortOrder: 1})

	req, err := env.Service.CreateRequest(env.Ctx, service.CreateInput{
		ActorID: "admin-1",
		Attributes: domain.RequestAttributes{
			ProductType: "kitchen",
			BudgetTier:  domain.BudgetPremium,
			LeadSource:  "referral",
			City:        "austin",
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != domain.StatusNew {
		t.Errorf("expected NEW, got %s", req.Status)
	}
	if req.Score == nil || *req.Score <= 0 {
		t.Errorf("expected computed score, got %v", req.Score)
	}
	if !req.Assigned() || *req.AssigneeID != "w-1" {
		t.Errorf("expected auto-assignment to w-1, got %v", req.AssigneeID)
	}
	if req.AssignedAt == nil {
		t.Error("assigned_at not set on first assignment")
	}
	// creation entry plus assignment entry
	entries, _ := env.Store.ListByRequest(env.Ctx, req.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].ChangeType != domain.ChangeTypeCreated || entries[0].FromStatus != "" {
		t.Errorf("birth entry mismatch: %+v", entries[0])
	}
}

func TestCreateWithoutWorkersLeavesUnassigned(t *testing.T) {
	env := newTestEnv(t)
	req, err := env.Service.CreateRequest(env.Ctx, service.CreateInput{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("create must not fail on empty directory: %v", err)
	}
	if req.Assigned() {
		t.Errorf("expected unassigned request, got %v", req.AssigneeID)
	}
}

func TestTransitionAppendsAudit(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	updated, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusPendingWalkthrough,
		ActorID:   "admin-1",
		Reason:    "customer confirmed interest",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != domain.StatusPendingWalkthrough {
		t.Fatalf("expected PENDING_WALKTHROUGH, got %s", updated.Status)
	}

	entries, _ := env.Store.ListByRequest(env.Ctx, req.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.FromStatus != domain.StatusNew || entry.ToStatus != domain.StatusPendingWalkthrough {
		t.Errorf("audit edge mismatch: %s -> %s", entry.FromStatus, entry.ToStatus)
	}
	if entry.ActorID != "admin-1" || entry.Reason != "customer confirmed interest" {
		t.Errorf("audit actor/reason mismatch: %+v", entry)
	}
	if !domain.CanTransition(entry.FromStatus, entry.ToStatus) {
		t.Error("audit entry records an edge absent from the status graph")
	}
}

func TestInvalidTransitionRejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusMoveToQuoting,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Status != domain.StatusNew {
		t.Errorf("rejected transition mutated status to %s", stored.Status)
	}
	if got := env.auditCount(t, req.ID); got != 0 {
		t.Errorf("rejected transition appended %d audit entries", got)
	}
}

func TestManualExpirationRejected(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusExpired,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expiry must be sweep-only, got %v", err)
	}
}

func TestWalkthroughPrecondition(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusPendingWalkthrough)

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusMoveToQuoting,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "PRECONDITION_FAILED") {
		t.Fatalf("expected PRECONDITION_FAILED without a walkthrough, got %v", err)
	}
	if got := env.auditCount(t, req.ID); got != 0 {
		t.Errorf("failed precondition appended %d audit entries", got)
	}

	env.Store.SetWalkthrough(req.ID, true)
	updated, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusMoveToQuoting,
		ActorID:   "admin-1",
	})
	if err != nil {
		t.Fatalf("transition with walkthrough: %v", err)
	}
	if updated.Status != domain.StatusMoveToQuoting {
		t.Errorf("expected MOVE_TO_QUOTING, got %s", updated.Status)
	}
}

func TestArchiveRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusArchived,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "PRECONDITION_FAILED") {
		t.Fatalf("expected PRECONDITION_FAILED without archival reason, got %v", err)
	}

	reason := domain.ArchivalNotInterested
	updated, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID:      req.ID,
		Target:         domain.StatusArchived,
		ActorID:        "admin-1",
		Reason:         "customer declined",
		ArchivalReason: &reason,
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if updated.ArchivalReason == nil || *updated.ArchivalReason != domain.ArchivalNotInterested {
		t.Errorf("archival reason not recorded: %v", updated.ArchivalReason)
	}
}

func TestConcurrentTransitionConflict(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	// a competing admin archives the request between our load and our save
	env.Store.BeforeUpdate = func(requestID string) {
		reason := domain.ArchivalDuplicate
		if _, err := env.Service.Transition(env.Ctx, service.TransitionInput{
			RequestID:      requestID,
			Target:         domain.StatusArchived,
			ActorID:        "admin-2",
			Reason:         "duplicate entry",
			ArchivalReason: &reason,
		}); err != nil {
			t.Errorf("competing transition: %v", err)
		}
	}

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusPendingWalkthrough,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "CONFLICT_RETRY") {
		t.Fatalf("expected CONFLICT_RETRY for the losing writer, got %v", err)
	}

	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Status != domain.StatusArchived {
		t.Errorf("winner's state lost: %s", stored.Status)
	}
	if got := env.auditCount(t, req.ID); got != 1 {
		t.Errorf("expected exactly one audit entry, got %d", got)
	}
}

func TestTransitionAtomicOnStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)
	env.Store.FailUpdateFor(req.ID, errors.New("connection reset"))

	_, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusPendingWalkthrough,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "STORE_UNAVAILABLE") {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}

	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Status != domain.StatusNew || stored.Version != req.Version {
		t.Errorf("failed write mutated the request: %+v", stored)
	}
	if got := env.auditCount(t, req.ID); got != 0 {
		t.Errorf("failed write appended %d audit entries", got)
	}
}

func TestReactivationCap(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusExpired)

	for i := 1; i <= 3; i++ {
		updated, err := env.Service.Reactivate(env.Ctx, service.ReactivateInput{
			RequestID:  req.ID,
			ActorID:    "admin-1",
			Reason:     "second chance",
			ResetTimer: true,
		})
		if err != nil {
			t.Fatalf("reactivation %d: %v", i, err)
		}
		if updated.Status != domain.StatusNew || updated.ReactivationCount != i {
			t.Fatalf("reactivation %d: status=%s count=%d", i, updated.Status, updated.ReactivationCount)
		}

		// put it back on the shelf for the next round
		stored, _ := env.Store.GetByID(env.Ctx, req.ID)
		stored.Status = domain.StatusExpired
		env.Store.Put(*stored)
	}

	before := env.auditCount(t, req.ID)
	_, err := env.Service.Reactivate(env.Ctx, service.ReactivateInput{
		RequestID: req.ID,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "REACTIVATION_LIMIT_EXCEEDED") {
		t.Fatalf("expected REACTIVATION_LIMIT_EXCEEDED on 4th attempt, got %v", err)
	}

	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Status != domain.StatusExpired || stored.ReactivationCount != 3 {
		t.Errorf("rejected reactivation mutated state: status=%s count=%d", stored.Status, stored.ReactivationCount)
	}
	if got := env.auditCount(t, req.ID); got != before {
		t.Errorf("rejected reactivation appended audit entries: %d -> %d", before, got)
	}
}

func TestReactivateFromOpenStateRejected(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Reactivate(env.Ctx, service.ReactivateInput{
		RequestID: req.ID,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestReactivateClearsArchivalReason(t *testing.T) {
	env := newTestEnv(t)
	reason := domain.ArchivalUnresponsive
	req := env.Store.Put(domain.Request{
		Status:         domain.StatusArchived,
		ArchivalReason: &reason,
		CreatedAt:      env.Clock,
		LastActivityAt: env.Clock,
	})

	updated, err := env.Service.Reactivate(env.Ctx, service.ReactivateInput{
		RequestID:  req.ID,
		ActorID:    "admin-1",
		ResetTimer: true,
	})
	if err != nil {
		t.Fatalf("reactivate from archived: %v", err)
	}
	if updated.ArchivalReason != nil {
		t.Errorf("archival reason survived reactivation: %v", *updated.ArchivalReason)
	}
}

func TestAssignUnknownStrategy(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Assign(env.Ctx, service.AssignInput{
		RequestID:    req.ID,
		StrategyName: "coin_flip",
		ActorID:      "admin-1",
	})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestAssignNoEligibleWorker(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	_, err := env.Service.Assign(env.Ctx, service.AssignInput{
		RequestID: req.ID,
		ActorID:   "admin-1",
	})
	if !apperrors.IsCode(err, "NO_ELIGIBLE_WORKER") {
		t.Fatalf("expected NO_ELIGIBLE_WORKER, got %v", err)
	}
	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Assigned() {
		t.Errorf("request assigned despite empty directory: %v", stored.AssigneeID)
	}
}

func TestAssignRecordsAuditAndLoad(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SeedWorker(domain.Worker{ID: "w-1", Active: true, SortOrder: 1})
	env.Store.SeedWorker(domain.Worker{ID: "w-2", Active: true, SortOrder: 2})
	req := env.seedRequest(t, domain.StatusNew)

	workerID, err := env.Service.Assign(env.Ctx, service.AssignInput{
		RequestID:    req.ID,
		StrategyName: assignment.StrategyWorkloadBalanced,
		ActorID:      "admin-1",
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	entries, _ := env.Store.ListByRequest(env.Ctx, req.ID)
	if len(entries) != 1 || entries[0].ChangeType != domain.ChangeTypeAssignment {
		t.Fatalf("expected one assignment audit entry, got %+v", entries)
	}
	if entries[0].ToAssignee == nil || *entries[0].ToAssignee != workerID {
		t.Errorf("audit assignee mismatch: %v", entries[0].ToAssignee)
	}

	workers, _ := env.Store.ActiveWorkers(env.Ctx)
	for _, w := range workers {
		if w.ID == workerID && w.CurrentLoad != 1 {
			t.Errorf("directory load not recomputed: %d", w.CurrentLoad)
		}
	}
}

func TestScorePersistsAndAudits(t *testing.T) {
	env := newTestEnv(t)
	req := env.Store.Put(domain.Request{
		Status: domain.StatusNew,
		Attributes: domain.RequestAttributes{
			BudgetTier: domain.BudgetLuxury,
			LeadSource: "referral",
		},
		CreatedAt:      env.Clock,
		LastActivityAt: env.Clock,
	})

	score, err := env.Service.Score(env.Ctx, req.ID, "admin-1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score <= 0 || score > 100 {
		t.Fatalf("score out of range: %d", score)
	}

	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if stored.Score == nil || *stored.Score != score {
		t.Errorf("score not persisted: %v", stored.Score)
	}

	// unchanged attributes: second call is a read-only no-op
	before := env.auditCount(t, req.ID)
	if _, err := env.Service.Score(env.Ctx, req.ID, "admin-1"); err != nil {
		t.Fatalf("re-score: %v", err)
	}
	if got := env.auditCount(t, req.ID); got != before {
		t.Errorf("no-op recompute appended audit entries: %d -> %d", before, got)
	}
}

func TestUpdateAttributesRescores(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, domain.StatusNew)

	first, err := env.Service.UpdateAttributes(env.Ctx, req.ID, domain.RequestAttributes{
		BudgetTier: domain.BudgetEconomy,
	}, "admin-1")
	if err != nil {
		t.Fatalf("update attributes: %v", err)
	}
	second, err := env.Service.UpdateAttributes(env.Ctx, req.ID, domain.RequestAttributes{
		BudgetTier:   domain.BudgetLuxury,
		LeadSource:   "referral",
		ProductType:  "kitchen",
		City:         "austin",
		HasFinancing: true,
	}, "admin-1")
	if err != nil {
		t.Fatalf("update attributes: %v", err)
	}
	if *second.Score <= *first.Score {
		t.Errorf("richer attributes must not lower the score: %d -> %d", *first.Score, *second.Score)
	}
}

func TestHistoryReplaysToCurrentState(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SeedWorker(domain.Worker{ID: "w-1", Active: true, SortOrder: 1})

	req, err := env.Service.CreateRequest(env.Ctx, service.CreateInput{ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Service.Transition(env.Ctx, service.TransitionInput{
		RequestID: req.ID,
		Target:    domain.StatusPendingWalkthrough,
		ActorID:   "admin-1",
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	entries, err := env.Service.History(env.Ctx, req.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	state := domain.ReplayStatus(entries, env.Clock.Add(time.Hour))
	stored, _ := env.Store.GetByID(env.Ctx, req.ID)
	if state.Status != stored.Status {
		t.Errorf("replayed status %s != stored %s", state.Status, stored.Status)
	}
	if (state.AssigneeID == nil) != (stored.AssigneeID == nil) {
		t.Errorf("replayed assignee %v != stored %v", state.AssigneeID, stored.AssigneeID)
	}
	if len(entries) == 0 || entries[0].ChangeType != domain.ChangeTypeCreated {
		t.Fatalf("history must start with a birth entry, got %+v", entries)
	}
	for _, entry := range entries {
		if entry.ChangeType == domain.ChangeTypeStatus && !domain.CanTransition(entry.FromStatus, entry.ToStatus) {
			t.Errorf("history contains invalid edge %s -> %s", entry.FromStatus, entry.ToStatus)
		}
	}
}

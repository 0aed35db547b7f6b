package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/request-engine/internal/assignment"
	"github.com/spec-kit/request-engine/internal/config"
	"github.com/spec-kit/request-engine/internal/domain"
	"github.com/spec-kit/request-engine/internal/events"
	"github.com/spec-kit/request-engine/internal/observability"
	"github.com/spec-kit/request-engine/internal/repository"
	"github.com/spec-kit/request-engine/internal/scoring"
	apperrors "github.com/spec-kit/request-engine/pkg/util"
)

// LifecycleService owns the request state machine. Every mutation goes
// through a versioned write that commits the request row and its audit entry
// together, so a rejected or conflicting call leaves no trace.
type LifecycleService struct {
	requests        repository.RequestRepository
	audit           repository.AuditRepository
	workers         repository.WorkerDirectory
	meetings        repository.MeetingDirectory
	strategies      *assignment.Registry
	scorer          *scoring.LeadScorer
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
	lifecycle       config.LifecycleConfig
	defaultStrategy string

	// Now is the clock; tests override it.
	Now func() time.Time
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	RequestRepo     repository.RequestRepository
	AuditRepo       repository.AuditRepository
	Workers         repository.WorkerDirectory
	Meetings        repository.MeetingDirectory
	Strategies      *assignment.Registry
	Scorer          *scoring.LeadScorer
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	Lifecycle       config.LifecycleConfig
	DefaultStrategy string
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultStrategy := deps.DefaultStrategy
	if defaultStrategy == "" {
		defaultStrategy = assignment.StrategyRoundRobin
	}
	return &LifecycleService{
		requests:        deps.RequestRepo,
		audit:           deps.AuditRepo,
		workers:         deps.Workers,
		meetings:        deps.Meetings,
		strategies:      deps.Strategies,
		scorer:          deps.Scorer,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		metrics:         deps.Metrics,
		lifecycle:       deps.Lifecycle,
		defaultStrategy: defaultStrategy,
		Now:             time.Now,
	}
}

// CreateInput describes request creation payload.
type CreateInput struct {
	Attributes domain.RequestAttributes
	ActorID    string
}

// CreateRequest creates a request in NEW, scores it, and attempts assignment.
func (s *LifecycleService) CreateRequest(ctx context.Context, input CreateInput) (*domain.Request, error) {
	now := s.Now()
	req := &domain.Request{
		Status:         domain.StatusNew,
		Attributes:     input.Attributes,
		LastActivityAt: now,
	}
	score := s.scorer.Score(req)
	req.Score = &score

	entry := &domain.AuditEntry{
		ActorID:    input.ActorID,
		ChangeType: domain.ChangeTypeCreated,
		ToStatus:   domain.StatusNew,
		Reason:     "created",
		CreatedAt:  now,
	}
	if err := s.requests.Create(ctx, req, entry); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: req.ID,
		ActorID:   input.ActorID,
		ToStatus:  req.Status,
		Payload:   events.RequestCreatedPayload{Attributes: req.Attributes, Score: req.Score},
	})

	return s.tryAutoAssign(ctx, req, input.ActorID), nil
}

// TransitionInput describes a manual status change.
type TransitionInput struct {
	RequestID      string
	Target         domain.RequestStatus
	ActorID        string
	Reason         string
	ArchivalReason *domain.ArchivalReason
}

// Transition advances a request along a manual edge of the status graph.
// Automatic-only edges (expiration) and reactivation edges are rejected here;
// they have their own entry points.
func (s *LifecycleService) Transition(ctx context.Context, input TransitionInput) (*domain.Request, error) {
	if !domain.ValidStatus(input.Target) {
		return nil, apperrors.NewValidationError("unknown target status", map[string]any{"target": input.Target})
	}

	req, err := s.load(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}

	rule, ok := domain.Rule(req.Status, input.Target)
	if !ok || rule.AutomaticOnly || rule.ReactivationOnly {
		return nil, apperrors.NewInvalidTransition(string(req.Status), string(input.Target))
	}
	if rule.RequiresWalkthrough {
		scheduled, err := s.meetings.HasScheduledWalkthrough(ctx, req.ID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailable(err)
		}
		if !scheduled {
			return nil, apperrors.NewPreconditionFailed("no scheduled walkthrough for request",
				map[string]any{"request_id": req.ID})
		}
	}
	if rule.RequiresArchivalReason && input.ArchivalReason == nil {
		return nil, apperrors.NewPreconditionFailed("archival reason required",
			map[string]any{"request_id": req.ID})
	}

	now := s.Now()
	fromStatus := req.Status
	updated := *req
	updated.Status = input.Target
	updated.LastActivityAt = now
	if input.Target == domain.StatusArchived {
		updated.ArchivalReason = input.ArchivalReason
	}

	entry := &domain.AuditEntry{
		RequestID:  req.ID,
		ActorID:    input.ActorID,
		ChangeType: domain.ChangeTypeStatus,
		FromStatus: fromStatus,
		ToStatus:   input.Target,
		Reason:     input.Reason,
		CreatedAt:  now,
	}
	if err := s.requests.UpdateWithAudit(ctx, &updated, req.Version, entry); err != nil {
		return nil, s.mapWriteError(err, req.ID)
	}
	s.metrics.RecordTransition(string(fromStatus), string(input.Target))

	s.publish(ctx, events.Event{
		Type:       events.EventRequestStatusChanged,
		RequestID:  updated.ID,
		ActorID:    input.ActorID,
		FromStatus: fromStatus,
		ToStatus:   updated.Status,
		Payload: events.RequestStatusChangedPayload{
			Reason:         input.Reason,
			ArchivalReason: updated.ArchivalReason,
		},
	})

	result := &updated
	if domain.IsAssignable(updated.Status) && !updated.Assigned() {
		result = s.tryAutoAssign(ctx, result, input.ActorID)
	}
	return result, nil
}

// AssignInput describes an assignment command.
type AssignInput struct {
	RequestID    string
	StrategyName string
	ActorID      string
}

// Assign runs the named strategy over the current worker snapshot and applies
// the decision. When no worker is eligible the request stays unassigned and
// the caller receives NO_ELIGIBLE_WORKER.
func (s *LifecycleService) Assign(ctx context.Context, input AssignInput) (string, error) {
	req, err := s.load(ctx, input.RequestID)
	if err != nil {
		return "", err
	}

	name := input.StrategyName
	if name == "" {
		name = s.defaultStrategy
	}
	strategy, ok := s.strategies.Get(name)
	if !ok {
		return "", apperrors.NewValidationError("unknown assignment strategy",
			map[string]any{"strategy": name, "known": s.strategies.Names()})
	}

	candidates, err := s.workers.ActiveWorkers(ctx)
	if err != nil {
		return "", apperrors.NewStoreUnavailable(err)
	}
	workerID, err := strategy.Assign(ctx, req, candidates)
	if err != nil {
		if errors.Is(err, assignment.ErrNoEligibleWorker) {
			s.logger.Info("no eligible worker",
				zap.String("request_id", req.ID), zap.String("strategy", name))
			return "", apperrors.NewNoEligibleWorker(name)
		}
		return "", apperrors.NewStoreUnavailable(err)
	}

	if err := s.applyAssignment(ctx, req, workerID, name, input.ActorID); err != nil {
		return "", err
	}
	return workerID, nil
}

// ReactivateInput describes a bounded reactivation command.
type ReactivateInput struct {
	RequestID  string
	ActorID    string
	Reason     string
	ResetTimer bool
	Reassign   bool
}

// Reactivate moves an expired or archived request back to NEW, bounded by the
// lifetime reactivation cap. The fourth attempt is rejected with no mutation.
func (s *LifecycleService) Reactivate(ctx context.Context, input ReactivateInput) (*domain.Request, error) {
	req, err := s.load(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}

	rule, ok := domain.Rule(req.Status, domain.StatusNew)
	if !ok || !rule.ReactivationOnly {
		return nil, apperrors.NewInvalidTransition(string(req.Status), string(domain.StatusNew))
	}
	limit := s.reactivationLimit()
	if req.ReactivationCount >= limit {
		return nil, apperrors.NewReactivationLimitExceeded(req.ReactivationCount, limit)
	}

	now := s.Now()
	fromStatus := req.Status
	updated := *req
	updated.Status = domain.StatusNew
	updated.ReactivationCount++
	updated.ArchivalReason = nil
	if input.ResetTimer {
		updated.LastActivityAt = now
	}

	entry := &domain.AuditEntry{
		RequestID:  req.ID,
		ActorID:    input.ActorID,
		ChangeType: domain.ChangeTypeStatus,
		FromStatus: fromStatus,
		ToStatus:   domain.StatusNew,
		Reason:     reactivationReason(input.Reason, updated.ReactivationCount),
		CreatedAt:  now,
	}
	if err := s.requests.UpdateWithAudit(ctx, &updated, req.Version, entry); err != nil {
		return nil, s.mapWriteError(err, req.ID)
	}
	s.metrics.RecordTransition(string(fromStatus), string(domain.StatusNew))

	s.publish(ctx, events.Event{
		Type:       events.EventRequestReactivated,
		RequestID:  updated.ID,
		ActorID:    input.ActorID,
		FromStatus: fromStatus,
		ToStatus:   updated.Status,
		Payload: events.RequestReactivatedPayload{
			ReactivationCount: updated.ReactivationCount,
			Reason:            input.Reason,
			TimerReset:        input.ResetTimer,
		},
	})

	result := &updated
	if input.Reassign || !updated.Assigned() {
		result = s.tryAutoAssign(ctx, result, input.ActorID)
	}
	return result, nil
}

// Score recomputes the request's lead score and persists it when it changed.
// Scoring never fails on attribute content; missing attributes contribute
// their minimum weight.
func (s *LifecycleService) Score(ctx context.Context, requestID, actorID string) (int, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return 0, err
	}

	newScore := s.scorer.Score(req)
	if req.Score != nil && *req.Score == newScore {
		return newScore, nil
	}

	oldScore := req.Score
	updated := *req
	updated.Score = &newScore

	entry := &domain.AuditEntry{
		RequestID:  req.ID,
		ActorID:    actorID,
		ChangeType: domain.ChangeTypeScore,
		FromStatus: req.Status,
		ToStatus:   req.Status,
		Reason:     "score recomputed",
		CreatedAt:  s.Now(),
	}
	if err := s.requests.UpdateWithAudit(ctx, &updated, req.Version, entry); err != nil {
		return 0, s.mapWriteError(err, req.ID)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventRequestScored,
		RequestID: updated.ID,
		ActorID:   actorID,
		ToStatus:  updated.Status,
		Payload:   events.RequestScoredPayload{OldScore: oldScore, NewScore: newScore},
	})
	return newScore, nil
}

// UpdateAttributes replaces the request's attribute bag, recomputes the score,
// and refreshes the activity timestamp.
func (s *LifecycleService) UpdateAttributes(ctx context.Context, requestID string, attrs domain.RequestAttributes, actorID string) (*domain.Request, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	updated := *req
	updated.Attributes = attrs
	updated.LastActivityAt = now
	newScore := s.scorer.Score(&updated)
	updated.Score = &newScore

	entry := &domain.AuditEntry{
		RequestID:  req.ID,
		ActorID:    actorID,
		ChangeType: domain.ChangeTypeAttributes,
		FromStatus: req.Status,
		ToStatus:   req.Status,
		Reason:     "attributes updated",
		CreatedAt:  now,
	}
	if err := s.requests.UpdateWithAudit(ctx, &updated, req.Version, entry); err != nil {
		return nil, s.mapWriteError(err, req.ID)
	}

	if req.Score == nil || *req.Score != newScore {
		s.publish(ctx, events.Event{
			Type:      events.EventRequestScored,
			RequestID: updated.ID,
			ActorID:   actorID,
			ToStatus:  updated.Status,
			Payload:   events.RequestScoredPayload{OldScore: req.Score, NewScore: newScore},
		})
	}
	return &updated, nil
}

// Get fetches a request.
func (s *LifecycleService) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	return s.load(ctx, requestID)
}

// DefaultStrategy names the strategy used when callers pass none.
func (s *LifecycleService) DefaultStrategy() string {
	return s.defaultStrategy
}

// List returns requests matching the filter.
func (s *LifecycleService) List(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	requests, err := s.requests.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return requests, nil
}

// History returns the ordered audit trail for a request.
func (s *LifecycleService) History(ctx context.Context, requestID string) ([]domain.AuditEntry, error) {
	if _, err := s.load(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return entries, nil
}

// ListWorkers exposes the directory read model.
func (s *LifecycleService) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	workers, err := s.workers.ListWorkers(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return workers, nil
}

// tryAutoAssign runs the default strategy for an unassigned request entering
// an assignable state. Assignment failure never fails the transition that
// triggered it; it is logged and retried on the next entry.
func (s *LifecycleService) tryAutoAssign(ctx context.Context, req *domain.Request, actorID string) *domain.Request {
	strategy, ok := s.strategies.Get(s.defaultStrategy)
	if !ok {
		s.logger.Warn("default assignment strategy not registered", zap.String("strategy", s.defaultStrategy))
		return req
	}
	candidates, err := s.workers.ActiveWorkers(ctx)
	if err != nil {
		s.logger.Error("worker directory unavailable", zap.Error(err), zap.String("request_id", req.ID))
		return req
	}
	workerID, err := strategy.Assign(ctx, req, candidates)
	if err != nil {
		if errors.Is(err, assignment.ErrNoEligibleWorker) {
			s.logger.Info("request left unassigned",
				zap.String("request_id", req.ID), zap.String("strategy", strategy.Name()))
		} else {
			s.logger.Error("assignment strategy failed", zap.Error(err), zap.String("request_id", req.ID))
		}
		return req
	}

	updated := *req
	if err := s.applyAssignment(ctx, &updated, workerID, strategy.Name(), actorID); err != nil {
		s.logger.Warn("auto-assignment not applied", zap.Error(err), zap.String("request_id", req.ID))
		return req
	}
	return &updated
}

// applyAssignment writes the assignment decision under the same per-record
// serialization as every other mutation. req is updated in place on success.
func (s *LifecycleService) applyAssignment(ctx context.Context, req *domain.Request, workerID, strategyName, actorID string) error {
	now := s.Now()
	fromAssignee := req.AssigneeID
	expectedVersion := req.Version

	req.AssigneeID = &workerID
	req.AssignedAt = &now
	req.LastActivityAt = now

	entry := &domain.AuditEntry{
		RequestID:    req.ID,
		ActorID:      actorID,
		ChangeType:   domain.ChangeTypeAssignment,
		FromStatus:   req.Status,
		ToStatus:     req.Status,
		FromAssignee: fromAssignee,
		ToAssignee:   req.AssigneeID,
		Reason:       "strategy:" + strategyName,
		CreatedAt:    now,
	}
	if err := s.requests.UpdateWithAudit(ctx, req, expectedVersion, entry); err != nil {
		return s.mapWriteError(err, req.ID)
	}
	s.metrics.RecordAssignment(strategyName)

	s.publish(ctx, events.Event{
		Type:      events.EventRequestAssigned,
		RequestID: req.ID,
		ActorID:   actorID,
		ToStatus:  req.Status,
		Payload:   events.RequestAssignedPayload{AssigneeID: req.AssigneeID, Strategy: strategyName},
	})
	return nil
}

func (s *LifecycleService) load(ctx context.Context, requestID string) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return req, nil
}

func (s *LifecycleService) mapWriteError(err error, requestID string) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflictRetry(requestID)
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
	default:
		return apperrors.NewStoreUnavailable(err)
	}
}

func (s *LifecycleService) reactivationLimit() int {
	if s.lifecycle.ReactivationLimit > 0 {
		return s.lifecycle.ReactivationLimit
	}
	return 3
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// reactivationReason records the caller's reason together with the new count,
// so the cap is auditable from the trail alone.
func reactivationReason(reason string, count int) string {
	if reason == "" {
		reason = "reactivated"
	}
	return fmt.Sprintf("%s (reactivation %d of lifetime cap)", reason, count)
}

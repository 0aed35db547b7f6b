package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-engine/internal/domain"
)

// MemoryStore implements the repository interfaces in memory. It backs the
// service tests and keeps the same semantics as the postgres implementations:
// versioned updates, a transactional request+audit write, and worker load
// recomputed from live request counts.
type MemoryStore struct {
	mu           sync.Mutex
	requests     map[string]domain.Request
	audits       []domain.AuditEntry
	workers      []domain.Worker
	walkthroughs map[string]bool

	// BeforeUpdate runs before an UpdateWithAudit takes the store lock,
	// letting tests interleave a competing write.
	BeforeUpdate func(requestID string)
	failUpdate   map[string]error
	now          func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:     make(map[string]domain.Request),
		walkthroughs: make(map[string]bool),
		failUpdate:   make(map[string]error),
		now:          time.Now,
	}
}

// SetClock overrides the store's timestamp source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

// SeedWorker registers a worker in the directory.
func (s *MemoryStore) SeedWorker(w domain.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.workers = append(s.workers, w)
}

// SetWalkthrough records whether a walkthrough is scheduled for a request.
func (s *MemoryStore) SetWalkthrough(requestID string, scheduled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walkthroughs[requestID] = scheduled
}

// FailUpdateFor makes the next update of requestID fail with err.
func (s *MemoryStore) FailUpdateFor(requestID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate[requestID] = err
}

// Put seeds or overwrites a request directly, bumping its version.
func (s *MemoryStore) Put(req domain.Request) domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Version == 0 {
		req.Version = 1
	} else {
		req.Version++
	}
	s.requests[req.ID] = req
	return req
}

// Create inserts the request with its initial audit entry.
func (s *MemoryStore) Create(_ context.Context, req *domain.Request, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.NewString()
	req.Version = 1
	req.CreatedAt = s.now()
	s.requests[req.ID] = *req
	if entry != nil {
		entry.RequestID = req.ID
		s.appendAuditLocked(entry)
	}
	return nil
}

// GetByID returns a copy of the stored request.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := req
	return &out, nil
}

// UpdateWithAudit applies the update when the expected version still holds,
// writing the audit entry in the same critical section. Any failure leaves
// the stored request and the audit trail untouched.
func (s *MemoryStore) UpdateWithAudit(_ context.Context, req *domain.Request, expectedVersion int64, entry *domain.AuditEntry) error {
	if s.BeforeUpdate != nil {
		hook := s.BeforeUpdate
		s.BeforeUpdate = nil
		hook(req.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failUpdate[req.ID]; ok {
		delete(s.failUpdate, req.ID)
		return err
	}

	current, ok := s.requests[req.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	req.Version = expectedVersion + 1
	s.requests[req.ID] = *req
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

// ListExpirable returns open requests inactive since before cutoff.
func (s *MemoryStore) ListExpirable(_ context.Context, cutoff time.Time, limit int) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Request
	for _, req := range s.requests {
		if !statusIn(req.Status, domain.OpenStatuses()) {
			continue
		}
		if !req.LastActivityAt.Before(cutoff) {
			continue
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.Before(result[j].LastActivityAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListWithFilter returns requests matching the filter.
func (s *MemoryStore) ListWithFilter(_ context.Context, filter RequestFilter) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Request
	for _, req := range s.requests {
		if len(filter.Statuses) > 0 && !statusIn(req.Status, filter.Statuses) {
			continue
		}
		if filter.AssigneeID != nil && (req.AssigneeID == nil || *req.AssigneeID != *filter.AssigneeID) {
			continue
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})
	return result, nil
}

// ListByRequest returns the ordered audit history for a request.
func (s *MemoryStore) ListByRequest(_ context.Context, requestID string) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range s.audits {
		if entry.RequestID == requestID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// ActiveWorkers returns active workers with recomputed load.
func (s *MemoryStore) ActiveWorkers(_ context.Context) ([]domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Worker
	for _, w := range s.workers {
		if !w.Active {
			continue
		}
		w.CurrentLoad = s.loadLocked(w.ID)
		result = append(result, w)
	}
	return result, nil
}

// ListWorkers returns all workers with recomputed load.
func (s *MemoryStore) ListWorkers(_ context.Context) ([]domain.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		w.CurrentLoad = s.loadLocked(w.ID)
		result = append(result, w)
	}
	return result, nil
}

// HasScheduledWalkthrough answers the quoting precondition.
func (s *MemoryStore) HasScheduledWalkthrough(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walkthroughs[requestID], nil
}

func (s *MemoryStore) appendAuditLocked(entry *domain.AuditEntry) {
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.audits = append(s.audits, *entry)
}

func (s *MemoryStore) loadLocked(workerID string) int {
	load := 0
	for _, req := range s.requests {
		if req.AssigneeID != nil && *req.AssigneeID == workerID && statusIn(req.Status, domain.OpenStatuses()) {
			load++
		}
	}
	return load
}

func statusIn(status domain.RequestStatus, set []domain.RequestStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

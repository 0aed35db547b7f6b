package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/request-engine/internal/domain"
	"github.com/spec-kit/request-engine/internal/events"
	"github.com/spec-kit/request-engine/internal/repository"
	apperrors "github.com/spec-kit/request-engine/pkg/util"
)

// SweepReport summarizes one expiration sweep.
type SweepReport struct {
	Processed int `json:"processed"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
}

// RunExpirationSweep expires open requests whose last activity predates the
// inactivity threshold. The sweep is idempotent: a request expired by an
// earlier run (or a concurrent caller) is skipped without being treated as a
// fault. Per-record failures are logged and retried on the next tick; they
// never block the rest of the batch. Cancellation of ctx stops dispatching
// cleanly; unprocessed records are picked up next time.
func (s *LifecycleService) RunExpirationSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	threshold := s.lifecycle.ExpirationThreshold()
	cutoff := now.Add(-threshold)

	batch, err := s.requests.ListExpirable(ctx, cutoff, s.lifecycle.SweepBatchLimit)
	if err != nil {
		return SweepReport{}, apperrors.NewStoreUnavailable(err)
	}

	parallelism := s.lifecycle.SweepParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var (
		mu     sync.Mutex
		report SweepReport
	)
	jobs := make(chan domain.Request)
	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				expired, err := s.expireOne(ctx, req, now)
				mu.Lock()
				report.Processed++
				if err != nil {
					report.Failed++
				} else if expired {
					report.Expired++
				}
				mu.Unlock()
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, req := range batch {
		if ctx.Err() != nil {
			break dispatch
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- req:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	if dispatched < len(batch) {
		s.logger.Warn("sweep deadline reached; deferring remainder",
			zap.Int("remaining", len(batch)-dispatched))
	}

	s.metrics.RecordSweep(report.Expired, report.Failed)
	s.logger.Info("expiration sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("expired", report.Expired),
		zap.Int("failed", report.Failed))
	return report, nil
}

// expireOne transitions a single request to EXPIRED through the same
// serialized per-record path as interactive calls.
func (s *LifecycleService) expireOne(ctx context.Context, stale domain.Request, now time.Time) (bool, error) {
	req, err := s.requests.GetByID(ctx, stale.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// hard-deleted externally between listing and processing
			return false, nil
		}
		s.logger.Error("sweep load failed", zap.Error(err), zap.String("request_id", stale.ID))
		return false, err
	}

	if !domain.CanTransition(req.Status, domain.StatusExpired) {
		// already expired or archived by another actor; idempotent no-op
		return false, nil
	}

	fromStatus := req.Status
	updated := *req
	updated.Status = domain.StatusExpired
	updated.LastActivityAt = now

	entry := &domain.AuditEntry{
		RequestID:  req.ID,
		ActorID:    domain.ActorSystem,
		ChangeType: domain.ChangeTypeStatus,
		FromStatus: fromStatus,
		ToStatus:   domain.StatusExpired,
		Reason:     s.expirationReason(),
		CreatedAt:  now,
	}
	if err := s.requests.UpdateWithAudit(ctx, &updated, req.Version, entry); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// lost the race to a concurrent mutation; re-evaluated next tick
			s.logger.Info("sweep lost write race", zap.String("request_id", req.ID))
			return false, nil
		}
		s.logger.Error("sweep expiration failed", zap.Error(err), zap.String("request_id", req.ID))
		return false, err
	}
	s.metrics.RecordTransition(string(fromStatus), string(domain.StatusExpired))

	s.publish(ctx, events.Event{
		Type:       events.EventRequestExpired,
		RequestID:  updated.ID,
		ActorID:    domain.ActorSystem,
		FromStatus: fromStatus,
		ToStatus:   domain.StatusExpired,
		Payload:    events.RequestStatusChangedPayload{Reason: s.expirationReason()},
	})
	return true, nil
}

func (s *LifecycleService) expirationReason() string {
	days := s.lifecycle.ExpirationDays
	if days <= 0 {
		days = 14
	}
	return fmt.Sprintf("%d-day inactivity", days)
}

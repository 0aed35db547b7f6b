package assignment

import (
	"context"

	"github.com/spec-kit/request-engine/internal/domain"
)

const roundRobinCursorKey = "round_robin"

// RoundRobin rotates over the active worker list in stable sort order.
// The rotation turn is the only strategy-internal state in the engine; it
// comes from the CursorStore's atomic counter, mapped onto the candidate
// list by position so duplicate sort orders still take their turns.
type RoundRobin struct {
	cursors CursorStore
}

// NewRoundRobin builds the strategy over the given cursor store.
func NewRoundRobin(cursors CursorStore) *RoundRobin {
	return &RoundRobin{cursors: cursors}
}

func (s *RoundRobin) Name() string { return StrategyRoundRobin }

// Assign claims the next rotation turn and picks the candidate at that
// position, wrapping around. Inactive workers are filtered out before the
// turn is taken, so they never consume a slot.
func (s *RoundRobin) Assign(ctx context.Context, _ *domain.Request, workers []domain.Worker) (string, error) {
	candidates := activeWorkers(workers)
	if len(candidates) == 0 {
		return "", ErrNoEligibleWorker
	}

	turn, err := s.cursors.Next(ctx, roundRobinCursorKey)
	if err != nil {
		return "", err
	}
	return candidates[int((turn-1)%int64(len(candidates)))].ID, nil
}

package assignment

import (
	"context"

	"github.com/spec-kit/request-engine/internal/domain"
)

// WorkloadBalanced assigns to the active worker with the lowest current load.
// Ties break on the stable round-robin sort order.
type WorkloadBalanced struct{}

// NewWorkloadBalanced builds the strategy.
func NewWorkloadBalanced() *WorkloadBalanced { return &WorkloadBalanced{} }

func (s *WorkloadBalanced) Name() string { return StrategyWorkloadBalanced }

func (s *WorkloadBalanced) Assign(_ context.Context, _ *domain.Request, workers []domain.Worker) (string, error) {
	candidates := activeWorkers(workers)
	if len(candidates) == 0 {
		return "", ErrNoEligibleWorker
	}
	chosen := candidates[0]
	for _, w := range candidates[1:] {
		if w.CurrentLoad < chosen.CurrentLoad {
			chosen = w
		}
	}
	return chosen.ID, nil
}

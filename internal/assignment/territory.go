package assignment

import (
	"context"

	"github.com/spec-kit/request-engine/internal/domain"
)

// TerritoryBased restricts candidates to workers covering the request's city,
// balancing load among them. When no active worker covers the territory it
// falls back to workload balancing over the full active set instead of
// failing the assignment.
type TerritoryBased struct {
	fallback *WorkloadBalanced
}

// NewTerritoryBased builds the strategy.
func NewTerritoryBased() *TerritoryBased {
	return &TerritoryBased{fallback: NewWorkloadBalanced()}
}

func (s *TerritoryBased) Name() string { return StrategyTerritoryBased }

func (s *TerritoryBased) Assign(ctx context.Context, req *domain.Request, workers []domain.Worker) (string, error) {
	city := req.Attributes.City
	matched := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		if w.Active && city != "" && w.CoversTerritory(city) {
			matched = append(matched, w)
		}
	}
	if len(matched) == 0 {
		return s.fallback.Assign(ctx, req, workers)
	}
	return s.fallback.Assign(ctx, req, matched)
}

package assignment

import (
	"context"

	"github.com/spec-kit/request-engine/internal/domain"
)

// SkillBased scores candidates by proficiency in the request's product type
// and picks the highest. Ties break on the lowest current load, then on the
// stable sort order.
type SkillBased struct{}

// NewSkillBased builds the strategy.
func NewSkillBased() *SkillBased { return &SkillBased{} }

func (s *SkillBased) Name() string { return StrategySkillBased }

func (s *SkillBased) Assign(_ context.Context, req *domain.Request, workers []domain.Worker) (string, error) {
	candidates := activeWorkers(workers)
	if len(candidates) == 0 {
		return "", ErrNoEligibleWorker
	}
	chosen := candidates[0]
	best := chosen.Proficiency(req.Attributes.ProductType)
	for _, w := range candidates[1:] {
		prof := w.Proficiency(req.Attributes.ProductType)
		if prof > best || (prof == best && w.CurrentLoad < chosen.CurrentLoad) {
			chosen = w
			best = prof
		}
	}
	return chosen.ID, nil
}

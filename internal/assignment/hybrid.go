package assignment

import (
	"context"

	"github.com/spec-kit/request-engine/internal/domain"
)

// HybridWeights configures the relative weight of each sub-score.
type HybridWeights struct {
	Skill     float64
	Load      float64
	Territory float64
}

// DefaultHybridWeights weighs skill match highest.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Skill: 0.5, Load: 0.3, Territory: 0.2}
}

// Hybrid computes a weighted sum of normalized sub-scores: skill proficiency,
// inverse load, and territory match. Ties break on the lexicographically
// smallest worker id so repeated runs over the same snapshot are reproducible.
type Hybrid struct {
	weights HybridWeights
}

// NewHybrid builds the strategy with the given weights.
func NewHybrid(weights HybridWeights) *Hybrid {
	if weights.Skill == 0 && weights.Load == 0 && weights.Territory == 0 {
		weights = DefaultHybridWeights()
	}
	return &Hybrid{weights: weights}
}

func (s *Hybrid) Name() string { return StrategyHybrid }

func (s *Hybrid) Assign(_ context.Context, req *domain.Request, workers []domain.Worker) (string, error) {
	candidates := activeWorkers(workers)
	if len(candidates) == 0 {
		return "", ErrNoEligibleWorker
	}

	maxLoad := 0
	for _, w := range candidates {
		if w.CurrentLoad > maxLoad {
			maxLoad = w.CurrentLoad
		}
	}

	var chosen domain.Worker
	var best float64 = -1
	for _, w := range candidates {
		score := s.score(req, w, maxLoad)
		if score > best || (score == best && w.ID < chosen.ID) {
			chosen = w
			best = score
		}
	}
	return chosen.ID, nil
}

func (s *Hybrid) score(req *domain.Request, w domain.Worker, maxLoad int) float64 {
	skill := float64(w.Proficiency(req.Attributes.ProductType)) / 5.0
	load := 1.0
	if maxLoad > 0 {
		load = 1.0 - float64(w.CurrentLoad)/float64(maxLoad)
	}
	territory := 0.0
	if req.Attributes.City != "" && w.CoversTerritory(req.Attributes.City) {
		territory = 1.0
	}
	return s.weights.Skill*skill + s.weights.Load*load + s.weights.Territory*territory
}

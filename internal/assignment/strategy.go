package assignment

import (
	"context"
	"errors"
	"sort"

	"github.com/spec-kit/request-engine/internal/domain"
)

// Strategy names selectable by configuration or per call.
const (
	StrategyRoundRobin       = "round_robin"
	StrategyWorkloadBalanced = "workload_balanced"
	StrategySkillBased       = "skill_based"
	StrategyTerritoryBased   = "territory_based"
	StrategyHybrid           = "hybrid"
)

// ErrNoEligibleWorker is returned when a strategy finds no candidate.
// The caller leaves the request unassigned rather than failing the operation.
var ErrNoEligibleWorker = errors.New("no eligible worker")

// Strategy selects a worker for a request. Implementations never mutate the
// request or the worker slice; applying the decision is the caller's job.
type Strategy interface {
	Name() string
	Assign(ctx context.Context, req *domain.Request, workers []domain.Worker) (string, error)
}

// Registry resolves strategies by configured name at call time.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a registry over the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// Get resolves a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// activeWorkers returns the active subset in a total order: sort order first,
// worker id on ties. Duplicate sort orders are legal in the directory, so the
// id tie-break keeps the ordering stable for every strategy.
func activeWorkers(workers []domain.Worker) []domain.Worker {
	out := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

package assignment

import (
	"context"
	"testing"

	"github.com/spec-kit/request-engine/internal/domain"
)

func worker(id string, order int, opts ...func(*domain.Worker)) domain.Worker {
	w := domain.Worker{ID: id, Active: true, SortOrder: order}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func withLoad(load int) func(*domain.Worker) {
	return func(w *domain.Worker) { w.CurrentLoad = load }
}

func withSkill(product string, prof int) func(*domain.Worker) {
	return func(w *domain.Worker) {
		if w.Skills == nil {
			w.Skills = map[string]int{}
		}
		w.Skills[product] = prof
	}
}

func withTerritories(cities ...string) func(*domain.Worker) {
	return func(w *domain.Worker) { w.Territories = cities }
}

func inactive(w *domain.Worker) { w.Active = false }

func TestRoundRobinFairness(t *testing.T) {
	cases := []struct {
		name    string
		workers []domain.Worker
	}{
		{"distinct orders", []domain.Worker{
			worker("w-a", 1),
			worker("w-b", 2),
			worker("w-c", 3),
		}},
		// duplicate sort orders are legal in the directory; both holders
		// must still take their turns
		{"duplicate orders", []domain.Worker{
			worker("w-a", 1),
			worker("w-b", 1),
			worker("w-c", 2),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			rr := NewRoundRobin(NewMemoryCursorStore())
			req := &domain.Request{ID: "r-1"}

			const calls = 10
			counts := map[string]int{}
			for i := 0; i < calls; i++ {
				id, err := rr.Assign(ctx, req, tc.workers)
				if err != nil {
					t.Fatalf("assign %d: %v", i, err)
				}
				counts[id]++
			}

			floor := calls / len(tc.workers)
			ceil := floor
			if calls%len(tc.workers) != 0 {
				ceil++
			}
			for _, w := range tc.workers {
				if counts[w.ID] < floor || counts[w.ID] > ceil {
					t.Errorf("worker %s assigned %d times, want %d..%d", w.ID, counts[w.ID], floor, ceil)
				}
			}
		})
	}
}

func TestRoundRobinSharedCursorAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCursorStore()
	// two strategy instances over one store, as two engine processes would be
	instances := []*RoundRobin{NewRoundRobin(store), NewRoundRobin(store)}
	workers := []domain.Worker{
		worker("w-a", 1),
		worker("w-b", 2),
	}
	req := &domain.Request{ID: "r-1"}

	var got []string
	for i := 0; i < 4; i++ {
		id, err := instances[i%2].Assign(ctx, req, workers)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		got = append(got, id)
	}
	want := []string{"w-a", "w-b", "w-a", "w-b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation slot %d went to %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRoundRobinSkipsInactive(t *testing.T) {
	ctx := context.Background()
	rr := NewRoundRobin(NewMemoryCursorStore())
	workers := []domain.Worker{
		worker("w-a", 1),
		worker("w-b", 2, inactive),
		worker("w-c", 3),
	}
	req := &domain.Request{ID: "r-1"}

	seen := map[string]bool{}
	for i := 0; i < 6; i++ {
		id, err := rr.Assign(ctx, req, workers)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		if id == "w-b" {
			t.Fatal("inactive worker assigned")
		}
		seen[id] = true
	}
	if !seen["w-a"] || !seen["w-c"] {
		t.Errorf("rotation did not cover both active workers: %v", seen)
	}
}

func TestRoundRobinNoActiveWorkers(t *testing.T) {
	rr := NewRoundRobin(NewMemoryCursorStore())
	_, err := rr.Assign(context.Background(), &domain.Request{}, []domain.Worker{worker("w-a", 1, inactive)})
	if err != ErrNoEligibleWorker {
		t.Fatalf("expected ErrNoEligibleWorker, got %v", err)
	}
}

func TestWorkloadBalancedStaysWithinOne(t *testing.T) {
	ctx := context.Background()
	strategy := NewWorkloadBalanced()
	workers := []domain.Worker{
		worker("w-a", 1, withLoad(2)),
		worker("w-b", 2, withLoad(0)),
		worker("w-c", 3, withLoad(1)),
	}
	req := &domain.Request{ID: "r-1"}

	for i := 0; i < 20; i++ {
		id, err := strategy.Assign(ctx, req, workers)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		min := workers[0].CurrentLoad
		for _, w := range workers {
			if w.CurrentLoad < min {
				min = w.CurrentLoad
			}
		}
		for j := range workers {
			if workers[j].ID == id {
				if workers[j].CurrentLoad > min {
					t.Fatalf("assigned worker %s at load %d while minimum is %d", id, workers[j].CurrentLoad, min)
				}
				workers[j].CurrentLoad++
			}
		}
	}

	min, max := workers[0].CurrentLoad, workers[0].CurrentLoad
	for _, w := range workers {
		if w.CurrentLoad < min {
			min = w.CurrentLoad
		}
		if w.CurrentLoad > max {
			max = w.CurrentLoad
		}
	}
	if max-min > 1 {
		t.Errorf("load spread %d exceeds 1 after balancing", max-min)
	}
}

func TestWorkloadBalancedTieBreaksOnOrder(t *testing.T) {
	strategy := NewWorkloadBalanced()
	workers := []domain.Worker{
		worker("w-late", 5, withLoad(1)),
		worker("w-early", 2, withLoad(1)),
	}
	id, err := strategy.Assign(context.Background(), &domain.Request{}, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-early" {
		t.Errorf("expected the lower sort order to win a load tie, got %s", id)
	}
}

func TestSkillBasedPicksHighestProficiency(t *testing.T) {
	strategy := NewSkillBased()
	req := &domain.Request{Attributes: domain.RequestAttributes{ProductType: "kitchen"}}
	workers := []domain.Worker{
		worker("w-a", 1, withSkill("kitchen", 2)),
		worker("w-b", 2, withSkill("kitchen", 5)),
		worker("w-c", 3, withSkill("bathroom", 5)),
	}
	id, err := strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-b" {
		t.Errorf("expected w-b (proficiency 5), got %s", id)
	}
}

func TestSkillBasedTieBreaksOnLoad(t *testing.T) {
	strategy := NewSkillBased()
	req := &domain.Request{Attributes: domain.RequestAttributes{ProductType: "kitchen"}}
	workers := []domain.Worker{
		worker("w-busy", 1, withSkill("kitchen", 4), withLoad(3)),
		worker("w-free", 2, withSkill("kitchen", 4), withLoad(0)),
	}
	id, err := strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-free" {
		t.Errorf("expected the lower load to win a proficiency tie, got %s", id)
	}
}

func TestTerritoryBasedPrefersMatch(t *testing.T) {
	strategy := NewTerritoryBased()
	req := &domain.Request{Attributes: domain.RequestAttributes{City: "austin"}}
	workers := []domain.Worker{
		worker("w-remote", 1, withLoad(0), withTerritories("dallas")),
		worker("w-local", 2, withLoad(5), withTerritories("austin")),
	}
	id, err := strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-local" {
		t.Errorf("expected the territory match despite higher load, got %s", id)
	}
}

func TestTerritoryBasedFallsBackToWorkload(t *testing.T) {
	strategy := NewTerritoryBased()
	req := &domain.Request{Attributes: domain.RequestAttributes{City: "el-paso"}}
	workers := []domain.Worker{
		worker("w-a", 1, withLoad(3), withTerritories("dallas")),
		worker("w-b", 2, withLoad(1), withTerritories("austin")),
	}
	id, err := strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if id != "w-b" {
		t.Errorf("expected workload fallback over the full active set, got %s", id)
	}
}

func TestHybridWeighsSubScores(t *testing.T) {
	strategy := NewHybrid(HybridWeights{Skill: 1.0, Load: 0.0, Territory: 0.0})
	req := &domain.Request{Attributes: domain.RequestAttributes{ProductType: "kitchen", City: "austin"}}
	workers := []domain.Worker{
		worker("w-skilled", 1, withSkill("kitchen", 5), withLoad(9)),
		worker("w-local", 2, withSkill("kitchen", 1), withLoad(0), withTerritories("austin")),
	}
	id, err := strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-skilled" {
		t.Errorf("skill-only weights should pick w-skilled, got %s", id)
	}

	strategy = NewHybrid(HybridWeights{Skill: 0.0, Load: 0.0, Territory: 1.0})
	id, err = strategy.Assign(context.Background(), req, workers)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != "w-local" {
		t.Errorf("territory-only weights should pick w-local, got %s", id)
	}
}

func TestHybridDeterministicTieBreak(t *testing.T) {
	strategy := NewHybrid(DefaultHybridWeights())
	req := &domain.Request{Attributes: domain.RequestAttributes{ProductType: "kitchen"}}
	workers := []domain.Worker{
		worker("w-b", 2, withSkill("kitchen", 3)),
		worker("w-a", 1, withSkill("kitchen", 3)),
	}
	for i := 0; i < 5; i++ {
		id, err := strategy.Assign(context.Background(), req, workers)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		if id != "w-a" {
			t.Fatalf("tie must break to the smallest worker id, got %s", id)
		}
	}
}

func TestStrategiesDoNotMutateInputs(t *testing.T) {
	workers := []domain.Worker{
		worker("w-b", 2, withLoad(1)),
		worker("w-a", 1, withLoad(2)),
	}
	req := &domain.Request{Attributes: domain.RequestAttributes{ProductType: "kitchen", City: "austin"}}

	registry := NewRegistry(
		NewRoundRobin(NewMemoryCursorStore()),
		NewWorkloadBalanced(),
		NewSkillBased(),
		NewTerritoryBased(),
		NewHybrid(DefaultHybridWeights()),
	)
	for _, name := range registry.Names() {
		strategy, _ := registry.Get(name)
		if _, err := strategy.Assign(context.Background(), req, workers); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if workers[0].ID != "w-b" || workers[1].ID != "w-a" {
			t.Fatalf("%s reordered the caller's worker slice", name)
		}
		if req.AssigneeID != nil {
			t.Fatalf("%s mutated the request", name)
		}
	}
}

package scoring

import "github.com/spec-kit/request-engine/internal/domain"

// Weights splits the 0-100 score across the contributing factors.
type Weights struct {
	Budget       int
	Source       int
	Completeness int
}

// DefaultWeights follows the historical lead-quality split.
func DefaultWeights() Weights {
	return Weights{Budget: 40, Source: 30, Completeness: 30}
}

// sourceQuality ranks lead sources from weakest to strongest signal.
// Unknown sources contribute the minimum.
var sourceQuality = map[string]float64{
	"purchased_list": 0.25,
	"advertisement":  0.5,
	"website":        0.75,
	"showroom":       0.75,
	"referral":       1.0,
	"repeat":         1.0,
}

var budgetFraction = map[domain.BudgetTier]float64{
	domain.BudgetEconomy:  0.25,
	domain.BudgetStandard: 0.5,
	domain.BudgetPremium:  0.75,
	domain.BudgetLuxury:   1.0,
}

// LeadScorer computes a 0-100 quality score from request attributes.
// The score is monotonic in each factor: a strictly better budget tier,
// source, or completeness never lowers it. Missing attributes contribute
// their minimum weight; scoring never fails.
type LeadScorer struct {
	weights Weights
}

// NewLeadScorer builds a scorer with the given weights.
func NewLeadScorer(weights Weights) *LeadScorer {
	if weights.Budget+weights.Source+weights.Completeness == 0 {
		weights = DefaultWeights()
	}
	return &LeadScorer{weights: weights}
}

// Score computes the request's lead score.
func (s *LeadScorer) Score(req *domain.Request) int {
	attrs := req.Attributes

	budget := budgetFraction[attrs.BudgetTier]
	source := sourceQuality[attrs.LeadSource]

	fields := 0
	present := 0
	for _, has := range []bool{
		attrs.ProductType != "",
		attrs.City != "",
		attrs.HasFinancing,
		attrs.HasPermits,
		attrs.HasTimeline,
	} {
		fields++
		if has {
			present++
		}
	}
	completeness := float64(present) / float64(fields)

	score := budget*float64(s.weights.Budget) +
		source*float64(s.weights.Source) +
		completeness*float64(s.weights.Completeness)

	total := s.weights.Budget + s.weights.Source + s.weights.Completeness
	normalized := int(score*100/float64(total) + 0.5)
	if normalized < 0 {
		return 0
	}
	if normalized > 100 {
		return 100
	}
	return normalized
}

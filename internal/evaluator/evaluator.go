// Package evaluator scores verified profiles. Scoring is pure and
// deterministic: the same profile always yields the same score.
package evaluator

import (
	"math"
	"time"

	"patron/internal/config"
	"patron/internal/models"
)

const (
	maxSubScore = 100

	// Window for the "recently created programs" activity tier
	creationWindow = 30 * 24 * time.Hour
)

// Params are the scoring inputs that come from configuration
type Params struct {
	Weights config.WeightsConfig
	// Programs above this many bytes count as substantial
	MinCodeSize int
}

// Evaluator maps a profile to four bounded sub-scores and a weighted total
type Evaluator struct {
	params Params
}

// New returns an evaluator; params.Weights must already be validated
func New(params Params) *Evaluator {
	return &Evaluator{params: params}
}

// Evaluate scores the profile
func (e *Evaluator) Evaluate(p models.Profile) models.Score {
	s := models.Score{
		Novelty:  novelty(p),
		Activity: activity(p),
		Quality:  quality(p, e.params.MinCodeSize),
		Impact:   impact(p),
	}

	w := e.params.Weights
	weighted := float64(s.Novelty)*w.Novelty +
		float64(s.Activity)*w.Activity +
		float64(s.Quality)*w.Quality +
		float64(s.Impact)*w.Impact
	s.Total = clamp(int(math.Round(weighted)), 0, maxSubScore)
	s.Summary = summarize(p, s.Total)

	return s
}

// novelty rewards building several programs, large programs, and a spread of
// sizes that suggests a system rather than a single contract
func novelty(p models.Profile) int {
	score := 0
	count := p.ProgramCount()

	score += tier(count, []step{{5, 40}, {3, 30}, {2, 20}, {1, 10}}, atLeast)
	score += tier(p.MaxCodeSize(), []step{{10000, 35}, {5000, 25}, {2000, 15}, {1000, 5}}, above)

	if count >= 2 {
		spread := p.MaxCodeSize() - p.MinCodeSize()
		score += tier(spread, []step{{3000, 25}, {1000, 15}}, above)
	}
	return clamp(score, 0, maxSubScore)
}

func activity(p models.Profile) int {
	score := 0

	score += tier(int(min(p.TxCount, math.MaxInt32)), []step{{100, 30}, {50, 25}, {20, 20}, {10, 15}, {5, 10}}, above)
	if p.RecentActivity {
		score += 25
	}
	score += tier(p.Interactors, []step{{50, 30}, {20, 25}, {10, 20}, {5, 15}, {0, 10}}, above)
	score += tier(p.CreatedWithin(creationWindow), []step{{3, 15}, {1, 10}}, atLeast)

	return clamp(score, 0, maxSubScore)
}

func quality(p models.Profile, minCodeSize int) int {
	score := 0

	score += tier(p.VerifiedCount(), []step{{3, 40}, {2, 30}, {1, 20}}, atLeast)
	score += tier(p.CountLargerThan(minCodeSize), []step{{3, 30}, {2, 20}, {1, 10}}, atLeast)
	score += tier(p.MaxCodeSize(), []step{{8000, 20}, {4000, 15}, {2000, 10}}, above)
	if p.TxCount > 50 {
		score += 10
	}
	return clamp(score, 0, maxSubScore)
}

func impact(p models.Profile) int {
	score := 0

	score += tier(p.Interactors, []step{{100, 40}, {50, 35}, {20, 25}, {10, 20}, {5, 15}, {0, 10}}, above)
	score += tier(p.ProgramCount(), []step{{5, 30}, {3, 20}, {2, 15}, {1, 10}}, atLeast)

	switch {
	case p.RecentActivity && p.TxCount > 20:
		score += 20
	case p.RecentActivity:
		score += 10
	}
	if p.TxCount > 200 {
		score += 10
	}
	return clamp(score, 0, maxSubScore)
}

// step awards points once a value passes its threshold
type step struct {
	threshold int
	points    int
}

type comparison func(value, threshold int) bool

func atLeast(value, threshold int) bool { return value >= threshold }
func above(value, threshold int) bool   { return value > threshold }

// tier returns the points of the first step the value passes. Steps are
// ordered from the highest threshold down.
func tier(value int, steps []step, passes comparison) int {
	for _, s := range steps {
		if passes(value, s.threshold) {
			return s.points
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

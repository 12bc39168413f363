// Package scoring turns weighted category ratings into a bounded score and tier.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/nurture/internal/domain/model"
)

// Score bounds and tier thresholds (exclusive upper bounds).
const (
	MinScore = 0
	MaxScore = 50

	foundationsBelow = 16
	pilotReadyBelow  = 31
	scalePathBelow   = 41

	defaultCategoryWeight = 1.0
)

// Tier is a readiness band derived from the score.
type Tier string

// Tiers in ascending order.
const (
	TierFoundations  Tier = "Foundations"
	TierPilotReady   Tier = "Pilot Ready"
	TierScalePath    Tier = "Scale Path"
	TierAcceleration Tier = "Acceleration"
)

// DefaultWeights is the stock category weighting used when config sets none.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"strategy":    1.5,
		"leadership":  1.3,
		"measurement": 1.2,
		"data":        1.2,
		"operations":  1.0,
		"technology":  1.0,
		"culture":     1.0,
	}
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights sets per-category weights and the weight used for unknown
// categories. Non-positive weights are ignored. Keys match case-insensitively.
func WithWeights(weights map[string]float64, defaultWeight float64) Option {
	return func(s *Scorer) {
		s.weights = make(map[string]float64, len(weights))
		for category, w := range weights {
			if w > 0 {
				s.weights[strings.ToLower(strings.TrimSpace(category))] = w
			}
		}
		if defaultWeight > 0 {
			s.defaultWeight = defaultWeight
		}
	}
}

// Result is the outcome of scoring one set of ratings.
type Result struct {
	Score           int
	Tier            Tier
	WeightedAverage float64
}

// Scorer applies the static weights. It is read-only after construction and
// safe for concurrent use.
type Scorer struct {
	weights       map[string]float64
	defaultWeight float64
}

// NewScorer creates a scorer with DefaultWeights unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{defaultWeight: defaultCategoryWeight}
	WithWeights(DefaultWeights(), 0)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weight returns the weight applied to category.
func (s *Scorer) Weight(category string) float64 {
	if w, ok := s.weights[strings.ToLower(strings.TrimSpace(category))]; ok {
		return w
	}
	return s.defaultWeight
}

// Score computes the weighted average over the provided categories only.
// An empty rating set scores 0.
func (s *Scorer) Score(ratings model.Ratings) Result {
	var sum, weightSum float64
	for _, r := range ratings {
		w := s.Weight(r.Category)
		sum += float64(r.Value) * w
		weightSum += w
	}

	var avg float64
	if weightSum > 0 {
		avg = sum / weightSum
	}

	score := int(math.Round(avg * 10))
	score = max(MinScore, min(MaxScore, score))

	return Result{
		Score:           score,
		Tier:            TierFor(score),
		WeightedAverage: math.Round(avg*100) / 100,
	}
}

// TierFor maps a score onto its tier. It is monotonic in score.
func TierFor(score int) Tier {
	switch {
	case score < foundationsBelow:
		return TierFoundations
	case score < pilotReadyBelow:
		return TierPilotReady
	case score < scalePathBelow:
		return TierScalePath
	default:
		return TierAcceleration
	}
}

var roadmaps = map[Tier][]string{ //nolint:gochecknoglobals // static content table
	TierFoundations: {
		"Name one executive owner and one business outcome to move this quarter",
		"Inventory the data you already collect and where it lives",
		"Run a two-week discovery sprint on a single manual workflow",
	},
	TierPilotReady: {
		"Pick one pilot with a measurable baseline and a 90-day horizon",
		"Stand up a lightweight governance checklist before the pilot ships",
		"Define success metrics with finance before any build starts",
	},
	TierScalePath: {
		"Turn the winning pilot into a repeatable delivery playbook",
		"Fund a shared data platform instead of per-project pipelines",
		"Add quarterly portfolio reviews that retire low-yield initiatives",
	},
	TierAcceleration: {
		"Embed AI outcomes in every business unit's operating plan",
		"Build an internal enablement program to multiply capability",
		"Publish external proof points to compound market advantage",
	},
}

// Roadmap returns the recommended next steps for tier.
func Roadmap(tier Tier) []string {
	steps := roadmaps[tier]
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

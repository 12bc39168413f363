package loadtest

import (
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/scoring"
	"github.com/okian/nurture/internal/domain/sequence"
)

var (
	investmentLevels = []string{"", "under $5k", "$5k-$25k", "$25k-$50k", "$50K+", "$100k+"}                          //nolint:gochecknoglobals // generator table
	focuses          = []string{"", "business growth", "ministry", "investment", "organizational change", "personal"} //nolint:gochecknoglobals // generator table
	openness         = []model.Openness{"", model.OpennessLow, model.OpennessModerate, model.OpennessHigh}            //nolint:gochecknoglobals // generator table
)

// generator produces assessments with a spread of readiness profiles.
type generator struct {
	rng        *rand.Rand
	scorer     *scoring.Scorer
	categories []string
	domain     string
}

func newGenerator(cfg *Config) *generator {
	weights := cfg.Weights
	if len(weights) == 0 {
		weights = scoring.DefaultWeights()
	}
	categories := make([]string, 0, len(weights))
	for c := range weights {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &generator{
		rng:        rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		scorer:     scoring.NewScorer(scoring.WithWeights(weights, cfg.DefaultWeight)),
		categories: categories,
		domain:     cfg.Domain,
	}
}

// generate returns n assessments with unique addresses.
func (g *generator) generate(n int) []Assessment {
	out := make([]Assessment, n)
	for i := range out {
		out[i] = g.one()
	}
	return out
}

func (g *generator) one() Assessment {
	id := uuid.New().String()
	a := Assessment{
		Email:             "load-" + id + "@" + g.domain,
		Name:              "Load " + id[:8],
		Source:            "loadtest",
		Answers:           g.answers(),
		InvestmentLevel:   investmentLevels[g.rng.IntN(len(investmentLevels))],
		PrimaryFocus:      focuses[g.rng.IntN(len(focuses))],
		SpiritualOpenness: openness[g.rng.IntN(len(openness))],
	}
	res := g.scorer.Score(a.Answers)
	a.Expected = Expectation{
		Score: res.Score,
		Tier:  string(res.Tier),
		Sequence: sequence.Classify(model.Profile{
			InvestmentLevel:   a.InvestmentLevel,
			PrimaryFocus:      a.PrimaryFocus,
			SpiritualOpenness: a.SpiritualOpenness,
		}),
	}
	return a
}

// answers rates a random non-empty subset of categories. A per-lead bias
// spreads results across all tiers.
func (g *generator) answers() model.Ratings {
	bias := g.rng.IntN(5) + 1
	out := make(model.Ratings, 0, len(g.categories))
	for _, c := range g.categories {
		if len(out) > 0 && g.rng.IntN(4) == 0 {
			continue
		}
		v := bias + g.rng.IntN(3) - 1
		out = append(out, model.Rating{Category: c, Value: max(1, min(5, v))})
	}
	return out
}

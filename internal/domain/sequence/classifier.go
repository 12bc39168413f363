// Package sequence assigns leads to nurture sequences and describes each
// sequence's ordered, time-delayed steps.
package sequence

import (
	"strings"

	"github.com/okian/nurture/internal/domain/model"
)

var (
	// Matched against the normalised investment level (lowercase, no "$",
	// spaces or commas), so "$50K+" and "50k +" both hit "50k+".
	highValueMarkers = []string{"50k+", "100k", "250k", "500k", "1m+"} //nolint:gochecknoglobals // static rule table
	investorMarkers  = []string{"25k-50k"}                             //nolint:gochecknoglobals // static rule table
)

// Classify maps lead attributes to a sequence. Rules are evaluated in order
// and the first match wins:
//
//  1. high-value investment level
//  2. ministry focus or high spiritual openness
//  3. investment focus or the 25k-50k investment band
//  4. business or organizational focus
//  5. general
func Classify(p model.Profile) model.SequenceID {
	level := normalizeLevel(p.InvestmentLevel)
	focus := strings.ToLower(p.PrimaryFocus)

	switch {
	case containsAny(level, highValueMarkers):
		return model.SequenceHighValue
	case strings.Contains(focus, "ministry") ||
		p.SpiritualOpenness.Normalize() == model.OpennessHigh:
		return model.SequenceMinistryFocused
	case strings.Contains(focus, "investment") || containsAny(level, investorMarkers):
		return model.SequenceInvestorProspect
	case strings.Contains(focus, "business") || strings.Contains(focus, "organizational"):
		return model.SequenceBusinessStrategic
	default:
		return model.SequenceGeneral
	}
}

func normalizeLevel(s string) string {
	return strings.NewReplacer("$", "", " ", "", ",", "").Replace(strings.ToLower(s))
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

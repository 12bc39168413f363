// Package gaps picks the weakest assessment categories to highlight.
package gaps

import (
	"fmt"
	"slices"

	"github.com/okian/nurture/internal/domain/model"
)

// DefaultCount is the number of gaps returned when n is not positive.
const DefaultCount = 3

// Extract returns up to n "category: rating/5" strings, lowest rating first.
// Equal ratings keep their submission order.
func Extract(ratings model.Ratings, n int) []string {
	if n <= 0 {
		n = DefaultCount
	}
	sorted := slices.Clone(ratings)
	slices.SortStableFunc(sorted, func(a, b model.Rating) int {
		return a.Value - b.Value
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = fmt.Sprintf("%s: %d/5", r.Category, r.Value)
	}
	return out
}

package scoring

import (
	"sort"

	"github.com/spigell/fitcheck/internal/fit"
)

// DefaultMaxGaps bounds how many gaps are handed to the generators.
const DefaultMaxGaps = 5

// Prioritize orders gaps Must first, then by importance descending, keeping
// the input order for ties, and returns at most maxCount of them. A negative
// maxCount keeps all gaps.
func Prioritize(gaps []fit.Gap, maxCount int) []fit.Gap {
	sorted := make([]fit.Gap, len(gaps))
	copy(sorted, gaps)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Requirement, sorted[j].Requirement
		if a.Category != b.Category {
			return a.Category == fit.Must
		}
		return a.Importance > b.Importance
	})

	if maxCount >= 0 && len(sorted) > maxCount {
		sorted = sorted[:maxCount]
	}

	return sorted
}

package scoring

import (
	"fmt"
	"strings"
)

// SummaryInput carries the counts the summary template needs.
type SummaryInput struct {
	Total        int
	MustGaps     int
	WantGaps     int
	WantRequired int
}

// Level names the band of a total score.
func Level(total int) string {
	switch {
	case total >= 80:
		return "very high"
	case total >= 60:
		return "high"
	case total >= 40:
		return "moderate"
	default:
		return "low"
	}
}

// Summarize builds the deterministic summary: level, Must status, Want status
// when Want requirements exist, and a recommendation when one applies.
func Summarize(in SummaryInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall fit is %s (%d/100).", Level(in.Total), in.Total)

	switch in.MustGaps {
	case 0:
		b.WriteString(" All Must requirements satisfied.")
	case 1:
		b.WriteString(" 1 Must requirement unmet.")
	default:
		fmt.Fprintf(&b, " %d Must requirements unmet.", in.MustGaps)
	}

	if in.WantRequired > 0 {
		if in.WantGaps == 0 {
			b.WriteString(" All Want requirements also satisfied.")
		} else {
			fmt.Fprintf(&b, " %d of %d Want requirements satisfied.", in.WantRequired-in.WantGaps, in.WantRequired)
		}
	}

	switch {
	case in.MustGaps > 0:
		b.WriteString(" Prioritize closing the Must gaps first.")
	case in.Total < 80:
		b.WriteString(" Strengthening Want requirements would raise the fit further.")
	}

	return b.String()
}

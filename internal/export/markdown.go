package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spigell/fitcheck/internal/pipeline"
	"github.com/spigell/fitcheck/internal/scoring"
)

// WriteMarkdown renders a human readable report.
func WriteMarkdown(w io.Writer, res pipeline.AnalysisResult) error {
	b := bufio.NewWriter(w)

	fmt.Fprintf(b, "# Fit report: %d/100 (%s)\n\n", res.Score.Total, scoring.Level(res.Score.Total))
	fmt.Fprintf(b, "Must: %d/100 · Want: %d/100\n\n", res.Score.Must, res.Score.Want)
	fmt.Fprintf(b, "%s\n", res.Score.Summary)

	if len(res.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, warning := range res.Warnings {
			fmt.Fprintf(b, "- %s\n", warning)
		}
	}

	b.WriteString("\n## Matched requirements\n\n")
	if len(res.Score.Matched) == 0 {
		b.WriteString("None.\n")
	} else {
		b.WriteString("| ID | Category | Requirement | Confidence | Evidence |\n|---|---|---|---|---|\n")
		for _, m := range res.Score.Matched {
			fmt.Fprintf(b, "| %s | %s | %s | %s (%.2f) | %s |\n",
				m.Requirement.ID, m.Requirement.Category, cell(m.Requirement.Description),
				m.Evidence.Level(), m.Evidence.Confidence, cell(joinQuotes(m.Evidence)))
		}
	}

	b.WriteString("\n## Gaps\n\n")
	if len(res.PrioritizedGaps) == 0 {
		b.WriteString("None.\n")
	} else {
		b.WriteString("| ID | Category | Importance | Requirement | Reason |\n|---|---|---|---|---|\n")
		for _, g := range res.PrioritizedGaps {
			fmt.Fprintf(b, "| %s | %s | %d | %s | %s |\n",
				g.Requirement.ID, g.Requirement.Category, g.Requirement.Importance,
				cell(g.Requirement.Description), cell(g.Evidence.Reason))
		}
	}

	if imp := res.Improvements; imp != nil {
		b.WriteString("\n## Improvements\n\n")
		if imp.OverallStrategy != "" {
			fmt.Fprintf(b, "%s\n\n", imp.OverallStrategy)
		}
		for _, e := range imp.ResumeEdits {
			fmt.Fprintf(b, "- **%s** (%s): %s", e.TargetGap, e.EditType, e.Template)
			if e.Example != "" {
				fmt.Fprintf(b, " Example: %s", e.Example)
			}
			b.WriteString("\n")
		}
		for _, a := range imp.ActionItems {
			fmt.Fprintf(b, "- [%s] %s (impact: %s)\n", a.Priority, a.Action, a.EstimatedImpact)
		}
	}

	if len(res.InterviewQA) > 0 {
		b.WriteString("\n## Interview questions\n")
		for i, qa := range res.InterviewQA {
			fmt.Fprintf(b, "\n%d. %s\n", i+1, qa.Question)
			for _, point := range qa.AnswerOutline {
				fmt.Fprintf(b, "   - %s\n", point)
			}
		}
	}

	if email := res.Email; email != nil {
		fmt.Fprintf(b, "\n## Application e-mail\n\n**Subject:** %s\n\n%s\n", email.Subject, email.Body)
		if len(email.Tips) > 0 {
			b.WriteString("\nBefore sending:\n")
			for _, tip := range email.Tips {
				fmt.Fprintf(b, "- %s\n", tip)
			}
		}
	}

	if q := res.Quality; q != nil {
		fmt.Fprintf(b, "\n## Self-review\n\nQuality: %.0f/100\n", q.OverallScore)
		for _, c := range q.CriterionScores {
			fmt.Fprintf(b, "- %s: %.0f\n", c.Criterion, c.Score)
		}
	}
	if j := res.Judge; j != nil {
		fmt.Fprintf(b, "\nJudge: convincing %.0f, grounding %.0f, no exaggeration %.0f\n",
			j.Scores.Convincing, j.Scores.Grounding, j.Scores.NoExaggeration)
	}

	fmt.Fprintf(b, "\n---\nRun %s · model %s · embeddings %s\n", res.Meta.RunID, res.Meta.Model, res.Meta.EmbeddingProvider)
	return b.Flush()
}

// cell keeps a value on one table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

package generate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
	"github.com/spigell/fitcheck/internal/scoring"
	"github.com/spigell/fitcheck/internal/textmatch"
)

const (
	improvementsSystem  = "You are a career advisor who suggests honest résumé improvements. Answer with strict JSON."
	improvementExcerpt  = 800
	quoteWindow         = 100
	improvementsMatched = 3
)

// Improvements suggests résumé edits and action items for the gaps.
func (s *Service) Improvements(ctx context.Context, in Context) (fit.Improvements, error) {
	gaps := in.Gaps
	if len(gaps) > scoring.DefaultMaxGaps {
		gaps = gaps[:scoring.DefaultMaxGaps]
	}

	prompt := ai.Render(improvementsPrompt, map[string]string{
		"JOB_TEXT":    focusJob(in.JobText, gaps, improvementExcerpt),
		"RESUME_TEXT": focusResume(in.ResumeText, gaps, improvementExcerpt),
		"MATCHED":     formatMatched(in.Matched, improvementsMatched, false),
		"GAPS":        formatGaps(gaps, len(gaps), true),
	})

	return run(ctx, s, "improvements", ai.Request{
		System:      improvementsSystem,
		Prompt:      prompt,
		Temperature: ai.Temperature(0.2),
	}, improvementsSchema, decodeImprovements, func() fit.Improvements {
		return FallbackImprovements(gaps)
	})
}

func decodeImprovements(doc gjson.Result) (fit.Improvements, error) {
	out := fit.Improvements{
		ResumeEdits:     []fit.ResumeEdit{},
		ActionItems:     []fit.ActionItem{},
		OverallStrategy: llmjson.Text(doc.Get("overall_strategy")),
	}

	doc.Get("resume_edits").ForEach(func(_, e gjson.Result) bool {
		template := llmjson.Text(e.Get("template"))
		if template == "" {
			return true
		}
		out.ResumeEdits = append(out.ResumeEdits, fit.ResumeEdit{
			TargetGap: llmjson.Text(e.Get("target_gap")),
			EditType:  normalizeEditType(llmjson.Text(e.Get("edit_type"))),
			Template:  template,
			Example:   llmjson.Text(e.Get("example")),
		})
		return true
	})

	doc.Get("action_items").ForEach(func(_, a gjson.Result) bool {
		action := llmjson.Text(a.Get("action"))
		if action == "" {
			return true
		}
		out.ActionItems = append(out.ActionItems, fit.ActionItem{
			Priority:        normalizePriority(llmjson.Text(a.Get("priority"))),
			Action:          action,
			Rationale:       llmjson.Text(a.Get("rationale")),
			EstimatedImpact: normalizeImpact(llmjson.Text(a.Get("estimated_impact"))),
		})
		return true
	})

	if len(out.ResumeEdits) == 0 && len(out.ActionItems) == 0 && out.OverallStrategy == "" {
		return fit.Improvements{}, errEmptyResult
	}
	return out, nil
}

func normalizeEditType(s string) fit.EditType {
	switch fit.EditType(strings.ToLower(s)) {
	case fit.EditEmphasize:
		return fit.EditEmphasize
	case fit.EditRewrite:
		return fit.EditRewrite
	default:
		return fit.EditAdd
	}
}

func normalizePriority(s string) string {
	switch p := strings.ToUpper(s); p {
	case "A", "B", "C":
		return p
	default:
		return "C"
	}
}

func normalizeImpact(s string) string {
	switch strings.ToLower(s) {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

// FallbackImprovements builds one edit and one action item per gap.
func FallbackImprovements(gaps []fit.Gap) fit.Improvements {
	if len(gaps) > scoring.DefaultMaxGaps {
		gaps = gaps[:scoring.DefaultMaxGaps]
	}

	out := fit.Improvements{
		ResumeEdits: make([]fit.ResumeEdit, 0, len(gaps)),
		ActionItems: make([]fit.ActionItem, 0, len(gaps)),
	}

	mustGaps := 0
	for i, g := range gaps {
		req := g.Requirement
		out.ResumeEdits = append(out.ResumeEdits, fit.ResumeEdit{
			TargetGap: req.ID,
			EditType:  fit.EditAdd,
			Template:  fmt.Sprintf("[Experience with %s]", req.Description),
			Example:   fmt.Sprintf("Describe projects or study related to %s.", req.Description),
		})

		item := fit.ActionItem{
			Action: fmt.Sprintf("Acquire skills in %s", req.Description),
		}
		switch {
		case req.Category == fit.Must:
			mustGaps++
			item.Priority = "A"
			item.EstimatedImpact = "High"
			item.Rationale = "This is a required qualification."
		case i < 2:
			item.Priority = "B"
			item.EstimatedImpact = "Medium"
			item.Rationale = "This is a preferred qualification."
		default:
			item.Priority = "C"
			item.EstimatedImpact = "Medium"
			item.Rationale = "This is a preferred qualification."
		}
		out.ActionItems = append(out.ActionItems, item)
	}

	if mustGaps > 0 {
		out.OverallStrategy = fmt.Sprintf("First close the %d Must gap(s), then work on the preferred requirements.", mustGaps)
	} else {
		out.OverallStrategy = "Strengthening Want requirements will make the application more competitive."
	}
	return out
}

// focusJob keeps the parts of the posting around the gaps' source quotes.
func focusJob(job string, gaps []fit.Gap, limit int) string {
	runes := []rune(job)
	var parts []string
	for _, g := range gaps {
		quote := strings.TrimSpace(g.Requirement.SourceQuote)
		if quote == "" {
			continue
		}
		idx := strings.Index(job, quote)
		if idx < 0 {
			continue
		}
		at := utf8.RuneCountInString(job[:idx])
		start := at - quoteWindow
		end := at + utf8.RuneCountInString(quote) + quoteWindow
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	if len(parts) == 0 {
		return cut(job, limit)
	}
	return cut(strings.Join(parts, "\n...\n"), limit)
}

// focusResume keeps résumé lines that mention words of the gap descriptions.
func focusResume(resume string, gaps []fit.Gap, limit int) string {
	var words []string
	for _, g := range gaps {
		words = append(words, textmatch.Tokens(strings.ToLower(g.Requirement.Description))...)
	}

	var lines []string
	for _, line := range strings.Split(resume, "\n") {
		lower := strings.ToLower(line)
		for _, w := range words {
			if strings.Contains(lower, w) {
				lines = append(lines, strings.TrimSpace(line))
				break
			}
		}
	}
	if len(lines) == 0 {
		return cut(resume, limit)
	}
	return cut(strings.Join(lines, "\n"), limit)
}

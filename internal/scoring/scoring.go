// Package scoring turns requirement evidence into Must, Want and total fit
// scores, a rule-based summary and a prioritized gap list.
package scoring

import (
	"math"

	"github.com/spigell/fitcheck/internal/fit"
)

const (
	mustShare = 0.7
	wantShare = 0.3
)

// Engine scores requirements against their evidence.
type Engine struct {
	keywords Keywords
}

// New returns an engine using the given emphasis vocabulary. A nil table
// falls back to DefaultKeywords.
func New(keywords Keywords) *Engine {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	return &Engine{keywords: keywords}
}

// Points maps a confidence to 1, 0.5 or 0.
func Points(confidence float64) float64 {
	switch {
	case confidence >= fit.HighConfidence:
		return 1.0
	case confidence >= fit.MediumConfidence:
		return 0.5
	default:
		return 0
	}
}

// RequirementPoints returns the points of one requirement including the
// emphasis bonus. Only requirements that already earned points get a bonus.
func (e *Engine) RequirementPoints(req fit.Requirement, ev fit.Evidence, axes []string) float64 {
	points := Points(ev.Confidence)
	if points > 0 && len(axes) > 0 {
		points = math.Min(1.0, points+e.keywords.Bonus(req, axes))
	}
	return points
}

// Score computes the category scores, the total and the Match/Gap partition.
// Requirements without evidence are scored as "no evidence found".
func (e *Engine) Score(reqs []fit.Requirement, evidence map[string]fit.Evidence, axes []string) fit.ScoreResult {
	var musts, wants []fit.Requirement
	for _, r := range reqs {
		if r.Category == fit.Must {
			musts = append(musts, r)
		} else {
			wants = append(wants, r)
		}
	}

	mustScore, mustMatched, mustGaps := e.categoryScore(musts, evidence, axes)
	wantScore, wantMatched, wantGaps := e.categoryScore(wants, evidence, axes)

	total := clampScore(math.Round(float64(mustScore)*mustShare + float64(wantScore)*wantShare))

	result := fit.ScoreResult{
		Total:   total,
		Must:    mustScore,
		Want:    wantScore,
		Matched: append(mustMatched, wantMatched...),
		Gaps:    append(mustGaps, wantGaps...),
	}
	if result.Matched == nil {
		result.Matched = []fit.Match{}
	}
	if result.Gaps == nil {
		result.Gaps = []fit.Gap{}
	}

	result.Summary = Summarize(SummaryInput{
		Total:        total,
		MustGaps:     len(mustGaps),
		WantGaps:     len(wantGaps),
		WantRequired: len(wants),
	})

	return result
}

func (e *Engine) categoryScore(reqs []fit.Requirement, evidence map[string]fit.Evidence, axes []string) (int, []fit.Match, []fit.Gap) {
	if len(reqs) == 0 {
		return 100, nil, nil
	}

	var (
		matched     []fit.Match
		gaps        []fit.Gap
		weighted    float64
		totalWeight float64
	)

	for _, r := range reqs {
		ev, ok := evidence[r.ID]
		if !ok {
			ev = fit.NoEvidence(r.ID)
		}

		points := e.RequirementPoints(r, ev, axes)
		weighted += points * r.Weight
		totalWeight += r.Weight

		if points > 0 {
			matched = append(matched, fit.Match{Requirement: r, Evidence: ev, Points: points})
		} else {
			gaps = append(gaps, fit.Gap{Requirement: r, Evidence: ev})
		}
	}

	if totalWeight == 0 {
		return 0, matched, gaps
	}

	return clampScore(math.Round(100 * weighted / totalWeight)), matched, gaps
}

func clampScore(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}

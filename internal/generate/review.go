package generate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
)

const (
	qualitySystem = "You review the output of a job fit checker strictly and fairly. Answer with strict JSON."
	judgeSystem   = "You judge the output of a job fit checker. Answer with strict JSON."
	reviewExcerpt = 1500
	reviewSample  = 3

	fallbackQualityScore = 80
	fallbackJudgeScore   = 75
)

// QualityCriteria are the aspects the self-review rates.
var QualityCriteria = []string{
	"Evidence Validity",
	"No Fabrication",
	"Specificity",
	"Feasibility",
	"Consistency",
	"Readability",
}

// Quality rates the analysis. imp and qa may be nil.
func (s *Service) Quality(ctx context.Context, in Context, imp *fit.Improvements, qa []fit.InterviewQA) (fit.QualityEvaluation, error) {
	return run(ctx, s, "quality", ai.Request{
		System:      qualitySystem,
		Prompt:      ai.Render(qualityPrompt, reviewValues(in, imp, qa)),
		Temperature: ai.Temperature(0),
	}, qualitySchema, decodeQuality, FallbackQuality)
}

// Judge rates how convincing, grounded and restrained the output is. imp and
// qa may be nil.
func (s *Service) Judge(ctx context.Context, in Context, imp *fit.Improvements, qa []fit.InterviewQA) (fit.JudgeEvaluation, error) {
	return run(ctx, s, "judge", ai.Request{
		System:      judgeSystem,
		Prompt:      ai.Render(judgePrompt, reviewValues(in, imp, qa)),
		Temperature: ai.Temperature(0),
	}, judgeSchema, decodeJudge, FallbackJudge)
}

func reviewValues(in Context, imp *fit.Improvements, qa []fit.InterviewQA) map[string]string {
	var improvements strings.Builder
	if imp != nil {
		for i, e := range imp.ResumeEdits {
			if i == reviewSample {
				break
			}
			fmt.Fprintf(&improvements, "- [%s] %s: %s\n", e.TargetGap, e.EditType, e.Template)
		}
		for i, a := range imp.ActionItems {
			if i == reviewSample {
				break
			}
			fmt.Fprintf(&improvements, "- (%s) %s\n", a.Priority, a.Action)
		}
	}

	var interview strings.Builder
	for i, q := range qa {
		if i == reviewSample {
			break
		}
		fmt.Fprintf(&interview, "- Q: %s\n  A: %s\n", q.Question, strings.Join(q.AnswerOutline, "; "))
	}

	return map[string]string{
		"JOB_TEXT":     cut(in.JobText, reviewExcerpt),
		"RESUME_TEXT":  cut(in.ResumeText, reviewExcerpt),
		"MATCHED":      formatMatched(in.Matched, reviewSample, true),
		"GAPS":         formatGaps(in.Gaps, reviewSample, true),
		"IMPROVEMENTS": orNone(strings.TrimRight(improvements.String(), "\n")),
		"INTERVIEW":    orNone(strings.TrimRight(interview.String(), "\n")),
	}
}

func score(r gjson.Result) float64 {
	v, ok := llmjson.Number(r)
	if !ok {
		return 0
	}
	return math.Round(llmjson.Clamp(v, 0, 100))
}

func decodeQuality(doc gjson.Result) (fit.QualityEvaluation, error) {
	out := fit.QualityEvaluation{
		ImprovementPoints: llmjson.Texts(doc.Get("improvement_points")),
	}

	doc.Get("criterion_scores").ForEach(func(_, c gjson.Result) bool {
		name := llmjson.Text(c.Get("criterion"))
		if name == "" {
			return true
		}
		out.CriterionScores = append(out.CriterionScores, fit.CriterionScore{
			Criterion: name,
			Score:     score(c.Get("score")),
			Reason:    llmjson.Text(c.Get("reason")),
		})
		return true
	})
	if len(out.CriterionScores) == 0 {
		return fit.QualityEvaluation{}, errEmptyResult
	}

	var sum float64
	for _, c := range out.CriterionScores {
		sum += c.Score
	}
	out.OverallScore = math.Round(sum / float64(len(out.CriterionScores)))
	return out, nil
}

// FallbackQuality gives every criterion the same neutral score.
func FallbackQuality() fit.QualityEvaluation {
	scores := make([]fit.CriterionScore, 0, len(QualityCriteria))
	for _, c := range QualityCriteria {
		scores = append(scores, fit.CriterionScore{
			Criterion: c,
			Score:     fallbackQualityScore,
			Reason:    "simplified evaluation, review in detail",
		})
	}
	return fit.QualityEvaluation{
		OverallScore:    fallbackQualityScore,
		CriterionScores: scores,
		ImprovementPoints: []string{
			"A detailed review by the LLM judge is recommended",
			"Re-check that every quote is accurate",
			"Make the improvement suggestions more specific",
		},
	}
}

func decodeJudge(doc gjson.Result) (fit.JudgeEvaluation, error) {
	scores := doc.Get("scores")
	return fit.JudgeEvaluation{
		Scores: fit.JudgeScores{
			Convincing:     score(scores.Get("convincing")),
			Grounding:      score(scores.Get("grounding")),
			NoExaggeration: score(scores.Get("no_exaggeration")),
		},
		Issues:         llmjson.Texts(doc.Get("issues")),
		FixSuggestions: llmjson.Texts(doc.Get("fix_suggestions")),
	}, nil
}

// FallbackJudge returns neutral scores and generic advice.
func FallbackJudge() fit.JudgeEvaluation {
	return fit.JudgeEvaluation{
		Scores: fit.JudgeScores{
			Convincing:     fallbackJudgeScore,
			Grounding:      fallbackJudgeScore,
			NoExaggeration: fallbackJudgeScore,
		},
		Issues: []string{
			"A detailed judge evaluation is recommended",
			"Quote accuracy needs to be re-checked",
			"Improvements could be more specific",
		},
		FixSuggestions: []string{
			"Run the judge again with a configured model",
			"Confirm that each quote exists in the résumé",
			"Write the improvements more concretely",
		},
	}
}

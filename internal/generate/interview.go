package generate

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
)

const (
	interviewSystem  = "You are an experienced interviewer preparing a candidate. Answer with strict JSON."
	interviewExcerpt = 1000
	interviewSample  = 5
)

// InterviewQA writes likely interview questions with answer outlines.
func (s *Service) InterviewQA(ctx context.Context, in Context) ([]fit.InterviewQA, error) {
	prompt := ai.Render(interviewPrompt, map[string]string{
		"JOB_TEXT":    cut(in.JobText, interviewExcerpt),
		"RESUME_TEXT": cut(in.ResumeText, interviewExcerpt),
		"SUMMARY":     orNone(in.Summary),
		"MATCHED":     formatMatched(in.Matched, interviewSample, true),
		"GAPS":        formatGaps(in.Gaps, interviewSample, false),
	})

	return run(ctx, s, "interview_qa", ai.Request{
		System:      interviewSystem,
		Prompt:      prompt,
		Temperature: ai.Temperature(0.3),
	}, interviewSchema, decodeInterview, func() []fit.InterviewQA {
		return FallbackInterviewQA(in.Matched, in.Gaps)
	})
}

func decodeInterview(doc gjson.Result) ([]fit.InterviewQA, error) {
	var out []fit.InterviewQA
	doc.Get("interview_qa").ForEach(func(_, q gjson.Result) bool {
		question := llmjson.Text(q.Get("question"))
		if question == "" {
			return true
		}
		out = append(out, fit.InterviewQA{
			Question:      question,
			AnswerOutline: llmjson.Texts(q.Get("answer_outline")),
		})
		return len(out) < MaxInterviewQuestions
	})
	if len(out) == 0 {
		return nil, errEmptyResult
	}
	return out, nil
}

// FallbackInterviewQA asks about strengths, gaps and motivation.
func FallbackInterviewQA(matched []fit.Match, gaps []fit.Gap) []fit.InterviewQA {
	out := make([]fit.InterviewQA, 0, MaxInterviewQuestions)

	for i, m := range matched {
		if i == 3 {
			break
		}
		out = append(out, fit.InterviewQA{
			Question: fmt.Sprintf("Tell me about your concrete experience with %s.", m.Requirement.Description),
			AnswerOutline: []string{
				"Describe the project where you used it",
				"Name the tools and technologies involved",
				"Quantify the results you achieved",
			},
		})
	}

	for i, g := range gaps {
		if i == 3 {
			break
		}
		out = append(out, fit.InterviewQA{
			Question: fmt.Sprintf("How would you address %s?", g.Requirement.Description),
			AnswerOutline: []string{
				"Explain your current understanding",
				"Describe your learning plan",
				"State the goals you have set",
			},
		})
	}

	out = append(out,
		fit.InterviewQA{
			Question: "Why did you apply to this position?",
			AnswerOutline: []string{
				"What attracted you to the company",
				"How the role fits your career plan",
				"What you want to achieve here",
			},
		},
		fit.InterviewQA{
			Question: "How can you contribute to our team?",
			AnswerOutline: []string{
				"Skills you can apply right away",
				"Experience relevant to the team's work",
				"How you will keep growing in the role",
			},
		},
	)

	if len(out) > MaxInterviewQuestions {
		out = out[:MaxInterviewQuestions]
	}
	return out
}

// Package generate produces the advisory output of a run: résumé
// improvements, interview questions, an application e-mail and two
// self-evaluations. Every generator falls back to a fixed template when the
// model is missing or keeps answering with malformed JSON.
package generate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/retry"
	"github.com/spigell/fitcheck/internal/textmatch"
)

// MaxInterviewQuestions caps the interview Q&A list.
const MaxInterviewQuestions = 10

//go:embed prompts/*.md
var promptFS embed.FS

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	improvementsSchema = mustSchema("improvements")
	interviewSchema    = mustSchema("interview")
	emailSchema        = mustSchema("email")
	qualitySchema      = mustSchema("quality")
	judgeSchema        = mustSchema("judge")

	improvementsPrompt = loadPrompt("improvements")
	interviewPrompt    = loadPrompt("interview")
	emailPrompt        = loadPrompt("email")
	qualityPrompt      = loadPrompt("quality")
	judgePrompt        = loadPrompt("judge")
)

func mustSchema(name string) *llmjson.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return llmjson.MustCompileSchema(name, string(data))
}

func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Context is what every generator works from.
type Context struct {
	JobText     string
	ResumeText  string
	CompanyInfo string
	Summary     string
	Matched     []fit.Match
	// Gaps are expected to be prioritized already.
	Gaps []fit.Gap
}

// Service runs the generators against one model.
type Service struct {
	gen    ai.Generator
	policy retry.Policy
	logger *zap.Logger
}

// New returns a service. A nil generator makes every call return its
// fallback.
func New(gen ai.Generator, policy retry.Policy, log *zap.Logger) *Service {
	return &Service{gen: gen, policy: policy, logger: logger.WithFields(log).Named("generate")}
}

// run asks the model for JSON matching schema and hands the parsed document
// to decode. Fallbacks are silent failures; only a done context is reported.
func run[T any](ctx context.Context, s *Service, task string, req ai.Request, schema *llmjson.Schema,
	decode func(gjson.Result) (T, error), fallback func() T,
) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if s.gen == nil {
		return fallback(), nil
	}

	req.JSON = true
	out := retry.Do(ctx, s.policy, func(ctx context.Context) (T, error) {
		raw, err := ai.Call(ctx, s.gen, s.logger, task, req)
		if err != nil {
			var zero T
			return zero, err
		}
		doc, err := llmjson.Parse(raw, schema)
		if err != nil {
			var zero T
			return zero, llmjson.NewParseError(raw, err)
		}
		return decode(doc)
	}, fallback)

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", task, err)
	}
	if out.FellBack {
		s.logger.Warn("generator fell back to template",
			zap.String("task", task),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err),
		)
	}
	return out.Value, nil
}

var errEmptyResult = errors.New("model returned no usable items")

func formatMatched(matched []fit.Match, limit int, withConfidence bool) string {
	if len(matched) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, m := range matched {
		if i == limit {
			break
		}
		if withConfidence {
			fmt.Fprintf(&b, "- [%s] %s (confidence %.0f%%)\n", m.Requirement.ID, m.Requirement.Description, m.Evidence.Confidence*100)
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", m.Requirement.ID, m.Requirement.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGaps(gaps []fit.Gap, limit int, withReason bool) string {
	if len(gaps) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, g := range gaps {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "- [%s] %s: %s", g.Requirement.ID, g.Requirement.Category, g.Requirement.Description)
		if withReason && g.Evidence.Reason != "" {
			fmt.Fprintf(&b, " (reason: %s)", g.Evidence.Reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// cut trims s to limit runes and marks the cut with "...".
func cut(s string, limit int) string {
	out, truncated := textmatch.Truncate(s, limit)
	if truncated {
		return out + "..."
	}
	return out
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

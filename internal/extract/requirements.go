package extract

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/requirements"
	"github.com/spigell/fitcheck/internal/retry"
)

const (
	requirementsSystem = "You extract hiring requirements from job postings and answer with strict JSON."
	strictInstruction  = "\n7. Avoid guesses and vague wording: extract only requirements stated explicitly in the posting."
	defaultImportance  = 3
)

var requirementsPrompt = loadPrompt("requirements")

// RequirementOptions tune a requirement extraction.
type RequirementOptions struct {
	MaxMust int
	MaxWant int
	// Strict asks the model to skip anything not stated explicitly.
	Strict bool
	// CompanyContext is optional background about the employer.
	CompanyContext string
}

// RequirementExtractor extracts requirements from a job posting.
type RequirementExtractor struct {
	gen    ai.Generator
	policy retry.Policy
	logger *zap.Logger
}

// NewRequirementExtractor returns an extractor. A nil generator makes every
// call use the keyword fallback.
func NewRequirementExtractor(gen ai.Generator, policy retry.Policy, log *zap.Logger) *RequirementExtractor {
	return &RequirementExtractor{gen: gen, policy: policy, logger: logger.WithFields(log).Named("requirements")}
}

// Extract returns raw requirements with provisional ids. Deduplication and
// renumbering are left to the caller.
func (x *RequirementExtractor) Extract(ctx context.Context, jobText string, opts RequirementOptions) retry.Outcome[[]fit.Requirement] {
	fallback := func() []fit.Requirement {
		return requirements.Fallback(jobText, opts.MaxMust, opts.MaxWant)
	}
	if x.gen == nil {
		return retry.Outcome[[]fit.Requirement]{Value: fallback(), FellBack: true, Err: ErrNoGenerator}
	}

	prompt := buildRequirementsPrompt(jobText, opts)
	out := retry.Do(ctx, x.policy, func(ctx context.Context) ([]fit.Requirement, error) {
		raw, err := complete(ctx, x.gen, x.logger, "requirements", requirementsSystem, prompt)
		if err != nil {
			return nil, err
		}
		return parseRequirements(raw)
	}, fallback)

	if out.FellBack {
		x.logger.Warn("requirement extraction fell back to keyword rules",
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err),
		)
	}
	return out
}

func buildRequirementsPrompt(jobText string, opts RequirementOptions) string {
	company := ""
	if c := strings.TrimSpace(opts.CompanyContext); c != "" {
		company = "\nAbout the company (context only, not a source of requirements):\n" + c + "\n"
	}
	strict := ""
	if opts.Strict {
		strict = strictInstruction
	}
	return render(requirementsPrompt, map[string]string{
		"JOB_TEXT":           jobText,
		"COMPANY_CONTEXT":    company,
		"MAX_MUST":           strconv.Itoa(opts.MaxMust),
		"MAX_WANT":           strconv.Itoa(opts.MaxWant),
		"STRICT_INSTRUCTION": strict,
	})
}

func parseRequirements(raw string) ([]fit.Requirement, error) {
	doc, err := llmjson.Parse(raw, requirementsSchema)
	if err != nil {
		return nil, err
	}

	var (
		out        []fit.Requirement
		must, want int
		parseErr   error
	)
	doc.Get("requirements").ForEach(func(_, item gjson.Result) bool {
		category, err := fit.ParseCategory(llmjson.Text(item.Get("category")))
		if err != nil {
			parseErr = err
			return false
		}
		description := llmjson.Text(item.Get("description"))
		if description == "" {
			return true
		}

		id := ""
		if category == fit.Must {
			must++
			id = fmt.Sprintf("M%d", must)
		} else {
			want++
			id = fmt.Sprintf("W%d", want)
		}

		out = append(out, fit.Requirement{
			ID:          id,
			Category:    category,
			Description: description,
			Importance:  importance(item.Get("importance")),
			SourceQuote: llmjson.Text(item.Get("source_quote")),
			Weight:      category.Weight(),
		})
		return true
	})
	if parseErr != nil {
		return nil, llmjson.NewParseError(raw, parseErr)
	}
	if len(out) == 0 {
		return nil, llmjson.NewParseError(raw, requirements.ErrNoRequirements)
	}
	return out, nil
}

func importance(r gjson.Result) int {
	v, ok := llmjson.Number(r)
	if !ok {
		return defaultImportance
	}
	return int(llmjson.Clamp(math.Round(v), 1, 5))
}

package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/llmjson"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/retry"
)

const (
	evidenceSystem = "You match résumé statements to hiring requirements and answer with strict JSON."

	fallbackKeywords     = 3
	fallbackQuotes       = 3
	fallbackHitIncrement = 0.2
	noMatchReason        = "no matching statement found"
)

var (
	evidencePrompt = loadPrompt("evidence")

	yearsPattern = regexp.MustCompile(`\d+年`)
	techPattern  = regexp.MustCompile(`[A-Za-z]+|[ァ-ヶー]+`)
)

// EvidenceInput is what the evidence extractor reads.
type EvidenceInput struct {
	Resume       string
	Requirements []fit.Requirement
	// Retrieved maps requirement ids to note passages offered as hints.
	Retrieved map[string][]string
	// Sections is an optional sectioned view of the résumé.
	Sections []Section
}

// EvidenceExtractor finds résumé statements supporting each requirement.
type EvidenceExtractor struct {
	gen    ai.Generator
	policy retry.Policy
	logger *zap.Logger
}

func NewEvidenceExtractor(gen ai.Generator, policy retry.Policy, log *zap.Logger) *EvidenceExtractor {
	return &EvidenceExtractor{gen: gen, policy: policy, logger: logger.WithFields(log).Named("evidence")}
}

// Enabled reports whether an LLM backs the extractor.
func (x *EvidenceExtractor) Enabled() bool {
	return x.gen != nil
}

// Extract returns the evidence the model found, or the keyword fallback when
// the model is missing or keeps failing. Quotes are attributed to the résumé.
func (x *EvidenceExtractor) Extract(ctx context.Context, in EvidenceInput) retry.Outcome[[]fit.Evidence] {
	fallback := func() []fit.Evidence {
		return FallbackEvidence(in.Resume, in.Requirements)
	}
	if x.gen == nil {
		return retry.Outcome[[]fit.Evidence]{Value: fallback(), FellBack: true, Err: ErrNoGenerator}
	}

	out := retry.Do(ctx, x.policy, func(ctx context.Context) ([]fit.Evidence, error) {
		return x.once(ctx, in)
	}, fallback)

	if out.FellBack {
		x.logger.Warn("evidence extraction fell back to keyword rules",
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err),
		)
	}
	return out
}

// Reextract makes a single extraction attempt without fallback. It is used to
// give requirements whose quotes all failed verification a second chance.
func (x *EvidenceExtractor) Reextract(ctx context.Context, in EvidenceInput) ([]fit.Evidence, error) {
	if x.gen == nil {
		return nil, ErrNoGenerator
	}
	return x.once(ctx, in)
}

func (x *EvidenceExtractor) once(ctx context.Context, in EvidenceInput) ([]fit.Evidence, error) {
	raw, err := complete(ctx, x.gen, x.logger, "evidence", evidenceSystem, buildEvidencePrompt(in))
	if err != nil {
		return nil, err
	}
	return parseEvidence(raw, in.Requirements)
}

func buildEvidencePrompt(in EvidenceInput) string {
	resume := in.Resume
	note := ""
	if len(in.Sections) > 0 {
		resume = FormatSections(in.Sections)
		note = "\nNote: the résumé has been grouped into sections. Quote the original wording inside them.\n"
	}

	var reqs strings.Builder
	for _, r := range in.Requirements {
		fmt.Fprintf(&reqs, "[%s] %s: %s\n", r.ID, r.Category, r.Description)
	}

	var retrieved strings.Builder
	for _, r := range in.Requirements {
		hits := in.Retrieved[r.ID]
		if len(hits) == 0 {
			continue
		}
		if retrieved.Len() == 0 {
			retrieved.WriteString("\nRetrieved notes from the candidate (may also be quoted):\n")
		}
		for i, h := range hits {
			fmt.Fprintf(&retrieved, "[%s #%d] %s\n", r.ID, i, h)
		}
	}

	return render(evidencePrompt, map[string]string{
		"RESUME_TEXT":     resume,
		"RESUME_NOTE":     note,
		"REQUIREMENTS":    strings.TrimRight(reqs.String(), "\n"),
		"RETRIEVED_NOTES": retrieved.String(),
	})
}

func parseEvidence(raw string, reqs []fit.Requirement) ([]fit.Evidence, error) {
	doc, err := llmjson.Parse(raw, evidenceSchema)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		known[r.ID] = true
	}

	seen := make(map[string]bool)
	out := []fit.Evidence{}
	doc.Get("evidence").ForEach(func(_, item gjson.Result) bool {
		id := llmjson.Text(item.Get("requirement_id"))
		if !known[id] || seen[id] {
			return true
		}
		seen[id] = true

		confidence, ok := llmjson.Number(item.Get("confidence"))
		if !ok {
			confidence = 0
		}

		quotes := []fit.Quote{}
		for _, q := range llmjson.Texts(item.Get("quotes")) {
			quotes = append(quotes, fit.Quote{Text: q, Source: fit.SourceResume})
		}

		out = append(out, fit.Evidence{
			RequirementID: id,
			Quotes:        quotes,
			Confidence:    llmjson.Clamp(confidence, 0, 1),
			Reason:        llmjson.Text(item.Get("reason")),
		})
		return true
	})

	if len(out) == 0 && len(reqs) > 0 {
		return nil, llmjson.NewParseError(raw, fmt.Errorf("no evidence for any of the %d requirements", len(reqs)))
	}
	return out, nil
}

// FallbackEvidence scores requirements by keyword hits in the résumé lines.
// Keywords are a "N年" span and the Latin or katakana words of the
// description; every matching line adds a quote and 0.2 confidence.
func FallbackEvidence(resume string, reqs []fit.Requirement) []fit.Evidence {
	lines := strings.Split(resume, "\n")
	out := make([]fit.Evidence, 0, len(reqs))

	for _, r := range reqs {
		keywords := fallbackKeywordsFor(r.Description)

		var (
			quotes     []fit.Quote
			seen       = make(map[string]bool)
			hits       int
			confidence float64
		)
		for _, kw := range keywords {
			for _, line := range lines {
				line = strings.TrimSpace(line)
				if line == "" || !strings.Contains(line, kw) {
					continue
				}
				hits++
				confidence += fallbackHitIncrement
				if !seen[line] && len(quotes) < fallbackQuotes {
					seen[line] = true
					quotes = append(quotes, fit.Quote{Text: line, Source: fit.SourceResume})
				}
			}
		}

		ev := fit.NoEvidence(r.ID)
		ev.Reason = noMatchReason
		if hits > 0 {
			ev.Quotes = quotes
			ev.Confidence = llmjson.Clamp(confidence, 0, 1)
			ev.Reason = fmt.Sprintf("keyword match: %d related statement(s) found", hits)
		}
		out = append(out, ev)
	}
	return out
}

func fallbackKeywordsFor(description string) []string {
	var keywords []string
	if m := yearsPattern.FindString(description); m != "" {
		keywords = append(keywords, m)
	}
	for _, tok := range techPattern.FindAllString(description, -1) {
		if len([]rune(tok)) >= 2 {
			keywords = append(keywords, tok)
		}
	}
	if len(keywords) > fallbackKeywords {
		keywords = keywords[:fallbackKeywords]
	}
	return keywords
}

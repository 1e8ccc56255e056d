package requirements

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/textmatch"
)

const (
	fallbackMustImportance = 3
	fallbackWantImportance = 2
	fallbackQuoteRunes     = 100

	unextractableDescription = "requirements could not be extracted from the job posting"
)

var (
	ErrNoRequirements     = errors.New("no requirements were extracted from the job posting")
	ErrNoMustRequirements = errors.New("no Must requirements were extracted from the job posting")
)

var (
	mustPatterns = regexp.MustCompile(`(?i)必須|required|必要な経験|応募資格|〜以上|経験.*年`)
	wantPatterns = regexp.MustCompile(`(?i)歓迎|preferred|尚可|あれば.*良し|望ましい`)
)

// Fallback extracts requirements line by line with keyword patterns. It is
// used when the LLM extractor is unavailable or keeps failing and always
// returns at least one Must requirement.
func Fallback(jobText string, maxMust, maxWant int) []fit.Requirement {
	var (
		out        []fit.Requirement
		must, want int
	)

	for _, line := range strings.Split(jobText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case mustPatterns.MatchString(line):
			if maxMust > 0 && must >= maxMust {
				continue
			}
			must++
			out = append(out, fit.Requirement{
				ID:          fmt.Sprintf("M%d", must),
				Category:    fit.Must,
				Description: line,
				Importance:  fallbackMustImportance,
				SourceQuote: line,
				Weight:      fit.MustWeight,
			})
		case wantPatterns.MatchString(line):
			if maxWant > 0 && want >= maxWant {
				continue
			}
			want++
			out = append(out, fit.Requirement{
				ID:          fmt.Sprintf("W%d", want),
				Category:    fit.Want,
				Description: line,
				Importance:  fallbackWantImportance,
				SourceQuote: line,
				Weight:      fit.WantWeight,
			})
		}
	}

	if len(out) == 0 {
		quote, _ := textmatch.Truncate(jobText, fallbackQuoteRunes)
		out = append(out, fit.Requirement{
			ID:          "M1",
			Category:    fit.Must,
			Description: unextractableDescription,
			Importance:  1,
			SourceQuote: quote,
			Weight:      fit.MustWeight,
		})
	}

	return out
}

// Validate fails when scoring would be undefined: no requirements at all or
// no Must requirement.
func Validate(reqs []fit.Requirement) error {
	if len(reqs) == 0 {
		return ErrNoRequirements
	}
	if fit.CountByCategory(reqs, fit.Must) == 0 {
		return ErrNoMustRequirements
	}
	return nil
}

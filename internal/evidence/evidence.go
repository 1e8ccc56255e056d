// Package evidence checks and completes the evidence produced by the
// extractor: quotes are attributed to their source, quotes that cannot be
// found are dropped with a confidence penalty, and every requirement ends
// up with exactly one evidence.
package evidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/textmatch"
)

const (
	// MaxReextractions bounds how many requirements get a second extraction.
	MaxReextractions = 3

	verificationPenalty = 0.2
)

// Annotate attributes every quote to the résumé unless it only occurs in one
// of the requirement's retrieved note chunks. It returns new values and can
// be applied repeatedly.
func Annotate(evs []fit.Evidence, resume string, retrieved map[string][]string) []fit.Evidence {
	normResume := textmatch.Normalize(resume)
	out := make([]fit.Evidence, len(evs))

	for i, ev := range evs {
		ev = ev.Clone()
		chunks := retrieved[ev.RequirementID]
		for j := range ev.Quotes {
			q := &ev.Quotes[j]
			q.Source = fit.SourceResume
			q.SourceIndex = nil

			norm := textmatch.Normalize(q.Text)
			if norm == "" || len(chunks) == 0 || strings.Contains(normResume, norm) {
				continue
			}
			for k, chunk := range chunks {
				if textmatch.ContainsEither(norm, chunk) {
					idx := k
					q.Source = fit.SourceRetrievedNote
					q.SourceIndex = &idx
					break
				}
			}
		}
		out[i] = ev
	}
	return out
}

// VerifyOne drops the quotes found neither in the résumé nor in the given
// chunks. Evidence whose quotes all check out is returned unchanged.
func VerifyOne(ev fit.Evidence, resume string, chunks []string) fit.Evidence {
	var valid []fit.Quote
	invalid := 0
	for _, q := range ev.Quotes {
		if quoteFound(q.Text, resume, chunks) {
			valid = append(valid, q)
		} else {
			invalid++
		}
	}
	if invalid == 0 {
		return ev
	}

	out := ev.Clone()
	out.Quotes = append([]fit.Quote{}, valid...)
	if len(valid) == 0 {
		out.Confidence = 0
	} else {
		ratio := float64(len(valid)) / float64(len(valid)+invalid)
		out.Confidence = math.Max(0, ev.Confidence*ratio-verificationPenalty)
	}
	out.Reason = appendMarker(ev.Reason, invalid)
	return out
}

// Verify applies VerifyOne to every evidence using the chunks retrieved for
// its requirement.
func Verify(evs []fit.Evidence, resume string, retrieved map[string][]string) []fit.Evidence {
	out := make([]fit.Evidence, len(evs))
	for i, ev := range evs {
		out[i] = VerifyOne(ev, resume, retrieved[ev.RequirementID])
	}
	return out
}

func quoteFound(quote, resume string, chunks []string) bool {
	if textmatch.QuoteInText(quote, resume) {
		return true
	}
	for _, c := range chunks {
		if textmatch.QuoteInText(quote, c) {
			return true
		}
	}
	return false
}

func appendMarker(reason string, invalid int) string {
	marker := fmt.Sprintf("⚠ quote verification failed: %d quote(s) not found in source", invalid)
	if reason == "" {
		return marker
	}
	return reason + "\n" + marker
}

// ReextractionCandidates returns the requirement ids whose evidence has no
// quotes and zero confidence, but only when there are between one and
// MaxReextractions of them.
func ReextractionCandidates(evs []fit.Evidence) []string {
	var ids []string
	for _, ev := range evs {
		if len(ev.Quotes) == 0 && ev.Confidence == 0 {
			ids = append(ids, ev.RequirementID)
		}
	}
	if len(ids) == 0 || len(ids) > MaxReextractions {
		return nil
	}
	return ids
}

// Replace swaps in the replacements by requirement id. Replacements for ids
// not present in evs are ignored.
func Replace(evs []fit.Evidence, replacements []fit.Evidence) []fit.Evidence {
	byID := make(map[string]fit.Evidence, len(replacements))
	for _, r := range replacements {
		if _, dup := byID[r.RequirementID]; !dup {
			byID[r.RequirementID] = r
		}
	}
	out := make([]fit.Evidence, len(evs))
	for i, ev := range evs {
		if r, ok := byID[ev.RequirementID]; ok {
			out[i] = r
			continue
		}
		out[i] = ev
	}
	return out
}

// EnsureAll returns exactly one evidence per requirement in requirement
// order. Missing ones are synthesized with zero confidence; evidence for
// unknown requirements and duplicates are dropped.
func EnsureAll(evs []fit.Evidence, reqs []fit.Requirement) []fit.Evidence {
	byID := make(map[string]fit.Evidence, len(evs))
	for _, ev := range evs {
		if _, dup := byID[ev.RequirementID]; !dup {
			byID[ev.RequirementID] = ev
		}
	}
	out := make([]fit.Evidence, 0, len(reqs))
	for _, r := range reqs {
		if ev, ok := byID[r.ID]; ok {
			out = append(out, ev)
			continue
		}
		out = append(out, fit.NoEvidence(r.ID))
	}
	return out
}

// ByRequirement indexes evidence by requirement id.
func ByRequirement(evs []fit.Evidence) map[string]fit.Evidence {
	out := make(map[string]fit.Evidence, len(evs))
	for _, ev := range evs {
		out[ev.RequirementID] = ev
	}
	return out
}

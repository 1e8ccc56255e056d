// Package requirements post-processes requirements extracted from a job
// posting: near-duplicates are merged, ids renumbered and category caps
// applied.
package requirements

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spigell/fitcheck/internal/fit"
)

const (
	minSharedTechTokens = 2
	minSignificantRunes = 3
	wordOverlapRatio    = 0.8
)

var techToken = regexp.MustCompile(`[A-Za-z]+|[ァ-ヶー]+`)

// Dedupe drops Want requirements already covered by a Must requirement and
// merges similar requirements within each category. The result keeps
// first-seen order and Dedupe(Dedupe(xs)) equals Dedupe(xs).
func Dedupe(reqs []fit.Requirement) []fit.Requirement {
	out := dropWantsCoveredByMust(reqs)

	for {
		next := mergeSimilar(out)
		if len(next) == len(out) {
			return next
		}
		out = next
	}
}

func dropWantsCoveredByMust(reqs []fit.Requirement) []fit.Requirement {
	var musts []fit.Requirement
	for _, r := range reqs {
		if r.Category == fit.Must {
			musts = append(musts, r)
		}
	}

	out := make([]fit.Requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Category == fit.Want && similarToAny(r, musts) {
			continue
		}
		out = append(out, r)
	}

	return out
}

func similarToAny(r fit.Requirement, others []fit.Requirement) bool {
	for _, o := range others {
		if AreSimilar(r, o) {
			return true
		}
	}
	return false
}

func mergeSimilar(reqs []fit.Requirement) []fit.Requirement {
	used := make([]bool, len(reqs))
	out := make([]fit.Requirement, 0, len(reqs))

	for i := range reqs {
		if used[i] {
			continue
		}
		used[i] = true

		group := []fit.Requirement{reqs[i]}
		for j := i + 1; j < len(reqs); j++ {
			if used[j] || reqs[j].Category != reqs[i].Category {
				continue
			}
			if AreSimilar(reqs[i], reqs[j]) {
				group = append(group, reqs[j])
				used[j] = true
			}
		}

		out = append(out, merge(group))
	}

	return out
}

func merge(group []fit.Requirement) fit.Requirement {
	merged := group[0]
	for _, r := range group[1:] {
		if utf8.RuneCountInString(r.Description) > utf8.RuneCountInString(merged.Description) {
			merged.Description = r.Description
		}
		if utf8.RuneCountInString(r.SourceQuote) > utf8.RuneCountInString(merged.SourceQuote) {
			merged.SourceQuote = r.SourceQuote
		}
		if r.Importance > merged.Importance {
			merged.Importance = r.Importance
		}
	}
	return merged
}

// AreSimilar reports whether two requirements describe the same thing. The
// rules are checked in order and the first hit wins.
func AreSimilar(a, b fit.Requirement) bool {
	lower := cases.Lower(language.Und)
	da := lower.String(strings.TrimSpace(a.Description))
	db := lower.String(strings.TrimSpace(b.Description))

	if da == db {
		return true
	}

	if da != "" && db != "" && (strings.Contains(da, db) || strings.Contains(db, da)) {
		return true
	}

	ta := uniq(techToken.FindAllString(da, -1))
	tb := uniq(techToken.FindAllString(db, -1))
	shared := intersect(ta, tb)
	if len(shared) >= minSharedTechTokens && anySignificant(shared) {
		return true
	}

	if len(ta) == 1 && len(tb) == 1 && ta[0] == tb[0] {
		return true
	}

	wa := uniq(strings.Fields(da))
	wb := uniq(strings.Fields(db))
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}

	common := intersect(wa, wb)
	larger := max(len(wa), len(wb))
	if float64(len(common))/float64(larger) >= wordOverlapRatio && anySignificant(common) {
		return true
	}

	return false
}

func uniq(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, it := range b {
		set[it] = struct{}{}
	}
	var out []string
	for _, it := range a {
		if _, ok := set[it]; ok {
			out = append(out, it)
		}
	}
	return out
}

func anySignificant(tokens []string) bool {
	for _, t := range tokens {
		if utf8.RuneCountInString(t) >= minSignificantRunes {
			return true
		}
	}
	return false
}

// Renumber assigns REQ_001, REQ_002, ... in order and resets weights and
// importance bounds from the category.
func Renumber(reqs []fit.Requirement) []fit.Requirement {
	out := make([]fit.Requirement, len(reqs))
	for i, r := range reqs {
		r.ID = fmt.Sprintf("REQ_%03d", i+1)
		r.Weight = r.Category.Weight()
		r.Importance = clampImportance(r.Importance)
		out[i] = r
	}
	return out
}

// Limit keeps at most maxMust Must and maxWant Want requirements, preserving
// order. Non-positive limits disable the cap for that category.
func Limit(reqs []fit.Requirement, maxMust, maxWant int) []fit.Requirement {
	out := make([]fit.Requirement, 0, len(reqs))
	var must, want int
	for _, r := range reqs {
		switch r.Category {
		case fit.Must:
			if maxMust > 0 && must >= maxMust {
				continue
			}
			must++
		case fit.Want:
			if maxWant > 0 && want >= maxWant {
				continue
			}
			want++
		}
		out = append(out, r)
	}
	return out
}

func clampImportance(v int) int {
	switch {
	case v < 1:
		return 1
	case v > 5:
		return 5
	default:
		return v
	}
}

// Package fit holds the values shared by every stage of an analysis run:
// requirements extracted from a job posting, the résumé evidence found for
// them and the scores derived from both.
package fit

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MustWeight = 1.0
	WantWeight = 0.5

	HighConfidence   = 0.7
	MediumConfidence = 0.4
)

// Category separates mandatory requirements from preferred ones.
type Category int

const (
	Must Category = iota
	Want
)

func (c Category) String() string {
	switch c {
	case Must:
		return "Must"
	case Want:
		return "Want"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Weight returns the scoring weight attached to the category.
func (c Category) Weight() float64 {
	if c == Must {
		return MustWeight
	}
	return WantWeight
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory accepts the usual spellings produced by LLMs.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "must", "required", "mandatory", "必須":
		return Must, nil
	case "want", "preferred", "nice-to-have", "nice to have", "歓迎":
		return Want, nil
	default:
		return Must, fmt.Errorf("unknown requirement category %q", s)
	}
}

// ConfidenceLevel is a coarse bucket of an evidence confidence.
type ConfidenceLevel int

const (
	LevelNone ConfidenceLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// LevelFor derives the level from a confidence value. It is the only way a
// level is produced.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= HighConfidence:
		return LevelHigh
	case confidence >= MediumConfidence:
		return LevelMedium
	case confidence > 0:
		return LevelLow
	default:
		return LevelNone
	}
}

func (l ConfidenceLevel) String() string {
	switch l {
	case LevelHigh:
		return "High"
	case LevelMedium:
		return "Medium"
	case LevelLow:
		return "Low"
	default:
		return "None"
	}
}

func (l ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// QuoteSource tells where a quote was taken from.
type QuoteSource int

const (
	SourceResume QuoteSource = iota
	SourceRetrievedNote
)

func (s QuoteSource) String() string {
	if s == SourceRetrievedNote {
		return "RetrievedNote"
	}
	return "Resume"
}

func (s QuoteSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Requirement is a single Must or Want item of a job posting.
type Requirement struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Importance  int      `json:"importance"`
	SourceQuote string   `json:"source_quote"`
	Weight      float64  `json:"weight"`
}

// Quote is a span of text offered as evidence. SourceIndex is set only for
// quotes that came from a retrieved note chunk.
type Quote struct {
	Text        string      `json:"text"`
	Source      QuoteSource `json:"source"`
	SourceIndex *int        `json:"source_index,omitempty"`
}

// Evidence is the résumé support found for one requirement.
type Evidence struct {
	RequirementID string  `json:"requirement_id"`
	Quotes        []Quote `json:"quotes"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// Level derives the confidence level.
func (e Evidence) Level() ConfidenceLevel {
	return LevelFor(e.Confidence)
}

func (e Evidence) MarshalJSON() ([]byte, error) {
	type plain Evidence
	return json.Marshal(struct {
		plain
		ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	}{plain: plain(e), ConfidenceLevel: e.Level()})
}

// QuoteTexts returns the quote texts in order.
func (e Evidence) QuoteTexts() []string {
	texts := make([]string, 0, len(e.Quotes))
	for _, q := range e.Quotes {
		texts = append(texts, q.Text)
	}
	return texts
}

// Clone returns a copy that does not share the quote slice.
func (e Evidence) Clone() Evidence {
	quotes := make([]Quote, len(e.Quotes))
	for i, q := range e.Quotes {
		quotes[i] = q
		if q.SourceIndex != nil {
			idx := *q.SourceIndex
			quotes[i].SourceIndex = &idx
		}
	}
	e.Quotes = quotes
	return e
}

// NoEvidence is the zero-confidence evidence synthesized for a requirement
// that the extraction left out.
func NoEvidence(requirementID string) Evidence {
	return Evidence{
		RequirementID: requirementID,
		Quotes:        []Quote{},
		Confidence:    0,
		Reason:        "no evidence found",
	}
}

// Match is a requirement that earned points.
type Match struct {
	Requirement Requirement `json:"requirement"`
	Evidence    Evidence    `json:"evidence"`
	Points      float64     `json:"points"`
}

// Gap is a requirement without usable evidence.
type Gap struct {
	Requirement Requirement `json:"requirement"`
	Evidence    Evidence    `json:"evidence"`
}

// ScoreResult is the outcome of the scoring engine.
type ScoreResult struct {
	Total   int     `json:"total"`
	Must    int     `json:"must"`
	Want    int     `json:"want"`
	Matched []Match `json:"matched"`
	Gaps    []Gap   `json:"gaps"`
	Summary string  `json:"summary"`
}

// CountByCategory returns how many requirements of the given category are in
// the list.
func CountByCategory(reqs []Requirement, c Category) int {
	n := 0
	for _, r := range reqs {
		if r.Category == c {
			n++
		}
	}
	return n
}

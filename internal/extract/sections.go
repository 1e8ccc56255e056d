package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/llmjson"
	"github.com/spigell/fitcheck/internal/textmatch"
)

const (
	sectionsSystem       = "You organise résumés into sections and answer with strict JSON."
	minSectionableRunes  = 50
	maxSectionInputRunes = 3000
)

var (
	sectionsPrompt = loadPrompt("sections")

	sectionOrder  = []string{"summary", "skills", "projects", "achievements", "roles"}
	sectionLabels = map[string]string{
		"summary":      "Summary",
		"skills":       "Skills",
		"projects":     "Projects",
		"achievements": "Achievements",
		"roles":        "Roles",
	}
)

// Section is one labelled part of a résumé.
type Section struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// StructureResume asks the model to group the résumé into sections. It is
// best effort: any failure, or a résumé too short to bother, yields nil.
func (x *EvidenceExtractor) StructureResume(ctx context.Context, resume string) []Section {
	if x.gen == nil || utf8.RuneCountInString(strings.TrimSpace(resume)) < minSectionableRunes {
		return nil
	}

	text, truncated := textmatch.Truncate(resume, maxSectionInputRunes)
	if truncated {
		text += "..."
	}

	raw, err := complete(ctx, x.gen, x.logger, "sections", sectionsSystem, render(sectionsPrompt, map[string]string{"RESUME_TEXT": text}))
	if err != nil {
		x.logger.Warn("résumé sectioning skipped", zap.Error(err))
		return nil
	}

	sections, err := parseSections(raw)
	if err != nil {
		x.logger.Warn("résumé sectioning skipped", zap.Error(err))
		return nil
	}
	return sections
}

// parseSections merges repeated section types and orders them canonically.
// Unknown types are kept after the known ones.
func parseSections(raw string) ([]Section, error) {
	doc, err := llmjson.Parse(raw, sectionsSchema)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string)
	var extra []string
	doc.Get("sections").ForEach(func(_, item gjson.Result) bool {
		kind := strings.ToLower(llmjson.Text(item.Get("section_type")))
		content := llmjson.Text(item.Get("content"))
		if kind == "" || content == "" {
			return true
		}
		if existing, ok := merged[kind]; ok {
			merged[kind] = existing + "\n\n" + content
			return true
		}
		merged[kind] = content
		if _, known := sectionLabels[kind]; !known {
			extra = append(extra, kind)
		}
		return true
	})

	var out []Section
	for _, kind := range append(append([]string{}, sectionOrder...), extra...) {
		if content, ok := merged[kind]; ok {
			out = append(out, Section{Type: kind, Content: content})
		}
	}
	return out, nil
}

// FormatSections renders sections as labelled blocks for a prompt.
func FormatSections(sections []Section) string {
	var sb strings.Builder
	for _, s := range sections {
		label, ok := sectionLabels[s.Type]
		if !ok {
			label = s.Type
		}
		sb.WriteString("[" + label + "]\n" + s.Content + "\n\n")
	}
	return strings.TrimSpace(sb.String())
}

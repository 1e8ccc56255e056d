package rag

import (
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100

	// MetaPosition is the document metadata key holding the chunk's place in
	// the split notes.
	MetaPosition = "position"
)

// defaultSeparators go from the coarsest boundary to the finest. The empty
// separator splits into single runes.
var defaultSeparators = []string{"\n\n", "\n", "。", ". ", "! ", "? ", " ", ""}

// Splitter cuts text into overlapping chunks, preferring paragraph, then line,
// then sentence, then word boundaries. Sizes are counted in runes.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(defaultSeparators),
		),
	}
}

// Split returns the trimmed, non-empty chunks of text.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// Documents splits text into documents carrying metadata plus the chunk
// position under MetaPosition.
func (s *Splitter) Documents(text string, metadata map[string]any) ([]schema.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	docs, err := textsplitter.CreateDocuments(trimmed{s}, []string{text}, []map[string]any{metadata})
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Metadata[MetaPosition] = i
	}
	return docs, nil
}

// trimmed adapts Splitter to textsplitter.TextSplitter.
type trimmed struct {
	s *Splitter
}

func (t trimmed) SplitText(text string) ([]string, error) {
	return t.s.Split(text)
}

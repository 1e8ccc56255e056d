// Package rag retrieves passages of the candidate's free-form notes that are
// relevant to each job requirement.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/vectorstores"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/textmatch"
)

const (
	DefaultTopK = 3
	// MaxNotesRunes bounds the notes that are indexed.
	MaxNotesRunes = 15000
)

// Index builds run-scoped collections in a shared store.
type Index struct {
	store    *Store
	embedder ai.Embedder
	splitter *Splitter
	topK     int
	logger   *zap.Logger
}

type Option func(*Index)

func WithTopK(k int) Option {
	return func(x *Index) {
		if k > 0 {
			x.topK = k
		}
	}
}

func WithSplitter(s *Splitter) Option {
	return func(x *Index) {
		if s != nil {
			x.splitter = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(x *Index) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewIndex returns an index over store. A nil embedder disables retrieval:
// every build then yields an empty collection and a warning.
func NewIndex(store *Store, embedder ai.Embedder, opts ...Option) *Index {
	if store == nil {
		store = NewStore()
	}
	x := &Index{
		store:    store,
		embedder: embedder,
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Collection is the notes index of a single run.
type Collection struct {
	id    string
	index *Index
	size  int
}

// Build splits and embeds notes into a fresh collection. It never fails: any
// problem leaves the collection empty and is reported in the warnings.
func (x *Index) Build(ctx context.Context, notes string) (*Collection, []string) {
	c := &Collection{id: uuid.NewString(), index: x}

	var warnings []string
	if x.embedder == nil {
		return c, append(warnings, "retrieval disabled: no embedding provider is configured")
	}

	notes, truncated := textmatch.Truncate(notes, MaxNotesRunes)
	if truncated {
		warnings = append(warnings, fmt.Sprintf("notes exceed %d characters and were truncated", MaxNotesRunes))
	}

	docs, err := x.splitter.Documents(notes, map[string]any{"collection": c.id})
	if err != nil {
		return c, append(warnings, fmt.Sprintf("retrieval disabled: splitting notes failed: %v", err))
	}
	if len(docs) == 0 {
		return c, warnings
	}

	if _, err := x.store.AddDocuments(ctx, docs, c.options()...); err != nil {
		x.logger.Warn("embedding notes failed", zap.String("collection", c.id), zap.Error(err))
		return c, append(warnings, fmt.Sprintf("retrieval disabled: embedding notes failed: %v", err))
	}
	c.size = len(docs)

	x.logger.Debug("notes indexed",
		zap.String("collection", c.id),
		zap.Int("chunks", c.size),
		zap.String("embedder", x.embedder.Model()),
	)
	return c, warnings
}

func (c *Collection) ID() string {
	return c.id
}

// Len is the number of indexed chunks.
func (c *Collection) Len() int {
	return c.size
}

// Retrieve returns, per requirement id, the chunk texts most similar to the
// requirement description. An empty collection yields an empty map.
func (c *Collection) Retrieve(ctx context.Context, reqs []fit.Requirement) (map[string][]string, error) {
	out := make(map[string][]string, len(reqs))
	if c == nil || c.size == 0 || len(reqs) == 0 {
		return out, nil
	}

	for _, r := range reqs {
		docs, err := c.index.store.SimilaritySearch(ctx, r.Description, c.index.topK, c.options()...)
		if err != nil {
			return out, fmt.Errorf("search notes for %s: %w", r.ID, err)
		}
		texts := make([]string, len(docs))
		for j, d := range docs {
			texts[j] = d.PageContent
		}
		out[r.ID] = texts
	}
	return out, nil
}

func (c *Collection) options() []vectorstores.Option {
	return []vectorstores.Option{
		vectorstores.WithNameSpace(c.id),
		vectorstores.WithEmbedder(c.index.embedder),
	}
}

// Close removes the collection from the shared store.
func (c *Collection) Close() {
	if c == nil || c.index == nil {
		return
	}
	c.index.store.Delete(c.id)
}

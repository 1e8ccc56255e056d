package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

var (
	ErrNoNamespace = errors.New("vector store: namespace is required")
	ErrNoEmbedder  = errors.New("vector store: embedder is required")
)

type entry struct {
	doc    schema.Document
	vector []float32
}

// Store is an in-memory vector store shared by concurrent runs. Every run
// writes into its own namespace.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string][]entry
}

var _ vectorstores.VectorStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{namespaces: make(map[string][]entry)}
}

func parseOptions(opts []vectorstores.Option) (vectorstores.Options, error) {
	options := vectorstores.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.NameSpace == "" {
		return options, ErrNoNamespace
	}
	if options.Embedder == nil {
		return options, ErrNoEmbedder
	}
	return options, nil
}

// AddDocuments embeds docs and appends them to the namespace, creating it when
// needed. Nothing is stored when embedding fails.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	options, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}

	if options.Deduplicater != nil {
		kept := docs[:0:0]
		for _, doc := range docs {
			if !options.Deduplicater(ctx, doc) {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := options.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	entries := make([]entry, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		entries[i] = entry{doc: doc, vector: vectors[i]}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[options.NameSpace] = append(s.namespaces[options.NameSpace], entries...)
	return ids, nil
}

type scored struct {
	doc   schema.Document
	score float64
}

// SimilaritySearch returns up to numDocuments documents of the namespace
// ordered by cosine similarity to query, with Score set. Ties keep insertion
// order. A positive score threshold skips documents scoring below it.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	options, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}
	if numDocuments <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	entries := s.namespaces[options.NameSpace]
	s.mu.RUnlock()
	if len(entries) == 0 {
		return nil, nil
	}

	vector, err := options.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]scored, 0, len(entries))
	for _, e := range entries {
		score := cosine(vector, e.vector)
		if options.ScoreThreshold > 0 && score < float64(options.ScoreThreshold) {
			continue
		}
		hits = append(hits, scored{doc: e.doc, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}

	out := make([]schema.Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
		out[i].Score = float32(h.score)
	}
	return out, nil
}

// Delete drops the namespace. Unknown namespaces are ignored.
func (s *Store) Delete(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
}

// Len returns the number of documents in the namespace.
func (s *Store) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// Collections returns the number of live namespaces.
func (s *Store) Collections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

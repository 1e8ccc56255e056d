package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/spigell/fitcheck/internal/fit"
)

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (failingEmbedder) Model() string { return "failing" }

// tableEmbedder returns fixed vectors per text and the zero vector otherwise.
type tableEmbedder map[string][]float32

func (e tableEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e[text]
	}
	return out, nil
}

func (e tableEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e[text], nil
}

func TestSplitterRespectsSizeAndOverlap(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "sentence number %d about Go services. ", i)
	}
	text := sb.String()

	chunks, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap).Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
	}

	// Consecutive chunks share a tail when overlap is configured.
	last := chunks[0][len(chunks[0])-20:]
	assert.Contains(t, chunks[1], last)
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	chunks, err := NewSplitter(50, 0).Split(text)
	require.NoError(t, err)
	assert.Equal(t, []string{strings.Repeat("a", 40), strings.Repeat("b", 40)}, chunks)

	chunks, err = NewSplitter(50, 0).Split("   \n ")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = NewSplitter(50, 10).Split("short note")
	require.NoError(t, err)
	assert.Equal(t, []string{"short note"}, chunks)
}

func TestSplitterHandlesUnbrokenText(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("経", 120)
	chunks, err := NewSplitter(50, 0).Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitterDocumentsCarryPosition(t *testing.T) {
	t.Parallel()

	text := "first paragraph about Go\n\nsecond paragraph about Kubernetes"
	docs, err := NewSplitter(40, 0).Documents(text, map[string]any{"collection": "c1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	for i, doc := range docs {
		assert.Equal(t, i, doc.Metadata[MetaPosition])
		assert.Equal(t, "c1", doc.Metadata["collection"])
	}
	assert.Equal(t, "second paragraph about Kubernetes", docs[1].PageContent)

	docs, err = NewSplitter(40, 0).Documents(" ", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestHashEmbedderIsDeterministic(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(0)
	a, err := e.EmbedDocuments(context.Background(), []string{"Kubernetes operations", "Kubernetes operations"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1])
	assert.Len(t, a[0], defaultHashDim)
	assert.InDelta(t, 1.0, cosine(a[0], a[1]), 1e-6)

	q, err := e.EmbedQuery(context.Background(), "Kubernetes operations")
	require.NoError(t, err)
	assert.Equal(t, a[0], q)

	empty, err := e.EmbedQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, cosine(empty, a[0]))
}

func TestStoreSearchOrdersByCosine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	embedder := tableEmbedder{
		"far":   {0, 1},
		"near":  {1, 0.1},
		"other": {1, 0},
		"query": {1, 0},
	}
	c1 := []vectorstores.Option{vectorstores.WithNameSpace("c1"), vectorstores.WithEmbedder(embedder)}

	s := NewStore()
	ids, err := s.AddDocuments(ctx, []schema.Document{{PageContent: "far"}, {PageContent: "near"}}, c1...)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, err = s.AddDocuments(ctx, []schema.Document{{PageContent: "other"}},
		vectorstores.WithNameSpace("c2"), vectorstores.WithEmbedder(embedder))
	require.NoError(t, err)

	hits, err := s.SimilaritySearch(ctx, "query", 5, c1...)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].PageContent)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = s.SimilaritySearch(ctx, "query", 5, append(c1, vectorstores.WithScoreThreshold(0.5))...)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = s.SimilaritySearch(ctx, "query", 0, c1...)
	require.NoError(t, err)
	assert.Empty(t, hits)

	s.Delete("c1")
	assert.Zero(t, s.Len("c1"))
	assert.Equal(t, 1, s.Collections())
}

func TestStoreRequiresNamespaceAndEmbedder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	docs := []schema.Document{{PageContent: "go"}}
	s := NewStore()

	_, err := s.AddDocuments(ctx, docs, vectorstores.WithEmbedder(NewHashEmbedder(8)))
	assert.ErrorIs(t, err, ErrNoNamespace)
	_, err = s.SimilaritySearch(ctx, "go", 1, vectorstores.WithNameSpace("c1"))
	assert.ErrorIs(t, err, ErrNoEmbedder)

	_, err = s.AddDocuments(ctx, docs, vectorstores.WithNameSpace("c1"), vectorstores.WithEmbedder(failingEmbedder{}))
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Zero(t, s.Collections())
}

func TestIndexRetrievesRelevantChunks(t *testing.T) {
	t.Parallel()

	notes := "Ran Kubernetes cluster operations for five years.\n\nTeaches cooking classes on weekends.\n\nWrote Terraform modules for AWS networking."
	index := NewIndex(NewStore(), NewHashEmbedder(512), WithSplitter(NewSplitter(60, 0)), WithTopK(1))

	c, warnings := index.Build(context.Background(), notes)
	defer c.Close()
	assert.Empty(t, warnings)
	assert.Equal(t, 3, c.Len())

	reqs := []fit.Requirement{
		{ID: "REQ_001", Description: "Kubernetes cluster operations"},
		{ID: "REQ_002", Description: "Terraform on AWS"},
	}
	hits, err := c.Retrieve(context.Background(), reqs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ran Kubernetes cluster operations for five years."}, hits["REQ_001"])
	assert.Equal(t, []string{"Wrote Terraform modules for AWS networking."}, hits["REQ_002"])
}

func TestIndexFailsOpen(t *testing.T) {
	t.Parallel()

	reqs := []fit.Requirement{{ID: "REQ_001", Description: "Go"}}

	disabled := NewIndex(nil, nil)
	c, warnings := disabled.Build(context.Background(), "notes about Go")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no embedding provider")
	hits, err := c.Retrieve(context.Background(), reqs)
	require.NoError(t, err)
	assert.Empty(t, hits)
	c.Close()

	store := NewStore()
	failing := NewIndex(store, failingEmbedder{})
	c, warnings = failing.Build(context.Background(), "notes about Go")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "quota exceeded")
	assert.Zero(t, c.Len())
	assert.Zero(t, store.Collections())
}

func TestIndexTruncatesLongNotes(t *testing.T) {
	t.Parallel()

	store := NewStore()
	index := NewIndex(store, NewHashEmbedder(32))
	c, warnings := index.Build(context.Background(), strings.Repeat("go ", MaxNotesRunes))
	defer c.Close()

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "truncated")
	assert.Greater(t, c.Len(), 0)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewStore()
	index := NewIndex(store, NewHashEmbedder(128))
	req := []fit.Requirement{{ID: "REQ_001", Description: "experience"}}

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			marker := fmt.Sprintf("marker%d", i)
			c, _ := index.Build(context.Background(), marker+" experience with distributed systems")
			defer c.Close()
			hits, err := c.Retrieve(context.Background(), req)
			if err != nil {
				return
			}
			results[i] = hits["REQ_001"]
		}(i)
	}
	wg.Wait()

	for i, hits := range results {
		require.Len(t, hits, 1, "run %d", i)
		assert.True(t, strings.HasPrefix(hits[0], fmt.Sprintf("marker%d ", i)), "run %d saw %q", i, hits[0])
	}
	assert.Zero(t, store.Collections())
}

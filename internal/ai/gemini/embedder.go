package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/fitcheck/internal/ai"
)

// Embedder produces embeddings with the Gemini embedding models.
type Embedder struct {
	models modelsAPI
	model  string
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	models, err := newModels(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return newEmbedder(models, model), nil
}

func newEmbedder(models modelsAPI, model string) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{models: models, model: model}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, errors.New("gemini api returned unexpected number of embeddings")
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding at %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Model() string {
	return e.model
}

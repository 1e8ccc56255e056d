// Package openai provides an embedding backend on top of the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/spigell/fitcheck/internal/ai"
)

const defaultModel = goopenai.SmallEmbedding3

// Config configures the embedder. BaseURL is optional and mostly useful for
// compatible gateways.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Embedder struct {
	client *goopenai.Client
	model  goopenai.EmbeddingModel
}

var _ ai.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg Config) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}

	model := goopenai.EmbeddingModel(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = defaultModel
	}

	return &Embedder{client: goopenai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai api returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai api returned embedding with index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
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
	return string(e.model)
}

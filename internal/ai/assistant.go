// Package ai declares the provider-neutral contracts used by the analysis
// pipeline.
package ai

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/embeddings"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Request is a single completion call.
type Request struct {
	// System is the instruction sent as the system turn.
	System string
	// Prompt is the user turn.
	Prompt string
	// JSON asks the provider for an application/json response.
	JSON bool
	// Temperature is passed through when non-nil.
	Temperature *float32
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Embedder maps texts to vectors of a fixed dimension. Implementations plug
// straight into langchaingo vector stores.
type Embedder interface {
	embeddings.Embedder
	Model() string
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(t float32) *float32 {
	return &t
}

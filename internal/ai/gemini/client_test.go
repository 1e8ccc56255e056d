package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/fitcheck/internal/ai"
)

type fakeModels struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []generateCall
	embedResp *genai.EmbedContentResponse
	embedErr  error
	embedded  []*genai.Content
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.responses = append(f.responses, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.responses[0]
	f.responses = f.responses[1:]
	return res.resp, res.err
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = contents
	return f.embedResp, f.embedErr
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func stubWait(t *testing.T) *[]time.Duration {
	t.Helper()
	original := wait
	var waited []time.Duration
	wait = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	t.Cleanup(func() { wait = original })
	return &waited
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	waited := stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newGenerator(models, Config{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	output, err := g.Generate(context.Background(), ai.Request{System: "system", Prompt: "message", JSON: true, Temperature: ai.Temperature(0.2)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
	if len(*waited) != 1 || (*waited)[0] != baseBackoff {
		t.Fatalf("expected a single base backoff, got %v", *waited)
	}

	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if call.config.ResponseMIMEType != "application/json" {
			t.Fatalf("expected json mime type, got %q", call.config.ResponseMIMEType)
		}
		if call.config.Temperature == nil || *call.config.Temperature != 0.2 {
			t.Fatalf("expected temperature to be passed through")
		}
		if got := call.contents[0].Parts[0].Text; got != "message" {
			t.Fatalf("unexpected prompt: %q", got)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newGenerator(models, Config{MaxRetries: 2}, zap.NewNop())

	_, err := g.Generate(context.Background(), ai.Request{Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(models, Config{MaxRetries: 3}, zap.NewNop())

	if _, err := g.Generate(context.Background(), ai.Request{Prompt: "msg"}); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorHonoursShortQuotaDelay(t *testing.T) {
	waited := stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Message: "Please retry in 1.5s",
	})
	models.enqueue(textResponse("ok"), nil)

	g := newGenerator(models, Config{}, zap.NewNop())

	if _, err := g.Generate(context.Background(), ai.Request{Prompt: "msg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*waited) != 1 || (*waited)[0] != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s wait, got %v", *waited)
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newGenerator(models, Config{}, zap.NewNop())

	if _, err := g.Generate(context.Background(), ai.Request{Prompt: "msg"}); err == nil {
		t.Fatal("expected error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorRejectsEmptyInputAndOutput(t *testing.T) {
	stubWait(t)

	models := &fakeModels{}
	models.enqueue(textResponse("   "), nil)

	g := newGenerator(models, Config{}, zap.NewNop())

	if _, err := g.Generate(context.Background(), ai.Request{Prompt: "  "}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if _, err := g.Generate(context.Background(), ai.Request{Prompt: "msg"}); !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if g.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
}

func TestEmbedder(t *testing.T) {
	models := &fakeModels{embedResp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 0}}, {Values: []float32{0, 1}}},
	}}

	e := newEmbedder(models, "")
	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if len(models.embedded) != 2 || models.embedded[0].Parts[0].Text != "a" {
		t.Fatalf("unexpected embed contents")
	}
	if e.Model() != defaultEmbeddingModel {
		t.Fatalf("expected default embedding model, got %q", e.Model())
	}

	models.embedResp = &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}}}
	if _, err := e.EmbedDocuments(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on count mismatch")
	}
}

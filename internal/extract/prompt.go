// Package extract turns job postings and résumés into requirements and
// evidence, using an LLM when one is configured and keyword rules otherwise.
package extract

import (
	"context"
	"embed"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/llmjson"
)

// ErrNoGenerator is reported when extraction ran on the keyword fallback
// because no LLM is configured.
var ErrNoGenerator = errors.New("no language model configured")

//go:embed prompts/*.md
var promptFS embed.FS

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	requirementsSchema = mustSchema("requirements")
	evidenceSchema     = mustSchema("evidence")
	sectionsSchema     = mustSchema("sections")
)

func mustSchema(name string) *llmjson.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return llmjson.MustCompileSchema(name, string(data))
}

func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		panic(err)
	}
	return string(data)
}

func render(template string, values map[string]string) string {
	return ai.Render(template, values)
}

// complete asks for a deterministic JSON answer.
func complete(ctx context.Context, gen ai.Generator, logger *zap.Logger, task, system, prompt string) (string, error) {
	return ai.Call(ctx, gen, logger, task, ai.Request{
		System:      system,
		Prompt:      prompt,
		JSON:        true,
		Temperature: ai.Temperature(0),
	})
}

package ai

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/utils"
)

const maxPreviewLength = 200

// Render substitutes {{KEY}} placeholders in a prompt template.
func Render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Call runs one request and logs truncated previews of the prompt and the
// response at debug level.
func Call(ctx context.Context, gen Generator, logger *zap.Logger, task string, req Request) (string, error) {
	logger.Debug("llm request",
		zap.String("task", task),
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(req.Prompt, maxPreviewLength)),
	)

	raw, err := gen.Generate(ctx, req)
	if err != nil {
		logger.Debug("llm request failed", zap.String("task", task), zap.Error(err))
		return "", err
	}

	logger.Debug("llm response",
		zap.String("task", task),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, maxPreviewLength)),
	)
	return raw, nil
}

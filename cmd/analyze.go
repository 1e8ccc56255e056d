package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/ai/gemini"
	"github.com/spigell/fitcheck/internal/ai/openai"
	"github.com/spigell/fitcheck/internal/export"
	"github.com/spigell/fitcheck/internal/input"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/pipeline"
	"github.com/spigell/fitcheck/internal/rag"
	"github.com/spigell/fitcheck/internal/scoring"
	"github.com/spigell/fitcheck/internal/secrets"
)

const (
	PromptShowGaps   = "Show prioritized gaps"
	PromptShowEmail  = "Show application e-mail"
	PromptShowReport = "Show full report"
	PromptExport     = "Export workbook"
	PromptDumpToFile = "Dump result to file"
	PromptExit       = "Exit"

	defaultWorkbook = "fitcheck.xlsx"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowGaps, PromptShowEmail, PromptShowReport, PromptExport, PromptDumpToFile, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze how a résumé fits a job posting",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("job", "", "job posting file (text or HTML)")
	analyzeCmd.Flags().String("resume", "", "résumé file")
	analyzeCmd.Flags().String("notes", "", "optional notes searched for additional evidence")
	analyzeCmd.Flags().String("company", "", "optional file with information about the company")
	analyzeCmd.Flags().StringSlice("emphasis", nil, "emphasis axes that earn a bonus, e.g. \"Technical Strength\"")
	analyzeCmd.Flags().Bool("strict", false, "extract only explicitly stated requirements")
	analyzeCmd.Flags().Bool("no-verify", false, "do not verify quotes against the résumé")
	analyzeCmd.Flags().Bool("no-generators", false, "skip improvements, interview questions, e-mail and reviews")
	analyzeCmd.Flags().String("output-json", "", "write the result as JSON")
	analyzeCmd.Flags().String("output-md", "", "write the result as a Markdown report")
	analyzeCmd.Flags().String("output-xlsx", "", "write the result as an XLSX workbook")
	analyzeCmd.Flags().BoolP("yes", "y", false, "do not show the interactive menu after the analysis")

	analyzeCmd.MarkFlagRequired("job")
	analyzeCmd.MarkFlagRequired("resume")
}

func analyze(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the fitcheck", zap.String("version", version))

	applyFlags(cmd, config)

	// do not bother error since the config was decoded already
	pretty, _ := json.MarshalIndent(config.Analysis, "", "  ")
	logger.Debug(fmt.Sprintf("starting with analysis options: \n %s", pretty))

	in, err := loadInput(cmd)
	if err != nil {
		logger.Fatal("reading input files", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	analyzer := newAnalyzer(ctx, config, logger)

	result, err := analyzer.Analyze(ctx, in, config.Analysis)
	if err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}

	logger.Info("fit score",
		zap.Int("total", result.Score.Total),
		zap.Int("must", result.Score.Must),
		zap.Int("want", result.Score.Want),
		zap.String("summary", result.Score.Summary),
	)
	for _, w := range result.Warnings {
		logger.Warn("analysis warning", zap.String("warning", w))
	}

	if err := writeOutputs(cmd, result, logger); err != nil {
		logger.Fatal("writing outputs", zap.Error(err))
	}

	if cmd.Flag("yes").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// applyFlags lets explicitly set flags win over the configuration file.
func applyFlags(cmd *cobra.Command, config *Config) {
	flags := cmd.Flags()
	if flags.Changed("emphasis") {
		config.Analysis.EmphasisAxes, _ = flags.GetStringSlice("emphasis")
	}
	if flags.Changed("strict") {
		config.Analysis.Strict, _ = flags.GetBool("strict")
	}
	if v, _ := flags.GetBool("no-verify"); v {
		config.Analysis.VerifyQuotes = false
	}
	if v, _ := flags.GetBool("no-generators"); v {
		config.Analysis.Generators = false
	}
}

func loadInput(cmd *cobra.Command) (pipeline.Input, error) {
	var in pipeline.Input
	files := []struct {
		flag string
		dst  *string
	}{
		{"job", &in.Job},
		{"resume", &in.Resume},
		{"notes", &in.Notes},
		{"company", &in.Company},
	}

	for _, f := range files {
		path, _ := cmd.Flags().GetString(f.flag)
		text, err := input.LoadFile(path)
		if err != nil {
			return in, fmt.Errorf("%s: %w", f.flag, err)
		}
		*f.dst = text
	}
	return in, nil
}

// newAnalyzer wires the providers from config. A provider that cannot be
// created is logged and left out.
func newAnalyzer(ctx context.Context, config *Config, logger *zap.Logger) *pipeline.Analyzer {
	deps := pipeline.Deps{
		Keywords: scoring.DefaultKeywords().Merge(config.EmphasisKeywords),
		Logger:   logger,
	}

	var err error
	deps.Generator, err = newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("language model disabled, keyword rules and templates will be used",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file in the configuration file"),
		)
	}

	deps.Embedder, err = newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Warn("embeddings disabled, notes will not be searched", zap.Error(err))
	}
	if deps.Embedder != nil {
		deps.EmbeddingProvider = strings.ToLower(config.Embedding.Provider)
	}

	return pipeline.New(deps)
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai is disabled in the configuration")
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := geminiKey(cfg.Gemini)
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:       apiKey,
		Model:        cfg.Gemini.Model,
		MaxRetries:   cfg.Gemini.MaxRetries,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}, logger.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries)))
	if err != nil {
		return nil, err
	}
	return generator, nil
}

func newEmbedder(ctx context.Context, config *Config, logger *zap.Logger) (ai.Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(config.Embedding.Provider))
	logger.Debug("preparing embeddings", zap.String("provider", provider))

	switch provider {
	case "", "none":
		return nil, nil
	case "hash":
		return rag.NewHashEmbedder(0), nil
	case "gemini":
		gcfg := &GeminiConfig{}
		if config.AI != nil && config.AI.Gemini != nil {
			gcfg = config.AI.Gemini
		}
		apiKey, err := geminiKey(gcfg)
		if err != nil {
			return nil, err
		}
		embedder, err := gemini.NewEmbedder(ctx, apiKey, gcfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		return embedder, nil
	case "openai":
		ocfg := config.Embedding.OpenAI
		if ocfg == nil {
			ocfg = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: ocfg.APIKey,
			File:  ocfg.APIKeyFile,
			Env:   []string{"OPENAI_API_KEY"},
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		embedder, err := openai.NewEmbedder(openai.Config{APIKey: apiKey, Model: ocfg.Model, BaseURL: ocfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}
}

func geminiKey(cfg *GeminiConfig) (string, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}
	return apiKey, nil
}

func writeOutputs(cmd *cobra.Command, result pipeline.AnalysisResult, logger *zap.Logger) error {
	writers := []struct {
		flag  string
		write func(string, pipeline.AnalysisResult) error
	}{
		{"output-json", export.SaveJSON},
		{"output-md", export.SaveMarkdown},
		{"output-xlsx", export.SaveXLSX},
	}

	for _, w := range writers {
		path, _ := cmd.Flags().GetString(w.flag)
		if path == "" {
			continue
		}
		if err := w.write(path, result); err != nil {
			return err
		}
		logger.Info("result written", zap.String("filename", path))
	}
	return nil
}

func handleAction(action string, result pipeline.AnalysisResult, logger *zap.Logger) error {
	switch action {
	case PromptShowGaps:
		pretty, _ := json.MarshalIndent(result.PrioritizedGaps, "", "  ")
		logger.Info(string(pretty), zap.Int("gaps count", len(result.PrioritizedGaps)))
		return nil
	case PromptShowEmail:
		if result.Email == nil {
			logger.Info("no application e-mail in the result", zap.String("hint", "run without --no-generators"))
			return nil
		}
		fmt.Fprintf(os.Stdout, "Subject: %s\n\n%s\n", result.Email.Subject, result.Email.Body)
		return nil
	case PromptShowReport:
		return export.WriteMarkdown(os.Stdout, result)
	case PromptExport:
		return exportWorkbook(result, logger)
	case PromptDumpToFile:
		filename, err := export.DumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func exportWorkbook(result pipeline.AnalysisResult, logger *zap.Logger) error {
	filePrompt := promptui.Prompt{
		Label:   "Workbook file",
		Default: defaultWorkbook,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("file name is required")
			}
			return nil
		},
	}

	path, err := filePrompt.Run()
	if err != nil {
		return err
	}

	if err := export.SaveXLSX(strings.TrimSpace(path), result); err != nil {
		return err
	}
	logger.Info("workbook written", zap.String("filename", path))
	return nil
}

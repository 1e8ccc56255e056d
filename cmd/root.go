package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/fitcheck/internal/pipeline"
)

const (
	app = "fitcheck"

	defaultTimeout = 5 * time.Minute
)

type Config struct {
	AI        *AIConfig        `mapstructure:"ai"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Analysis  pipeline.Options `mapstructure:"analysis"`
	// EmphasisKeywords adds or replaces emphasis axes and their words.
	EmphasisKeywords map[string][]string `mapstructure:"emphasis-keywords"`
	Timeout          time.Duration       `mapstructure:"timeout"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type EmbeddingConfig struct {
	// Provider is one of gemini, openai or hash.
	Provider string        `mapstructure:"provider"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "fitcheck scores how well a résumé fits a job posting and suggests what to do about the gaps",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.gemini.api-key-file":        "GEMINI_API_KEY_FILE",
		"embedding.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"embedding.provider":            "FITCHECK_EMBEDDING_PROVIDER",
		"timeout":                       "FITCHECK_TIMEOUT",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is fitcheck.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Variables from .env must be visible before secrets are resolved.
	_ = godotenv.Load()

	if analyzeCmd.CalledAs() == "" && evalCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		AI:        &AIConfig{Enabled: true, Gemini: &GeminiConfig{}},
		Embedding: &EmbeddingConfig{Provider: "gemini", OpenAI: &OpenAIConfig{}},
		Analysis:  pipeline.DefaultOptions(),
		Timeout:   defaultTimeout,
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.AllSettings())
}

// decodeConfig lays settings over the defaults. Durations and comma separated
// lists may be given as strings.
func decodeConfig(settings map[string]any) (*Config, error) {
	config := defaultConfig()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, err
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return config, nil
}

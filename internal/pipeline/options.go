package pipeline

import "github.com/spigell/fitcheck/internal/scoring"

const (
	DefaultMaxMust = 10
	DefaultMaxWant = 10
)

// Options tune a single run.
type Options struct {
	MaxMust int `mapstructure:"max-must" validate:"min=1,max=40"`
	MaxWant int `mapstructure:"max-want" validate:"min=1,max=40"`
	MaxGaps int `mapstructure:"max-gaps" validate:"min=1,max=40"`
	// Strict asks the requirement extractor to skip anything implicit.
	Strict       bool     `mapstructure:"strict-mode"`
	EmphasisAxes []string `mapstructure:"emphasis-axes" validate:"max=10,dive,required"`
	VerifyQuotes bool     `mapstructure:"verify-quotes"`
	// StructureResume sections the résumé before evidence extraction.
	StructureResume bool `mapstructure:"structure-resume"`
	Generators      bool `mapstructure:"generators"`
}

// DefaultOptions verifies quotes and runs every generator.
func DefaultOptions() Options {
	return Options{
		MaxMust:         DefaultMaxMust,
		MaxWant:         DefaultMaxWant,
		MaxGaps:         scoring.DefaultMaxGaps,
		VerifyQuotes:    true,
		StructureResume: true,
		Generators:      true,
	}
}

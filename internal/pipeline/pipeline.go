// Package pipeline runs one fit analysis as a sequence of named stages over a
// per-run state and assembles the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/ai"
	"github.com/spigell/fitcheck/internal/extract"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/generate"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/rag"
	"github.com/spigell/fitcheck/internal/retry"
	"github.com/spigell/fitcheck/internal/scoring"
)

const noProvider = "none"

// Stage is a single step of an analysis run. Stages keep no state of their
// own so one Analyzer can serve concurrent runs.
type Stage interface {
	Name() string
	// Skip returns a non-empty reason when the stage has nothing to do for
	// this run.
	Skip(st *State) string
	Apply(ctx context.Context, st *State) (Step, error)
}

// Step describes the result of executing a stage.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// StageStatus records what a stage did in a run.
type StageStatus struct {
	Name    string `json:"name"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

// Input is the raw material of a run.
type Input struct {
	Job     string
	Resume  string
	Notes   string
	Company string
}

// Deps are the collaborators an Analyzer is built from. Generator and
// Embedder may be nil; the run then uses the keyword fallbacks and skips
// retrieval.
type Deps struct {
	Generator         ai.Generator
	Embedder          ai.Embedder
	EmbeddingProvider string
	Store             *rag.Store
	Keywords          scoring.Keywords
	Policy            retry.Policy
	Logger            *zap.Logger
}

// Analyzer turns a job posting and a résumé into an AnalysisResult.
type Analyzer struct {
	requirements *extract.RequirementExtractor
	evidence     *extract.EvidenceExtractor
	index        *rag.Index
	scorer       *scoring.Engine
	generators   *generate.Service

	model             string
	embeddingProvider string

	stages   []Stage
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// New wires an Analyzer from deps.
func New(deps Deps) *Analyzer {
	log := logger.WithFields(deps.Logger)

	policy := deps.Policy
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy()
	}

	store := deps.Store
	if store == nil {
		store = rag.NewStore()
	}

	keywords := deps.Keywords
	if keywords == nil {
		keywords = scoring.DefaultKeywords()
	}

	a := &Analyzer{
		requirements:      extract.NewRequirementExtractor(deps.Generator, policy, log),
		evidence:          extract.NewEvidenceExtractor(deps.Generator, policy, log),
		index:             rag.NewIndex(store, deps.Embedder, rag.WithLogger(log)),
		scorer:            scoring.New(keywords),
		generators:        generate.New(deps.Generator, policy, log),
		model:             noProvider,
		embeddingProvider: deps.EmbeddingProvider,
		validate:          validator.New(),
		logger:            log.Named("pipeline"),
		now:               time.Now,
	}

	if deps.Generator != nil {
		a.model = deps.Generator.Model()
	}
	switch {
	case deps.Embedder == nil:
		a.embeddingProvider = noProvider
	case a.embeddingProvider == "":
		a.embeddingProvider = deps.Embedder.Model()
	}

	a.stages = []Stage{
		inputStage{},
		requirementsStage{a},
		retrievalStage{a},
		sectionsStage{a},
		evidenceStage{a},
		verificationStage{a},
		completionStage{},
		scoringStage{a},
		generatorsStage{a},
	}
	return a
}

// Stages lists the stage names in execution order.
func (a *Analyzer) Stages() []string {
	names := make([]string, 0, len(a.stages))
	for _, s := range a.stages {
		names = append(names, s.Name())
	}
	return names
}

// Analyze runs every stage in order. Input and requirement validation
// failures stop the run; retrieval and generator failures only leave
// warnings or absent parts.
func (a *Analyzer) Analyze(ctx context.Context, in Input, opts Options) (AnalysisResult, error) {
	if err := a.validate.Struct(opts); err != nil {
		return AnalysisResult{}, fmt.Errorf("invalid options: %w", err)
	}

	st := &State{
		Input:   in,
		Options: opts,
		Meta: ExecutionMeta{
			RunID:             uuid.NewString(),
			Model:             a.model,
			EmbeddingProvider: a.embeddingProvider,
			StartedAt:         a.now(),
		},
		Retrieved: map[string][]string{},
	}
	runLogger := logger.ForRun(a.logger, st.Meta.RunID)
	runLogger.Info("analysis started",
		zap.String(logger.FieldModel, st.Meta.Model),
		zap.String("embedding_provider", st.Meta.EmbeddingProvider),
	)

	for _, stage := range a.stages {
		if err := ctx.Err(); err != nil {
			return AnalysisResult{}, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		stageLogger := logger.ForStage(runLogger, stage.Name())
		if reason := stage.Skip(st); reason != "" {
			stageLogger.Info("stage skipped", zap.String("reason", reason))
			st.Meta.Stages = append(st.Meta.Stages, StageStatus{Name: stage.Name(), Skipped: true, Reason: reason})
			continue
		}

		info, err := stage.Apply(ctx, st)
		if err != nil {
			stageLogger.Warn("stage failed", zap.Error(err))
			return AnalysisResult{}, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		stageLogger.Info("pipeline step",
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		st.Meta.Stages = append(st.Meta.Stages, StageStatus{
			Name:    stage.Name(),
			Initial: info.Initial,
			Dropped: info.Dropped,
			Left:    info.Left,
		})
	}

	st.Meta.FinishedAt = a.now()
	result := st.result()
	runLogger.Info("analysis finished",
		zap.Int("total", result.Score.Total),
		zap.Int("must", result.Score.Must),
		zap.Int("want", result.Score.Want),
		zap.Int("gaps", len(result.Score.Gaps)),
		zap.Duration("took", st.Meta.FinishedAt.Sub(st.Meta.StartedAt)),
	)
	return result, nil
}

// State is the mutable per-run data the stages share.
type State struct {
	Input   Input
	Options Options

	Warnings         []string
	RetrievalWarning string

	Requirements []fit.Requirement
	Retrieved    map[string][]string
	Sections     []extract.Section
	Evidence     []fit.Evidence

	Score fit.ScoreResult
	Gaps  []fit.Gap

	Improvements *fit.Improvements
	InterviewQA  []fit.InterviewQA
	Email        *fit.ApplicationEmail
	Quality      *fit.QualityEvaluation
	Judge        *fit.JudgeEvaluation

	Meta ExecutionMeta
}

func (st *State) warn(msg string) {
	st.Warnings = append(st.Warnings, msg)
}

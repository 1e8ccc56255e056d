package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitcheck/internal/export"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/input"
	"github.com/spigell/fitcheck/internal/logger"
	"github.com/spigell/fitcheck/internal/pipeline"
)

const (
	evalResume     = "resume.txt"
	evalJobPattern = "job*.txt"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score every job posting of a directory against the résumé next to them",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().String("dir", "eval", "directory with job*.txt files and resume.txt")
	evalCmd.Flags().String("out", filepath.Join("eval", "outputs"), "directory for the per-job JSON results")
}

func evaluate(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the fitcheck evaluation", zap.String("version", version))

	dir, _ := cmd.Flags().GetString("dir")
	out, _ := cmd.Flags().GetString("out")

	e := evaluation{
		analyzer: newAnalyzer(context.Background(), config, logger),
		options:  config.Analysis,
		timeout:  config.Timeout,
		logger:   logger,
	}

	report, err := e.run(context.Background(), dir, out)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}
	report.log(logger)
}

// evaluation analyzes each job posting of a directory against one résumé.
type evaluation struct {
	analyzer *pipeline.Analyzer
	options  pipeline.Options
	// timeout bounds every single analysis.
	timeout time.Duration
	logger  *zap.Logger
}

type evalScore struct {
	Job   string
	Total int
	Must  int
	Want  int
	Judge *fit.JudgeScores
	Err   error
}

type evalReport struct {
	Succeeded int
	Failed    int
	Scores    []evalScore
}

// run writes <job>.json into out for every job*.txt in dir. A failed job is
// counted and logged; only problems with the directory itself are errors.
func (e evaluation) run(ctx context.Context, dir, out string) (evalReport, error) {
	var report evalReport

	resume, err := input.LoadFile(filepath.Join(dir, evalResume))
	if err != nil {
		return report, err
	}

	jobs, err := filepath.Glob(filepath.Join(dir, evalJobPattern))
	if err != nil {
		return report, err
	}
	if len(jobs) == 0 {
		return report, fmt.Errorf("no %s files in %s", evalJobPattern, dir)
	}
	sort.Strings(jobs)

	if err := os.MkdirAll(out, 0o755); err != nil {
		return report, fmt.Errorf("create %s: %w", out, err)
	}

	for _, job := range jobs {
		name := strings.TrimSuffix(filepath.Base(job), filepath.Ext(job))
		score := e.one(ctx, job, resume, filepath.Join(out, name+".json"))
		score.Job = name

		if score.Err != nil {
			e.logger.Error("job evaluation failed", zap.String("job", name), zap.Error(score.Err))
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Scores = append(report.Scores, score)
	}
	return report, nil
}

func (e evaluation) one(ctx context.Context, job, resume, dst string) evalScore {
	if err := ctx.Err(); err != nil {
		return evalScore{Err: err}
	}

	text, err := input.LoadFile(job)
	if err != nil {
		return evalScore{Err: err}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("evaluating", zap.String("job", filepath.Base(job)))
	result, err := e.analyzer.Analyze(ctx, pipeline.Input{Job: text, Resume: resume}, e.options)
	if err != nil {
		return evalScore{Err: err}
	}

	if err := export.SaveJSON(dst, result); err != nil {
		return evalScore{Err: err}
	}
	e.logger.Info("result written", zap.String("filename", dst))

	score := evalScore{
		Total: result.Score.Total,
		Must:  result.Score.Must,
		Want:  result.Score.Want,
	}
	if result.Judge != nil {
		judge := result.Judge.Scores
		score.Judge = &judge
	}
	return score
}

// judgeMean averages the three judge criteria.
func (s evalScore) judgeMean() (float64, bool) {
	if s.Judge == nil {
		return 0, false
	}
	return (s.Judge.Convincing + s.Judge.Grounding + s.Judge.NoExaggeration) / 3, true
}

func (r evalReport) log(logger *zap.Logger) {
	logger.Info("evaluation summary",
		zap.Int("success", r.Succeeded),
		zap.Int("error", r.Failed),
	)

	for _, s := range r.Scores {
		if s.Err != nil {
			continue
		}
		fields := []zap.Field{
			zap.String("job", s.Job),
			zap.Int("total", s.Total),
			zap.Int("must", s.Must),
			zap.Int("want", s.Want),
		}
		if mean, ok := s.judgeMean(); ok {
			fields = append(fields, zap.Float64("judge", mean))
		}
		logger.Info("evaluation score", fields...)
	}
}

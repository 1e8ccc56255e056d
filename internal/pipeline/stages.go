package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/fitcheck/internal/evidence"
	"github.com/spigell/fitcheck/internal/extract"
	"github.com/spigell/fitcheck/internal/fit"
	"github.com/spigell/fitcheck/internal/generate"
	"github.com/spigell/fitcheck/internal/input"
	"github.com/spigell/fitcheck/internal/requirements"
	"github.com/spigell/fitcheck/internal/scoring"
)

type inputStage struct{}

func (inputStage) Name() string { return "input" }

func (inputStage) Skip(*State) string { return "" }

func (inputStage) Apply(_ context.Context, st *State) (Step, error) {
	warnings, err := input.ValidateTexts(st.Input.Job, st.Input.Resume)
	if err != nil {
		return Step{}, err
	}
	for _, w := range warnings {
		st.warn(w)
	}
	return Step{Initial: 2, Left: 2}, nil
}

type requirementsStage struct{ a *Analyzer }

func (requirementsStage) Name() string { return "requirements" }

func (requirementsStage) Skip(*State) string { return "" }

func (s requirementsStage) Apply(ctx context.Context, st *State) (Step, error) {
	out := s.a.requirements.Extract(ctx, st.Input.Job, extract.RequirementOptions{
		MaxMust:        st.Options.MaxMust,
		MaxWant:        st.Options.MaxWant,
		Strict:         st.Options.Strict,
		CompanyContext: st.Input.Company,
	})
	st.Meta.RequirementAttempts = out.Attempts
	st.Meta.RequirementFallback = out.FellBack
	if out.FellBack {
		st.warn("requirements were extracted with keyword rules")
	}

	reqs := requirements.Dedupe(out.Value)
	reqs = requirements.Limit(reqs, st.Options.MaxMust, st.Options.MaxWant)
	reqs = requirements.Renumber(reqs)
	if err := requirements.Validate(reqs); err != nil {
		return Step{}, err
	}

	st.Requirements = reqs
	return Step{Initial: len(out.Value), Dropped: len(out.Value) - len(reqs), Left: len(reqs)}, nil
}

type retrievalStage struct{ a *Analyzer }

func (retrievalStage) Name() string { return "retrieval" }

func (retrievalStage) Skip(st *State) string {
	if strings.TrimSpace(st.Input.Notes) == "" {
		return "no notes provided"
	}
	return ""
}

// Apply never fails: problems are reported as the retrieval warning and the
// run continues without hints.
func (s retrievalStage) Apply(ctx context.Context, st *State) (Step, error) {
	collection, warnings := s.a.index.Build(ctx, st.Input.Notes)
	defer collection.Close()

	retrieved, err := collection.Retrieve(ctx, st.Requirements)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("retrieval disabled: %v", err))
		retrieved = map[string][]string{}
	}

	st.Retrieved = retrieved
	if len(warnings) > 0 {
		st.RetrievalWarning = strings.Join(warnings, "; ")
		for _, w := range warnings {
			st.warn(w)
		}
	}

	hits := 0
	for _, r := range st.Requirements {
		if len(retrieved[r.ID]) > 0 {
			hits++
		}
	}
	return Step{Initial: len(st.Requirements), Dropped: len(st.Requirements) - hits, Left: hits}, nil
}

type sectionsStage struct{ a *Analyzer }

func (sectionsStage) Name() string { return "resume_sections" }

func (s sectionsStage) Skip(st *State) string {
	switch {
	case !st.Options.StructureResume:
		return "disabled by options"
	case !s.a.evidence.Enabled():
		return "no language model configured"
	}
	return ""
}

func (s sectionsStage) Apply(ctx context.Context, st *State) (Step, error) {
	st.Sections = s.a.evidence.StructureResume(ctx, st.Input.Resume)
	return Step{Left: len(st.Sections)}, nil
}

type evidenceStage struct{ a *Analyzer }

func (evidenceStage) Name() string { return "evidence" }

func (evidenceStage) Skip(*State) string { return "" }

func (s evidenceStage) Apply(ctx context.Context, st *State) (Step, error) {
	out := s.a.evidence.Extract(ctx, extract.EvidenceInput{
		Resume:       st.Input.Resume,
		Requirements: st.Requirements,
		Retrieved:    st.Retrieved,
		Sections:     st.Sections,
	})
	st.Meta.EvidenceAttempts = out.Attempts
	st.Meta.EvidenceFallback = out.FellBack
	if out.FellBack {
		st.warn("evidence was extracted with keyword rules")
	}

	st.Evidence = evidence.Annotate(out.Value, st.Input.Resume, st.Retrieved)

	missing := len(st.Requirements) - len(st.Evidence)
	if missing < 0 {
		missing = 0
	}
	return Step{Initial: len(st.Requirements), Dropped: missing, Left: len(st.Evidence)}, nil
}

type verificationStage struct{ a *Analyzer }

func (verificationStage) Name() string { return "verification" }

func (verificationStage) Skip(st *State) string {
	if !st.Options.VerifyQuotes {
		return "quote verification disabled"
	}
	return ""
}

func (s verificationStage) Apply(ctx context.Context, st *State) (Step, error) {
	verified := evidence.Verify(st.Evidence, st.Input.Resume, st.Retrieved)

	downgraded := 0
	for i := range verified {
		if len(verified[i].Quotes) != len(st.Evidence[i].Quotes) {
			downgraded++
		}
	}

	if ids := evidence.ReextractionCandidates(verified); len(ids) > 0 && s.a.evidence.Enabled() {
		verified = s.reextract(ctx, st, verified, ids)
	}

	st.Evidence = verified
	return Step{Initial: len(verified), Dropped: downgraded, Left: len(verified) - downgraded}, nil
}

// reextract gives requirements whose quotes all failed one more extraction.
// Failures keep the verified evidence.
func (s verificationStage) reextract(ctx context.Context, st *State, verified []fit.Evidence, ids []string) []fit.Evidence {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	subset := make([]fit.Requirement, 0, len(ids))
	for _, r := range st.Requirements {
		if wanted[r.ID] {
			subset = append(subset, r)
		}
	}

	redo, err := s.a.evidence.Reextract(ctx, extract.EvidenceInput{
		Resume:       st.Input.Resume,
		Requirements: subset,
		Retrieved:    st.Retrieved,
		Sections:     st.Sections,
	})
	if err != nil {
		s.a.logger.Debug("evidence re-extraction failed", zap.Strings("requirements", ids), zap.Error(err))
		return verified
	}

	for i, ev := range redo {
		redo[i] = evidence.VerifyOne(ev, st.Input.Resume, st.Retrieved[ev.RequirementID])
	}
	s.a.logger.Debug("evidence re-extracted", zap.Strings("requirements", ids), zap.Int("returned", len(redo)))
	return evidence.Replace(verified, redo)
}

// completionStage re-attributes quotes after verification and makes sure
// every requirement has exactly one evidence.
type completionStage struct{}

func (completionStage) Name() string { return "completion" }

func (completionStage) Skip(*State) string { return "" }

func (completionStage) Apply(_ context.Context, st *State) (Step, error) {
	initial := len(st.Evidence)
	annotated := evidence.Annotate(st.Evidence, st.Input.Resume, st.Retrieved)
	st.Evidence = evidence.EnsureAll(annotated, st.Requirements)
	return Step{Initial: initial, Left: len(st.Evidence)}, nil
}

type scoringStage struct{ a *Analyzer }

func (scoringStage) Name() string { return "scoring" }

func (scoringStage) Skip(*State) string { return "" }

func (s scoringStage) Apply(_ context.Context, st *State) (Step, error) {
	st.Score = s.a.scorer.Score(st.Requirements, evidence.ByRequirement(st.Evidence), st.Options.EmphasisAxes)
	st.Gaps = scoring.Prioritize(st.Score.Gaps, st.Options.MaxGaps)
	return Step{
		Initial: len(st.Requirements),
		Dropped: len(st.Score.Gaps),
		Left:    len(st.Score.Matched),
	}, nil
}

const generatorCount = 5

type generatorsStage struct{ a *Analyzer }

func (generatorsStage) Name() string { return "generators" }

func (generatorsStage) Skip(st *State) string {
	if !st.Options.Generators {
		return "generators disabled"
	}
	return ""
}

// Apply runs improvements and interview Q&A side by side, then the e-mail
// and both evaluations, which depend on them. A generator that fails leaves
// its part of the result nil.
func (s generatorsStage) Apply(ctx context.Context, st *State) (Step, error) {
	svc := s.a.generators
	in := generate.Context{
		JobText:     st.Input.Job,
		ResumeText:  st.Input.Resume,
		CompanyInfo: st.Input.Company,
		Summary:     st.Score.Summary,
		Matched:     st.Score.Matched,
		Gaps:        st.Gaps,
	}

	failed := s.run(
		generatorTask{"improvements", func() error {
			imp, err := svc.Improvements(ctx, in)
			if err != nil {
				return err
			}
			st.Improvements = &imp
			return nil
		}},
		generatorTask{"interview_qa", func() error {
			qa, err := svc.InterviewQA(ctx, in)
			if err != nil {
				return err
			}
			st.InterviewQA = qa
			return nil
		}},
	)

	failed += s.run(
		generatorTask{"email", func() error {
			email, err := svc.Email(ctx, in, st.Improvements)
			if err != nil {
				return err
			}
			st.Email = &email
			return nil
		}},
		generatorTask{"quality", func() error {
			q, err := svc.Quality(ctx, in, st.Improvements, st.InterviewQA)
			if err != nil {
				return err
			}
			st.Quality = &q
			return nil
		}},
		generatorTask{"judge", func() error {
			j, err := svc.Judge(ctx, in, st.Improvements, st.InterviewQA)
			if err != nil {
				return err
			}
			st.Judge = &j
			return nil
		}},
	)

	return Step{Initial: generatorCount, Dropped: failed, Left: generatorCount - failed}, nil
}

// generatorTask stores its output in the run state only when it succeeds.
type generatorTask struct {
	name string
	run  func() error
}

// run executes tasks concurrently and returns how many failed. Every failure
// is logged here; none of them fails the stage.
func (s generatorsStage) run(tasks ...generatorTask) int {
	errs := make([]error, len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			errs[i] = task.run()
			return errs[i]
		})
	}
	if g.Wait() == nil {
		return 0
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		s.a.logger.Warn("generator failed", zap.String("task", tasks[i].name), zap.Error(err))
		failed++
	}
	return failed
}

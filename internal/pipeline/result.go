package pipeline

import (
	"slices"
	"time"

	"github.com/spigell/fitcheck/internal/fit"
)

// ExecutionMeta describes how a result was produced.
type ExecutionMeta struct {
	RunID               string        `json:"run_id"`
	Model               string        `json:"model"`
	EmbeddingProvider   string        `json:"embedding_provider"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at"`
	RequirementAttempts int           `json:"requirement_attempts"`
	EvidenceAttempts    int           `json:"evidence_attempts"`
	RequirementFallback bool          `json:"requirement_fallback"`
	EvidenceFallback    bool          `json:"evidence_fallback"`
	Stages              []StageStatus `json:"stages"`
}

// AnalysisResult is the outcome of a run. Optional parts are nil when the
// generator was disabled or failed.
type AnalysisResult struct {
	Requirements     []fit.Requirement      `json:"requirements"`
	Evidence         []fit.Evidence         `json:"evidence"`
	Score            fit.ScoreResult        `json:"score"`
	PrioritizedGaps  []fit.Gap              `json:"prioritized_gaps"`
	RetrievalWarning string                 `json:"retrieval_warning,omitempty"`
	Warnings         []string               `json:"warnings"`
	Improvements     *fit.Improvements      `json:"improvements,omitempty"`
	InterviewQA      []fit.InterviewQA      `json:"interview_qa,omitempty"`
	Email            *fit.ApplicationEmail  `json:"email,omitempty"`
	Quality          *fit.QualityEvaluation `json:"quality,omitempty"`
	Judge            *fit.JudgeEvaluation   `json:"judge,omitempty"`
	Meta             ExecutionMeta          `json:"meta"`
}

// EvidenceFor returns the evidence of a requirement.
func (r AnalysisResult) EvidenceFor(requirementID string) (fit.Evidence, bool) {
	for _, ev := range r.Evidence {
		if ev.RequirementID == requirementID {
			return ev, true
		}
	}
	return fit.Evidence{}, false
}

// result copies the state so the returned value shares no slices with it.
func (st *State) result() AnalysisResult {
	evs := make([]fit.Evidence, len(st.Evidence))
	for i, ev := range st.Evidence {
		evs[i] = ev.Clone()
	}

	warnings := slices.Clone(st.Warnings)
	if warnings == nil {
		warnings = []string{}
	}

	meta := st.Meta
	meta.Stages = slices.Clone(st.Meta.Stages)

	return AnalysisResult{
		Requirements:     slices.Clone(st.Requirements),
		Evidence:         evs,
		Score:            st.Score,
		PrioritizedGaps:  slices.Clone(st.Gaps),
		RetrievalWarning: st.RetrievalWarning,
		Warnings:         warnings,
		Improvements:     st.Improvements,
		InterviewQA:      slices.Clone(st.InterviewQA),
		Email:            st.Email,
		Quality:          st.Quality,
		Judge:            st.Judge,
		Meta:             meta,
	}
}

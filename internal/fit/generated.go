package fit

// EditType is the kind of résumé change an improvement suggests.
type EditType string

const (
	EditAdd       EditType = "add"
	EditEmphasize EditType = "emphasize"
	EditRewrite   EditType = "rewrite"
)

// ResumeEdit suggests a change to the résumé for one gap.
type ResumeEdit struct {
	TargetGap string   `json:"target_gap"`
	EditType  EditType `json:"edit_type"`
	Template  string   `json:"template"`
	Example   string   `json:"example"`
}

// ActionItem is a concrete step the candidate can take.
type ActionItem struct {
	Priority        string `json:"priority"`
	Action          string `json:"action"`
	Rationale       string `json:"rationale"`
	EstimatedImpact string `json:"estimated_impact"`
}

type Improvements struct {
	ResumeEdits     []ResumeEdit `json:"resume_edits"`
	ActionItems     []ActionItem `json:"action_items"`
	OverallStrategy string       `json:"overall_strategy"`
}

type InterviewQA struct {
	Question      string   `json:"question"`
	AnswerOutline []string `json:"answer_outline"`
}

type ApplicationEmail struct {
	Subject               string   `json:"subject"`
	Body                  string   `json:"body"`
	AttachmentSuggestions []string `json:"attachment_suggestions"`
	Tips                  []string `json:"tips"`
}

type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// QualityEvaluation is a self-review of the generated analysis.
type QualityEvaluation struct {
	OverallScore      float64          `json:"overall_score"`
	CriterionScores   []CriterionScore `json:"criterion_scores"`
	ImprovementPoints []string         `json:"improvement_points"`
}

type JudgeScores struct {
	Convincing     float64 `json:"convincing"`
	Grounding      float64 `json:"grounding"`
	NoExaggeration float64 `json:"no_exaggeration"`
}

// JudgeEvaluation rates how convincing, grounded and restrained the output is.
type JudgeEvaluation struct {
	Scores         JudgeScores `json:"scores"`
	Issues         []string    `json:"issues"`
	FixSuggestions []string    `json:"fix_suggestions"`
}

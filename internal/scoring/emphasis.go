package scoring

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spigell/fitcheck/internal/fit"
)

const (
	bonusPerAxis = 0.05
	maxBonus     = 0.1
)

// Keywords maps an emphasis axis to the words that signal it.
type Keywords map[string][]string

// DefaultKeywords is the built-in vocabulary. Config can replace or extend it.
func DefaultKeywords() Keywords {
	return Keywords{
		"Technical Strength": {"technical", "skill", "development", "implementation", "programming", "code", "algorithm", "design", "architecture"},
		"Security":           {"security", "secure", "vulnerability", "encryption", "authentication", "authorization", "audit"},
		"LLM":                {"llm", "large language model", "gpt", "claude", "generative ai", "machine learning", "nlp"},
		"Operations":         {"operations", "monitoring", "logging", "deploy", "ci/cd", "infrastructure", "server", "cloud", "aws", "gcp", "azure"},
		"Leadership":         {"lead", "leader", "management", "team", "mentoring", "ownership"},
		"Global Experience":  {"global", "overseas", "international", "english", "multinational", "cross-cultural"},
		"Data Analysis":      {"data analysis", "data science", "statistics", "analytics", "visualization", "bi", "data warehouse"},
		"Frontend":           {"frontend", "ui", "ux", "react", "vue", "angular", "javascript", "typescript", "css"},
		"Backend":            {"backend", "api", "server", "database", "microservice", "rest", "graphql"},

		"技術力":     {"技術", "スキル", "開発", "実装", "プログラミング", "コード", "アルゴリズム", "設計", "アーキテクチャ"},
		"セキュリティ":  {"セキュリティ", "セキュア", "脆弱性", "暗号化", "認証", "認可", "セキュリティ対策", "セキュリティ監査"},
		"運用":      {"運用", "監視", "ログ", "デプロイ", "CI/CD", "インフラ", "サーバー", "クラウド", "AWS", "GCP", "Azure"},
		"リーダーシップ": {"リーダー", "マネジメント", "チーム", "管理", "指導", "統括", "責任者", "リード"},
		"グローバル経験": {"グローバル", "海外", "国際", "英語", "多国籍", "クロスカルチャー", "グローバルチーム"},
		"データ分析":   {"データ分析", "データサイエンス", "統計", "分析", "可視化", "BI", "データウェアハウス"},
		"フロントエンド": {"フロントエンド", "UI", "UX", "React", "Vue", "Angular", "JavaScript", "TypeScript", "CSS"},
		"バックエンド":  {"バックエンド", "API", "サーバー", "データベース", "マイクロサービス", "REST", "GraphQL"},
	}
}

// Merge returns a copy of k with the entries of other added or replaced.
// Axis names are compared case-insensitively.
func (k Keywords) Merge(other Keywords) Keywords {
	out := make(Keywords, len(k)+len(other))
	for axis, words := range k {
		out[axis] = words
	}
	for axis, words := range other {
		for existing := range out {
			if strings.EqualFold(existing, axis) {
				delete(out, existing)
			}
		}
		out[axis] = words
	}
	return out
}

// matchedAxes counts the axes whose name or keywords appear in the
// requirement description or source quote.
func (k Keywords) matchedAxes(req fit.Requirement, axes []string) int {
	lower := cases.Lower(language.Und)
	text := lower.String(req.Description + " " + req.SourceQuote)

	n := 0
	for _, axis := range axes {
		axis = strings.TrimSpace(axis)
		if axis == "" {
			continue
		}

		candidates := append([]string{axis}, k.lookup(axis)...)
		for _, word := range candidates {
			word = lower.String(strings.TrimSpace(word))
			if word != "" && strings.Contains(text, word) {
				n++
				break
			}
		}
	}

	return n
}

func (k Keywords) lookup(axis string) []string {
	if words, ok := k[axis]; ok {
		return words
	}
	for name, words := range k {
		if strings.EqualFold(name, axis) {
			return words
		}
	}
	return nil
}

// Bonus returns the emphasis bonus for a requirement: 0.05 per matched axis,
// at most 0.1.
func (k Keywords) Bonus(req fit.Requirement, axes []string) float64 {
	n := k.matchedAxes(req, axes)
	if n == 0 {
		return 0
	}
	return min(maxBonus, bonusPerAxis*float64(n))
}

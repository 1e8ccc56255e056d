package requirements

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/fitcheck/internal/fit"
)

func req(id string, c fit.Category, desc string, importance int) fit.Requirement {
	return fit.Requirement{
		ID:          id,
		Category:    c,
		Description: desc,
		Importance:  importance,
		SourceQuote: desc,
		Weight:      c.Weight(),
	}
}

func TestAreSimilar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "case insensitive equality", a: "Go Experience", b: "go experience", want: true},
		{name: "substring", a: "Kubernetes運用", b: "Kubernetes運用経験3年", want: true},
		{name: "same single token with japanese context", a: "Python経験", b: "Python開発経験3年以上", want: true},
		{name: "shared technical tokens", a: "Docker and Kubernetes operations", b: "Kubernetes/Docker in production", want: true},
		{name: "single equal technical token", a: "AWS構築経験", b: "AWSでの運用", want: true},
		{name: "katakana tokens", a: "バックエンド開発とインフラ", b: "インフラおよびバックエンド設計", want: true},
		{name: "word overlap", a: "5 years of team management", b: "team management of 5 years", want: true},
		{name: "different technologies", a: "Rust systems programming", b: "Python data analysis", want: false},
		{name: "short shared tokens only", a: "Go CI", b: "CI Go pipelines with GitLab", want: false},
		{name: "unrelated japanese", a: "英語でのコミュニケーション", b: "チームマネジメント経験", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := req("A", fit.Must, tt.a, 3)
			b := req("B", fit.Must, tt.b, 3)
			assert.Equal(t, tt.want, AreSimilar(a, b))
			assert.Equal(t, tt.want, AreSimilar(b, a))
		})
	}
}

func TestDedupeDropsWantCoveredByMust(t *testing.T) {
	t.Parallel()

	in := []fit.Requirement{
		req("W1", fit.Want, "Python experience", 2),
		req("M1", fit.Must, "Python development experience, 3+ years", 5),
	}

	out := Dedupe(in)

	require.Len(t, out, 1)
	assert.Equal(t, "M1", out[0].ID)
	assert.Equal(t, fit.Must, out[0].Category)
}

func TestDedupeMergesWithinCategory(t *testing.T) {
	t.Parallel()

	in := []fit.Requirement{
		req("M1", fit.Must, "Python経験", 3),
		req("W1", fit.Want, "英語でのコミュニケーション", 2),
		req("M2", fit.Must, "Python開発経験3年以上", 5),
		req("M3", fit.Must, "チームリード経験", 4),
	}
	in[0].SourceQuote = "・Python開発の実務経験（3年以上）必須"

	out := Dedupe(in)

	require.Len(t, out, 3)
	assert.Equal(t, "M1", out[0].ID)
	assert.Equal(t, "Python開発経験3年以上", out[0].Description)
	assert.Equal(t, "・Python開発の実務経験（3年以上）必須", out[0].SourceQuote)
	assert.Equal(t, 5, out[0].Importance)
	assert.Equal(t, "W1", out[1].ID)
	assert.Equal(t, "M3", out[2].ID)
}

func TestDedupeKeepsCategoriesApart(t *testing.T) {
	t.Parallel()

	in := []fit.Requirement{
		req("W1", fit.Want, "GraphQL", 2),
		req("W2", fit.Want, "graphql", 3),
		req("M1", fit.Must, "Terraform", 4),
	}

	out := Dedupe(in)

	require.Len(t, out, 2)
	assert.Equal(t, "W1", out[0].ID)
	assert.Equal(t, 3, out[0].Importance)
	assert.Equal(t, "M1", out[1].ID)
}

func TestDedupeIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := [][]fit.Requirement{
		nil,
		{req("M1", fit.Must, "Go", 3)},
		{
			req("M1", fit.Must, "Go backend services", 3),
			req("M2", fit.Must, "Go", 2),
			req("M3", fit.Must, "backend services in Go with gRPC", 4),
			req("W1", fit.Want, "gRPC streaming", 2),
			req("W2", fit.Want, "Kafka event streaming", 2),
			req("W3", fit.Want, "Kafka", 1),
			req("W4", fit.Want, "event streaming with Kafka and Flink", 3),
			req("W5", fit.Want, "オンコール対応", 2),
		},
	}

	for _, in := range inputs {
		once := Dedupe(in)
		twice := Dedupe(once)
		assert.Equal(t, once, twice)
	}
}

func TestRenumber(t *testing.T) {
	t.Parallel()

	in := []fit.Requirement{
		{ID: "x", Category: fit.Want, Description: "a", Importance: 9, Weight: 7},
		{ID: "y", Category: fit.Must, Description: "b", Importance: 0, Weight: 0},
	}

	out := Renumber(in)

	assert.Equal(t, "REQ_001", out[0].ID)
	assert.Equal(t, 0.5, out[0].Weight)
	assert.Equal(t, 5, out[0].Importance)
	assert.Equal(t, "REQ_002", out[1].ID)
	assert.Equal(t, 1.0, out[1].Weight)
	assert.Equal(t, 1, out[1].Importance)
	assert.Equal(t, "x", in[0].ID, "input must not be modified")
}

func TestLimit(t *testing.T) {
	t.Parallel()

	in := []fit.Requirement{
		req("M1", fit.Must, "a", 1),
		req("W1", fit.Want, "b", 1),
		req("M2", fit.Must, "c", 1),
		req("W2", fit.Want, "d", 1),
		req("M3", fit.Must, "e", 1),
	}

	out := Limit(in, 2, 1)

	ids := make([]string, 0, len(out))
	for _, r := range out {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"M1", "W1", "M2"}, ids)
	assert.Len(t, Limit(in, 0, 0), 5)
}

func TestFallback(t *testing.T) {
	t.Parallel()

	job := `【求人票】Webエンジニア募集
■必須スキル
・Python開発経験3年以上
・Webアプリケーション開発の実務経験
Docker experience required
■歓迎スキル
・AWSなどクラウド環境での開発経験があれば尚可
Kubernetes knowledge preferred
`

	out := Fallback(job, 10, 10)

	var musts, wants []string
	for _, r := range out {
		switch r.Category {
		case fit.Must:
			musts = append(musts, r.Description)
			assert.Equal(t, 3, r.Importance)
			assert.Equal(t, 1.0, r.Weight)
		case fit.Want:
			wants = append(wants, r.Description)
			assert.Equal(t, 2, r.Importance)
			assert.Equal(t, 0.5, r.Weight)
		}
		assert.Equal(t, r.Description, r.SourceQuote)
	}

	assert.Equal(t, []string{"■必須スキル", "・Python開発経験3年以上", "Docker experience required"}, musts)
	assert.Equal(t, []string{"■歓迎スキル", "・AWSなどクラウド環境での開発経験があれば尚可", "Kubernetes knowledge preferred"}, wants)
}

func TestFallbackRespectsCaps(t *testing.T) {
	t.Parallel()

	job := strings.Repeat("Go required\n", 5) + strings.Repeat("Rust preferred\n", 5)
	out := Fallback(job, 2, 1)

	assert.Equal(t, 2, fit.CountByCategory(out, fit.Must))
	assert.Equal(t, 1, fit.CountByCategory(out, fit.Want))
}

func TestFallbackNeverEmpty(t *testing.T) {
	t.Parallel()

	job := strings.Repeat("あ", 150)
	out := Fallback(job, 10, 10)

	require.Len(t, out, 1)
	assert.Equal(t, fit.Must, out[0].Category)
	assert.Equal(t, strings.Repeat("あ", 100), out[0].SourceQuote)
	require.NoError(t, Validate(out))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Validate(nil), ErrNoRequirements)
	assert.ErrorIs(t, Validate([]fit.Requirement{req("W1", fit.Want, "x", 1)}), ErrNoMustRequirements)
	assert.NoError(t, Validate([]fit.Requirement{req("M1", fit.Must, "x", 1)}))
}

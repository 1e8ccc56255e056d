package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/fitcheck/internal/fit"
)

const resume = "■スキル\nGo（5年）、Kubernetes運用\nAWS EC2 S3 RDS を活用したインフラ構築"

func quotes(texts ...string) []fit.Quote {
	out := make([]fit.Quote, len(texts))
	for i, t := range texts {
		out[i] = fit.Quote{Text: t}
	}
	return out
}

func TestAnnotate(t *testing.T) {
	t.Parallel()

	retrieved := map[string][]string{
		"REQ_001": {"unrelated chunk", "Led the  migration to Terraform\nacross 40 services"},
	}
	evs := []fit.Evidence{{
		RequirementID: "REQ_001",
		Quotes:        quotes("Go（5年）", "migration to Terraform across 40 services", "Kubernetes運用"),
		Confidence:    0.8,
	}}

	out := Annotate(evs, resume, retrieved)
	require.Len(t, out[0].Quotes, 3)

	assert.Equal(t, fit.SourceResume, out[0].Quotes[0].Source)
	assert.Nil(t, out[0].Quotes[0].SourceIndex)

	assert.Equal(t, fit.SourceRetrievedNote, out[0].Quotes[1].Source)
	require.NotNil(t, out[0].Quotes[1].SourceIndex)
	assert.Equal(t, 1, *out[0].Quotes[1].SourceIndex)

	assert.Equal(t, fit.SourceResume, out[0].Quotes[2].Source)

	// The input is left untouched and annotation is stable.
	assert.Nil(t, evs[0].Quotes[1].SourceIndex)
	assert.Equal(t, out, Annotate(out, resume, retrieved))
}

func TestAnnotatePrefersResume(t *testing.T) {
	t.Parallel()

	retrieved := map[string][]string{"REQ_001": {"Go（5年）、Kubernetes運用"}}
	evs := []fit.Evidence{{RequirementID: "REQ_001", Quotes: quotes("Go（5年）")}}

	out := Annotate(evs, resume, retrieved)
	assert.Equal(t, fit.SourceResume, out[0].Quotes[0].Source)
}

func TestVerifyOneDowngrades(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ev         fit.Evidence
		wantQuotes int
		wantConf   float64
		marker     string
	}{
		{
			name:       "all valid is untouched",
			ev:         fit.Evidence{RequirementID: "R", Quotes: quotes("Go（5年）"), Confidence: 0.9, Reason: "ok"},
			wantQuotes: 1,
			wantConf:   0.9,
		},
		{
			name:       "half invalid",
			ev:         fit.Evidence{RequirementID: "R", Quotes: quotes("Go（5年）", "Rust expert"), Confidence: 0.9, Reason: "ok"},
			wantQuotes: 1,
			wantConf:   0.25,
			marker:     "1 quote(s) not found",
		},
		{
			name:       "penalty floors at zero",
			ev:         fit.Evidence{RequirementID: "R", Quotes: quotes("Go（5年）", "Rust", "Haskell"), Confidence: 0.5},
			wantQuotes: 1,
			wantConf:   0,
			marker:     "2 quote(s) not found",
		},
		{
			name:       "all invalid",
			ev:         fit.Evidence{RequirementID: "R", Quotes: quotes("Rust expert"), Confidence: 1},
			wantQuotes: 0,
			wantConf:   0,
			marker:     "1 quote(s) not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := VerifyOne(tt.ev, resume, nil)
			assert.Len(t, got.Quotes, tt.wantQuotes)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			if tt.marker == "" {
				assert.Equal(t, tt.ev, got)
				return
			}
			assert.Contains(t, got.Reason, "⚠ quote verification failed: "+tt.marker)
			assert.NotNil(t, got.Quotes)
		})
	}
}

func TestVerifyAcceptsRetrievedChunks(t *testing.T) {
	t.Parallel()

	retrieved := map[string][]string{"REQ_002": {"Built landing zones on AWS for three business units"}}
	evs := []fit.Evidence{
		{RequirementID: "REQ_001", Quotes: quotes("landing zones on AWS"), Confidence: 0.8},
		{RequirementID: "REQ_002", Quotes: quotes("landing zones on AWS"), Confidence: 0.8},
	}

	out := Verify(evs, resume, retrieved)
	assert.Empty(t, out[0].Quotes, "chunks of other requirements do not count")
	assert.Zero(t, out[0].Confidence)
	assert.Len(t, out[1].Quotes, 1)
	assert.Equal(t, 0.8, out[1].Confidence)
}

func TestVerifyToleratesWhitespace(t *testing.T) {
	t.Parallel()

	ev := fit.Evidence{RequirementID: "R", Quotes: quotes("AWS EC2 S3  RDS を活用した\nインフラ構築"), Confidence: 0.7}
	assert.Equal(t, ev, VerifyOne(ev, resume, nil))
}

func TestReextractionCandidates(t *testing.T) {
	t.Parallel()

	empty := func(id string) fit.Evidence { return fit.Evidence{RequirementID: id} }
	good := fit.Evidence{RequirementID: "G", Quotes: quotes("x"), Confidence: 0.5}

	assert.Nil(t, ReextractionCandidates([]fit.Evidence{good}))
	assert.Equal(t, []string{"A", "B"}, ReextractionCandidates([]fit.Evidence{empty("A"), good, empty("B")}))
	assert.Nil(t, ReextractionCandidates([]fit.Evidence{empty("A"), empty("B"), empty("C"), empty("D")}))

	lowNoQuotes := fit.Evidence{RequirementID: "L", Confidence: 0.3}
	assert.Nil(t, ReextractionCandidates([]fit.Evidence{lowNoQuotes}))
}

func TestReplaceAndEnsureAll(t *testing.T) {
	t.Parallel()

	reqs := []fit.Requirement{{ID: "REQ_001"}, {ID: "REQ_002"}, {ID: "REQ_003"}}
	evs := []fit.Evidence{
		{RequirementID: "REQ_003", Confidence: 0.5},
		{RequirementID: "REQ_001", Confidence: 0.1},
		{RequirementID: "REQ_001", Confidence: 0.9},
		{RequirementID: "REQ_404", Confidence: 1},
	}

	replaced := Replace(evs, []fit.Evidence{{RequirementID: "REQ_003", Confidence: 0.7}, {RequirementID: "REQ_999"}})
	assert.Equal(t, 0.7, replaced[0].Confidence)
	assert.Len(t, replaced, 4)

	all := EnsureAll(replaced, reqs)
	require.Len(t, all, 3)
	assert.Equal(t, "REQ_001", all[0].RequirementID)
	assert.Equal(t, 0.1, all[0].Confidence)
	assert.Equal(t, fit.NoEvidence("REQ_002"), all[1])
	assert.Equal(t, 0.7, all[2].Confidence)

	byID := ByRequirement(all)
	assert.Len(t, byID, 3)
	assert.True(t, strings.HasPrefix(byID["REQ_002"].Reason, "no evidence"))
}

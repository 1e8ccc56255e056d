package fit

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		confidence float64
		want       ConfidenceLevel
	}{
		{0, LevelNone},
		{0.0001, LevelLow},
		{0.39, LevelLow},
		{0.4, LevelMedium},
		{0.69, LevelMedium},
		{0.7, LevelHigh},
		{1, LevelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.confidence), "confidence %v", tt.confidence)
	}
}

func TestLevelForRandomConfidences(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		c := rng.Float64()
		got := LevelFor(c)
		switch {
		case c >= 0.7:
			require.Equal(t, LevelHigh, got, "confidence %v", c)
		case c >= 0.4:
			require.Equal(t, LevelMedium, got, "confidence %v", c)
		case c > 0:
			require.Equal(t, LevelLow, got, "confidence %v", c)
		default:
			require.Equal(t, LevelNone, got, "confidence %v", c)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	c, err := ParseCategory(" MUST ")
	require.NoError(t, err)
	assert.Equal(t, Must, c)

	c, err = ParseCategory("preferred")
	require.NoError(t, err)
	assert.Equal(t, Want, c)

	_, err = ParseCategory("maybe")
	assert.Error(t, err)
}

func TestEvidenceJSONCarriesDerivedLevel(t *testing.T) {
	t.Parallel()

	idx := 2
	ev := Evidence{
		RequirementID: "REQ_001",
		Quotes: []Quote{
			{Text: "Go for five years", Source: SourceResume},
			{Text: "built a scheduler", Source: SourceRetrievedNote, SourceIndex: &idx},
		},
		Confidence: 0.5,
		Reason:     "partial",
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Medium", decoded["confidence_level"])

	quotes := decoded["quotes"].([]any)
	second := quotes[1].(map[string]any)
	assert.Equal(t, "RetrievedNote", second["source"])
	assert.EqualValues(t, 2, second["source_index"])
	assert.NotContains(t, quotes[0].(map[string]any), "source_index")
}

func TestEvidenceCloneDoesNotShareQuotes(t *testing.T) {
	t.Parallel()

	idx := 1
	ev := Evidence{Quotes: []Quote{{Text: "a", SourceIndex: &idx}}}
	clone := ev.Clone()
	clone.Quotes[0].Text = "b"
	*clone.Quotes[0].SourceIndex = 7

	assert.Equal(t, "a", ev.Quotes[0].Text)
	assert.Equal(t, 1, *ev.Quotes[0].SourceIndex)
}

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riskguard/analyzer/internal/model"
)

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score int
		want  model.RiskLevel
	}{
		{0, model.RiskLow},
		{24, model.RiskLow},
		{25, model.RiskMedium},
		{49, model.RiskMedium},
		{50, model.RiskHigh},
		{74, model.RiskHigh},
		{75, model.RiskCritical},
		{100, model.RiskCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelForScore(tc.score))
	}
}

func TestScoreNoEvidenceIsZero(t *testing.T) {
	got := Score(map[string]model.SourceResultEnvelope{}, nil)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, model.RiskLow, got.Level)
	assert.Empty(t, got.Factors)
}

func TestScoreIsDeterministic(t *testing.T) {
	sourceData := map[string]model.SourceResultEnvelope{
		"court": {
			Status: model.EnvelopeSuccess,
			Payload: map[string]interface{}{
				"case_count":       5,
				"has_recent_cases": true,
			},
		},
		"registry": {
			Status: model.EnvelopeSuccess,
			Payload: map[string]interface{}{
				"status":     "bankrupt",
				"sanctioned": true,
				"tax_debt":   true,
			},
		},
	}
	searchResults := []model.SearchSnippet{
		{Sentiment: model.SentimentNegative},
		{Sentiment: model.SentimentNegative},
		{Sentiment: model.SentimentPositive},
	}

	first := Score(sourceData, searchResults)
	second := Score(sourceData, searchResults)
	assert.Equal(t, first.Score, second.Score, "Score must be deterministic for identical inputs")
	assert.Equal(t, first.Level, second.Level)
	assert.Len(t, first.Factors, len(second.Factors))

	assert.Greater(t, first.Score, 0)
	assert.LessOrEqual(t, first.Score, 100)
	assert.Len(t, first.Factors, 4, "legal, financial, reputation, regulatory")
}

func TestScoreIgnoresFailedEnvelopes(t *testing.T) {
	sourceData := map[string]model.SourceResultEnvelope{
		"court": {
			Status: model.EnvelopeFailed,
			Payload: map[string]interface{}{
				"case_count": 10,
			},
		},
	}
	got := Score(sourceData, nil)
	assert.Equal(t, 0, got.Score, "a failed envelope must not contribute to the score")
}

func TestScoreClampsToHundred(t *testing.T) {
	sourceData := map[string]model.SourceResultEnvelope{
		"court": {
			Status: model.EnvelopeSuccess,
			Payload: map[string]interface{}{
				"case_count":       1000,
				"has_recent_cases": true,
			},
		},
		"registry": {
			Status: model.EnvelopeSuccess,
			Payload: map[string]interface{}{
				"status":         "bankrupt",
				"sanctioned":     true,
				"terrorist_list": true,
				"tax_debt":       true,
			},
		},
		"analytics": {
			Status: model.EnvelopeSuccess,
			Payload: map[string]interface{}{
				"financial_distress_flag": true,
			},
		},
	}
	searchResults := make([]model.SearchSnippet, 20)
	for i := range searchResults {
		searchResults[i] = model.SearchSnippet{Sentiment: model.SentimentNegative}
	}

	got := Score(sourceData, searchResults)
	assert.LessOrEqual(t, got.Score, 100)
	assert.Equal(t, model.RiskCritical, got.Level)
}

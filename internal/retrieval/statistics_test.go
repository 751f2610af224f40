package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }
func bptr(v bool) *bool      { return &v }

func matchWithOutcome4h(v float64) HistoricalMatch {
	return HistoricalMatch{Similarity: 0.9, Outcome4h: f64(v)}
}

func TestCalculateStatisticsCanonicalScenario(t *testing.T) {
	matches := []HistoricalMatch{
		matchWithOutcome4h(-2.0),
		matchWithOutcome4h(1.0),
		matchWithOutcome4h(3.0),
		matchWithOutcome4h(-1.0),
		matchWithOutcome4h(2.0),
	}

	stats := CalculateStatistics(matches)

	assert.Equal(t, 5, stats.TotalMatches)
	assert.Equal(t, 0.6, stats.Outcome4h.Mean)
	assert.Equal(t, 1.0, stats.Outcome4h.Median)
	assert.Equal(t, -2.0, stats.Outcome4h.P10)
	assert.Equal(t, 3.0, stats.Outcome4h.P90)
	assert.Equal(t, 3, stats.Outcome4h.PositiveCount)
	assert.Equal(t, 2, stats.Outcome4h.NegativeCount)
	assert.Equal(t, 0.6, stats.Outcome4h.WinRate)
}

func TestCalculateStatisticsEmpty(t *testing.T) {
	stats := CalculateStatistics(nil)
	assert.Equal(t, Statistics{}, stats)
}

func TestCalculateStatisticsMissingOutcomeStillCounted(t *testing.T) {
	matches := []HistoricalMatch{
		{Similarity: 0.8, Outcome4h: nil, HitStopLoss: bptr(true)},
		matchWithOutcome4h(1.5),
	}

	stats := CalculateStatistics(matches)

	assert.Equal(t, 2, stats.TotalMatches, "nil-outcome match still counts toward the total")
	assert.Equal(t, 1.5, stats.Outcome4h.Mean, "outcome mean computed only from non-nil values")
	assert.Equal(t, 1, stats.StopLossHits, "stop-loss hits counted regardless of outcome_4h nullness")
}

func TestCalculateStatisticsSimilarityRange(t *testing.T) {
	matches := []HistoricalMatch{
		{Similarity: 0.72},
		{Similarity: 0.95},
		{Similarity: 0.81},
	}
	stats := CalculateStatistics(matches)
	assert.Equal(t, [2]float32{0.72, 0.95}, stats.SimilarityRange)
}

package retrieval

import "sort"

// OutcomeStats summarizes the 4h forward outcome across a set of matches.
type OutcomeStats struct {
	Mean          float64
	Median        float64
	P10           float64
	P90           float64
	PositiveCount int
	NegativeCount int
	WinRate       float64
}

// Statistics aggregates similarity and outcome distributions across all
// matches returned for one query.
type Statistics struct {
	TotalMatches    int
	AvgSimilarity   float32
	SimilarityRange [2]float32
	Outcome4h       OutcomeStats
	StopLossHits    int
	TakeProfitHits  int
}

// CalculateStatistics aggregates across matches, mirroring the teacher's
// calculate_statistics exactly: outcome_4h is filtered to non-nil before
// sorting and percentile lookup; matches with a nil outcome_4h still count
// toward TotalMatches and the similarity stats, just not the outcome stats.
func CalculateStatistics(matches []HistoricalMatch) Statistics {
	if len(matches) == 0 {
		return Statistics{}
	}

	total := len(matches)

	var simSum float32
	minSim, maxSim := matches[0].Similarity, matches[0].Similarity
	for _, m := range matches {
		simSum += m.Similarity
		if m.Similarity < minSim {
			minSim = m.Similarity
		}
		if m.Similarity > maxSim {
			maxSim = m.Similarity
		}
	}
	avgSimilarity := simSum / float32(total)

	var outcomes4h []float64
	for _, m := range matches {
		if m.Outcome4h != nil {
			outcomes4h = append(outcomes4h, *m.Outcome4h)
		}
	}
	sort.Float64s(outcomes4h)

	outcomeStats := OutcomeStats{}
	if len(outcomes4h) > 0 {
		n := len(outcomes4h)
		sum := 0.0
		for _, v := range outcomes4h {
			sum += v
		}
		mean := sum / float64(n)
		median := outcomes4h[n/2]
		p10 := outcomes4h[int(float64(n)*0.1)]
		p90 := outcomes4h[int(float64(n)*0.9)]

		positive, negative := 0, 0
		for _, v := range outcomes4h {
			if v > 0.0 {
				positive++
			}
			if v < 0.0 {
				negative++
			}
		}
		winRate := float64(positive) / float64(n)

		outcomeStats = OutcomeStats{
			Mean:          mean,
			Median:        median,
			P10:           p10,
			P90:           p90,
			PositiveCount: positive,
			NegativeCount: negative,
			WinRate:       winRate,
		}
	}

	stopLossHits, takeProfitHits := 0, 0
	for _, m := range matches {
		if m.HitStopLoss != nil && *m.HitStopLoss {
			stopLossHits++
		}
		if m.HitTakeProfit != nil && *m.HitTakeProfit {
			takeProfitHits++
		}
	}

	return Statistics{
		TotalMatches:    total,
		AvgSimilarity:   avgSimilarity,
		SimilarityRange: [2]float32{minSim, maxSim},
		Outcome4h:       outcomeStats,
		StopLossHits:    stopLossHits,
		TakeProfitHits:  takeProfitHits,
	}
}

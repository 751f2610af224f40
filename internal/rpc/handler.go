package rpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
	"github.com/sawpanic/ragpatterns/internal/observability"
	"github.com/sawpanic/ragpatterns/internal/retrieval"
)

// QueryHandler serves rag.query_patterns, converting wire requests into
// retrieval calls and retrieval results back into wire responses. Grounded
// on original_source/rag-rpc-server/src/handler.rs.
type QueryHandler struct {
	retriever  *retrieval.Retriever
	minMatches int
	metrics    *observability.Metrics
}

// NewQueryHandler builds a QueryHandler. minMatches must match the value the
// underlying Retriever was constructed with — it is re-checked here purely
// to shape the InsufficientMatches error message. metrics may be nil.
func NewQueryHandler(retriever *retrieval.Retriever, minMatches int, metrics *observability.Metrics) *QueryHandler {
	return &QueryHandler{retriever: retriever, minMatches: minMatches, metrics: metrics}
}

// HandleQuery runs one rag.query_patterns call end to end.
func (h *QueryHandler) HandleQuery(ctx context.Context, params QueryPatternsRequest) (*QueryPatternsResponse, *Error) {
	queryStart := time.Now()

	log.Debug().Str("symbol", params.Symbol).Int64("timestamp", params.Timestamp).
		Uint32("lookback_days", params.QueryConfig.LookbackDays).Uint64("top_k", params.QueryConfig.TopK).
		Msg("handling rag query")

	querySnapshot := requestToSnapshot(params)

	matches, metrics, err := h.retriever.FindSimilarPatternsWithMetrics(
		ctx, querySnapshot, params.QueryConfig.LookbackDays, params.QueryConfig.TopK)
	if err != nil {
		h.recordQueryError("internal_error")
		return nil, NewInternalError(err.Error())
	}

	if len(matches) < h.minMatches {
		h.recordQueryError("insufficient_matches")
		return nil, NewInsufficientMatches(len(matches), h.minMatches)
	}

	jsonMatches := make([]HistoricalMatchJSON, len(matches))
	for i, m := range matches {
		jsonMatches[i] = HistoricalMatchJSON{
			Similarity: m.Similarity,
			Timestamp:  m.Timestamp,
			Date:       m.Date,
			MarketState: MatchMarketState{
				RSI7:        m.RSI7,
				RSI14:       m.RSI14,
				MACD:        m.MACD,
				EMARatio:    m.EMARatio,
				OIDeltaPct:  m.OIDeltaPct,
				FundingRate: m.FundingRate,
			},
			Outcomes: Outcomes{
				Outcome1h:     m.Outcome1h,
				Outcome4h:     m.Outcome4h,
				Outcome24h:    m.Outcome24h,
				MaxRunup1h:    m.MaxRunup1h,
				MaxDrawdown1h: m.MaxDrawdown1h,
				HitStopLoss:   m.HitStopLoss,
				HitTakeProfit: m.HitTakeProfit,
			},
		}
	}

	stats := retrieval.CalculateStatistics(matches)
	elapsed := time.Since(queryStart)
	queryDuration := uint64(elapsed.Milliseconds())

	if h.metrics != nil {
		h.metrics.QueryDuration.Observe(elapsed.Seconds())
		h.metrics.QueryMatches.Observe(float64(len(matches)))
	}

	log.Info().Str("symbol", params.Symbol).Int("matches", len(matches)).
		Uint64("duration_ms", queryDuration).Msg("rag query completed")

	return &QueryPatternsResponse{
		Matches: jsonMatches,
		Statistics: StatisticsJSON{
			TotalMatches:    stats.TotalMatches,
			AvgSimilarity:   stats.AvgSimilarity,
			SimilarityRange: stats.SimilarityRange,
			Outcome4h: OutcomeStatsJSON{
				Mean:          stats.Outcome4h.Mean,
				Median:        stats.Outcome4h.Median,
				P10:           stats.Outcome4h.P10,
				P90:           stats.Outcome4h.P90,
				PositiveCount: stats.Outcome4h.PositiveCount,
				NegativeCount: stats.Outcome4h.NegativeCount,
				WinRate:       stats.Outcome4h.WinRate,
			},
			StopLossHits:   stats.StopLossHits,
			TakeProfitHits: stats.TakeProfitHits,
		},
		Metadata: Metadata{
			QueryDurationMS:     queryDuration,
			EmbeddingDurationMS: metrics.EmbeddingLatencyMS,
			RetrievalDurationMS: metrics.RetrievalLatencyMS,
			FiltersApplied:      filtersApplied(params),
			SchemaVersion:       1,
			FeatureVersion:      "v1_nofx_3m4h",
			EmbeddingModel:      "bge-small-en-v1.5",
		},
	}, nil
}

// requestToSnapshot builds a minimal MarketStateSnapshot from request
// fields. Fields the request doesn't carry (time series, volatility,
// outcomes) are left at their zero value / nil — they don't affect the
// fixed facts the formatter renders from request-supplied fields, only the
// conditional ones (slope/volatility sentences), matching the teacher's
// request_to_snapshot which does the same.
func requestToSnapshot(params QueryPatternsRequest) *snapshot.MarketStateSnapshot {
	s := snapshot.New(params.Symbol, params.Timestamp, params.CurrentState.Price)
	s.RSI7 = params.CurrentState.RSI7
	s.RSI14 = params.CurrentState.RSI14
	s.MACD = params.CurrentState.MACD
	s.EMA20 = params.CurrentState.EMA20
	s.EMA204h = params.CurrentState.EMA204h
	s.EMA504h = params.CurrentState.EMA504h
	s.OpenInterestLatest = params.CurrentState.OpenInterestLatest
	s.OpenInterestAvg24h = params.CurrentState.OpenInterestAvg24h
	s.FundingRate = params.CurrentState.FundingRate
	if params.CurrentState.PriceChange1h != nil {
		s.PriceChange1h = *params.CurrentState.PriceChange1h
	}
	if params.CurrentState.PriceChange4h != nil {
		s.PriceChange4h = *params.CurrentState.PriceChange4h
	}
	return s
}

func (h *QueryHandler) recordQueryError(code string) {
	if h.metrics != nil {
		h.metrics.QueryErrors.WithLabelValues(code).Inc()
	}
}

func filtersApplied(params QueryPatternsRequest) []string {
	filters := []string{"symbol", "timerange"}
	if params.QueryConfig.IncludeRegimeFilters {
		filters = append(filters, "oi_delta", "funding_sign")
	}
	return filters
}

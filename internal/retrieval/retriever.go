// Package retrieval implements the Retrieval Engine: embed the query
// snapshot, build a symbol/recency/regime filter, search the vector store,
// hydrate scored points into HistoricalMatch values, and gate on a minimum
// match count. Grounded on
// original_source/trading-strategy/src/llm/rag_retriever.rs.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/domain/formatter"
	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
	"github.com/sawpanic/ragpatterns/internal/embedding"
	"github.com/sawpanic/ragpatterns/internal/infra/breakers"
	"github.com/sawpanic/ragpatterns/internal/observability"
	"github.com/sawpanic/ragpatterns/internal/vectorstore"
)

// minSimilarity is the score threshold applied at the Qdrant query level —
// only matches above 70% cosine similarity are considered.
const minSimilarity = 0.7

// HistoricalMatch is one retrieved pattern: the state at match time and what
// happened afterward.
type HistoricalMatch struct {
	Similarity float32
	Timestamp  int64
	Date       string

	RSI7        float64
	RSI14       float64
	MACD        float64
	EMARatio    float64
	OIDeltaPct  float64
	FundingRate float64

	Outcome1h     *float64
	Outcome4h     *float64
	Outcome24h    *float64
	MaxRunup1h    *float64
	MaxDrawdown1h *float64
	HitStopLoss   *bool
	HitTakeProfit *bool
}

// Metrics carries latency breakdowns back to the RPC layer for its metadata
// block.
type Metrics struct {
	EmbeddingLatencyMS uint64
	RetrievalLatencyMS uint64
}

// ErrInsufficientMatches names the fewer-than-minMatches condition. It is a
// gate, not a fault: FindSimilarPatternsWithMetrics does not return it and
// reports the condition as an empty match slice with a nil error.
var ErrInsufficientMatches = fmt.Errorf("insufficient matches")

// Retriever finds historically similar market states for a query snapshot.
type Retriever struct {
	embedder    embedding.Embedder
	store       *vectorstore.Store
	minMatches  int
	embedBreaker *breakers.Breaker
	storeBreaker *breakers.Breaker
}

// New builds a Retriever. minMatches is the floor below which
// FindSimilarPatternsWithMetrics returns an empty slice (and a nil error)
// instead of a short list. metrics may be nil.
func New(embedder embedding.Embedder, store *vectorstore.Store, minMatches int, metrics *observability.Metrics) *Retriever {
	return &Retriever{
		embedder:     embedder,
		store:        store,
		minMatches:   minMatches,
		embedBreaker: breakers.New("retrieval-embedder", metrics),
		storeBreaker: breakers.New("retrieval-vectorstore", metrics),
	}
}

// FindSimilarPatternsWithMetrics embeds currentSnapshot, searches the store
// within lookbackDays, and returns up to topK matches plus latency metrics.
func (r *Retriever) FindSimilarPatternsWithMetrics(ctx context.Context, currentSnapshot *snapshot.MarketStateSnapshot, lookbackDays uint32, topK uint64) ([]HistoricalMatch, Metrics, error) {
	embedStart := time.Now()
	queryText := formatter.ToEmbeddingText(currentSnapshot)

	vecs, err := r.embedQuery(ctx, queryText)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("retrieval: embed query: %w", err)
	}
	embeddingLatency := uint64(time.Since(embedStart).Milliseconds())

	retrievalStart := time.Now()
	filter := r.buildFilter(currentSnapshot, lookbackDays)

	threshold := float32(minSimilarity)
	searchResult, err := r.search(ctx, vectorstore.SearchParams{
		Vector:         vecs,
		Limit:          topK,
		Filter:         filter,
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("retrieval: search: %w", err)
	}
	retrievalLatency := uint64(time.Since(retrievalStart).Milliseconds())

	log.Info().Int("count", len(searchResult)).Float64("threshold", minSimilarity).
		Msg("found similar patterns")

	matches := make([]HistoricalMatch, 0, len(searchResult))
	for _, point := range searchResult {
		m, err := hydrateMatch(point)
		if err != nil {
			log.Warn().Err(err).Msg("skipping malformed match payload")
			continue
		}
		matches = append(matches, m)
	}

	metrics := Metrics{EmbeddingLatencyMS: embeddingLatency, RetrievalLatencyMS: retrievalLatency}

	if len(matches) < r.minMatches {
		log.Warn().Int("found", len(matches)).Int("required", r.minMatches).
			Msg("insufficient matches, returning empty (caller should use baseline)")
		return nil, metrics, nil
	}

	minSim, maxSim := matches[0].Similarity, matches[0].Similarity
	for _, m := range matches {
		if m.Similarity < minSim {
			minSim = m.Similarity
		}
		if m.Similarity > maxSim {
			maxSim = m.Similarity
		}
	}
	log.Info().Int("count", len(matches)).Int("min_matches", r.minMatches).
		Float32("sim_min", minSim).Float32("sim_max", maxSim).
		Msg("retrieved historical matches")

	return matches, metrics, nil
}

func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := r.embedBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
		vecs, err := r.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

func (r *Retriever) search(ctx context.Context, params vectorstore.SearchParams) ([]*qdrant.ScoredPoint, error) {
	result, err := r.storeBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return r.store.Search(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*qdrant.ScoredPoint), nil
}

// buildFilter matches the teacher's must-conditions: symbol equality,
// timestamp >= now - lookback, and two optional regime conditions (OI delta
// band, funding rate sign) applied only when the current reading is
// significant enough to be worth narrowing on.
func (r *Retriever) buildFilter(s *snapshot.MarketStateSnapshot, lookbackDays uint32) *qdrant.Filter {
	nowMS := time.Now().UnixMilli()
	lookbackMS := int64(lookbackDays) * 86400 * 1000
	minTimestamp := nowMS - lookbackMS
	if minTimestamp < 0 {
		minTimestamp = 0
	}

	conditions := []*qdrant.Condition{
		qdrant.NewMatch("symbol", s.Symbol),
		qdrant.NewRange("timestamp", &qdrant.Range{Gte: floatPtr(float64(minTimestamp))}),
	}

	oiDelta := s.OIDeltaPct()
	if abs(oiDelta) > 5.0 {
		conditions = append(conditions, qdrant.NewRange("oi_delta_pct", &qdrant.Range{
			Gte: floatPtr(oiDelta - 10.0),
			Lte: floatPtr(oiDelta + 10.0),
		}))
		log.Debug().Float64("oi_delta", oiDelta).Msg("applied oi delta filter")
	}

	if abs(s.FundingRate) > 0.0001 {
		fundingRange := &qdrant.Range{Lte: floatPtr(0.0)}
		if s.FundingRate > 0.0 {
			fundingRange = &qdrant.Range{Gte: floatPtr(0.0)}
		}
		conditions = append(conditions, qdrant.NewRange("funding_rate", fundingRange))
		log.Debug().Float64("funding_rate", s.FundingRate).Msg("applied funding rate sign filter")
	}

	return &qdrant.Filter{Must: conditions}
}

func floatPtr(f float64) *float64 { return &f }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func hydrateMatch(point *qdrant.ScoredPoint) (HistoricalMatch, error) {
	payload := point.GetPayload()

	timestamp, err := payloadInt(payload, "timestamp")
	if err != nil {
		return HistoricalMatch{}, err
	}
	date, err := payloadString(payload, "date")
	if err != nil {
		return HistoricalMatch{}, err
	}
	rsi7, err := payloadFloat(payload, "rsi_7")
	if err != nil {
		return HistoricalMatch{}, err
	}
	rsi14, err := payloadFloat(payload, "rsi_14")
	if err != nil {
		return HistoricalMatch{}, err
	}
	macd, err := payloadFloat(payload, "macd")
	if err != nil {
		return HistoricalMatch{}, err
	}
	emaRatio, err := payloadFloat(payload, "ema_ratio")
	if err != nil {
		return HistoricalMatch{}, err
	}
	oiDelta, err := payloadFloat(payload, "oi_delta_pct")
	if err != nil {
		return HistoricalMatch{}, err
	}
	funding, err := payloadFloat(payload, "funding_rate")
	if err != nil {
		return HistoricalMatch{}, err
	}

	return HistoricalMatch{
		Similarity:    point.GetScore(),
		Timestamp:     timestamp,
		Date:          date,
		RSI7:          rsi7,
		RSI14:         rsi14,
		MACD:          macd,
		EMARatio:      emaRatio,
		OIDeltaPct:    oiDelta,
		FundingRate:   funding,
		Outcome1h:     payloadFloatOpt(payload, "outcome_1h"),
		Outcome4h:     payloadFloatOpt(payload, "outcome_4h"),
		Outcome24h:    payloadFloatOpt(payload, "outcome_24h"),
		MaxRunup1h:    payloadFloatOpt(payload, "max_runup_1h"),
		MaxDrawdown1h: payloadFloatOpt(payload, "max_drawdown_1h"),
		HitStopLoss:   payloadBoolOpt(payload, "hit_stop_loss"),
		HitTakeProfit: payloadBoolOpt(payload, "hit_take_profit"),
	}, nil
}

func payloadFloat(payload map[string]*qdrant.Value, key string) (float64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing or invalid field: %s", key)
	}
	switch v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return float64(v.GetIntegerValue()), nil
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue(), nil
	default:
		return 0, fmt.Errorf("missing or invalid field: %s", key)
	}
}

func payloadFloatOpt(payload map[string]*qdrant.Value, key string) *float64 {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}
	var f float64
	switch v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		f = float64(v.GetIntegerValue())
	case *qdrant.Value_DoubleValue:
		f = v.GetDoubleValue()
	default:
		return nil
	}
	return &f
}

func payloadBoolOpt(payload map[string]*qdrant.Value, key string) *bool {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}
	if _, isBool := v.GetKind().(*qdrant.Value_BoolValue); !isBool {
		return nil
	}
	b := v.GetBoolValue()
	return &b
}

func payloadString(payload map[string]*qdrant.Value, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing or invalid field: %s", key)
	}
	return v.GetStringValue(), nil
}

func payloadInt(payload map[string]*qdrant.Value, key string) (int64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing or invalid field: %s", key)
	}
	switch v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue(), nil
	case *qdrant.Value_DoubleValue:
		return int64(v.GetDoubleValue()), nil
	default:
		return 0, fmt.Errorf("missing or invalid field: %s", key)
	}
}

// Package rpc implements the line-delimited JSON-RPC 2.0 front end: request/
// response envelopes, the error code taxonomy, and a TCP server exposing the
// single method rag.query_patterns. Grounded on
// original_source/rag-rpc-server/src/{protocol,error,server}.rs.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Custom error codes for RAG operations.
const (
	CodeInsufficientMatches = -32001
	CodeSymbolNotFound      = -32002
	CodeQdrantError         = -32003
	CodeEmbeddingError      = -32004
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 success envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result"`
}

// ErrorResponse is a JSON-RPC 2.0 error envelope.
type ErrorResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Error   ErrorObject   `json:"error"`
}

// ErrorObject is the JSON-RPC error payload.
type ErrorObject struct {
	Code    int `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// QueryPatternsRequest is the params object for rag.query_patterns.
type QueryPatternsRequest struct {
	Symbol       string       `json:"symbol"`
	Timestamp    int64        `json:"timestamp"`
	CurrentState MarketState  `json:"current_state"`
	QueryConfig  QueryConfig  `json:"query_config"`
}

// requiredQueryPatternsFields lists the top-level params keys the Rust
// RagQueryRequest requires — protocol.rs declares symbol/timestamp/
// current_state with no #[serde(default)], so deserialization fails outright
// when any of them is absent, rather than silently zero-filling it.
var requiredQueryPatternsFields = []string{"symbol", "timestamp", "current_state"}

// validateRequiredQueryPatternsFields checks raw for every key
// QueryPatternsRequest requires, and that symbol is a non-empty string,
// before the caller unmarshals into the (zero-value-tolerant) Go struct.
func validateRequiredQueryPatternsFields(raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, key := range requiredQueryPatternsFields {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("missing required field: %s", key)
		}
	}
	var symbol string
	if err := json.Unmarshal(fields["symbol"], &symbol); err != nil || symbol == "" {
		return fmt.Errorf("field %q must be a non-empty string", "symbol")
	}
	return nil
}

// MarketState is the caller-supplied current market state.
type MarketState struct {
	Price               float64  `json:"price"`
	RSI7                float64  `json:"rsi_7"`
	RSI14               float64  `json:"rsi_14"`
	MACD                float64  `json:"macd"`
	EMA20               float64  `json:"ema_20"`
	EMA204h             float64  `json:"ema_20_4h"`
	EMA504h             float64  `json:"ema_50_4h"`
	FundingRate         float64  `json:"funding_rate"`
	OpenInterestLatest  float64  `json:"open_interest_latest"`
	OpenInterestAvg24h  float64  `json:"open_interest_avg_24h"`
	PriceChange1h       *float64 `json:"price_change_1h,omitempty"`
	PriceChange4h       *float64 `json:"price_change_4h,omitempty"`
}

// QueryConfig tunes the retrieval call. UnmarshalJSON applies the teacher's
// defaults (lookback_days=90, top_k=5, min_similarity=0.7,
// include_regime_filters=true) for any field omitted by the caller.
type QueryConfig struct {
	LookbackDays          uint32  `json:"lookback_days"`
	TopK                  uint64  `json:"top_k"`
	MinSimilarity         float32 `json:"min_similarity"`
	IncludeRegimeFilters  bool    `json:"include_regime_filters"`
}

// DefaultQueryConfig returns the teacher's documented defaults.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		LookbackDays:         90,
		TopK:                 5,
		MinSimilarity:        0.7,
		IncludeRegimeFilters: true,
	}
}

// UnmarshalJSON fills unset fields with DefaultQueryConfig's values, matching
// serde's #[serde(default = "...")] per-field behavior.
func (q *QueryConfig) UnmarshalJSON(data []byte) error {
	type rawConfig struct {
		LookbackDays         *uint32  `json:"lookback_days"`
		TopK                 *uint64  `json:"top_k"`
		MinSimilarity        *float32 `json:"min_similarity"`
		IncludeRegimeFilters *bool    `json:"include_regime_filters"`
	}
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	defaults := DefaultQueryConfig()
	*q = defaults
	if raw.LookbackDays != nil {
		q.LookbackDays = *raw.LookbackDays
	}
	if raw.TopK != nil {
		q.TopK = *raw.TopK
	}
	if raw.MinSimilarity != nil {
		q.MinSimilarity = *raw.MinSimilarity
	}
	if raw.IncludeRegimeFilters != nil {
		q.IncludeRegimeFilters = *raw.IncludeRegimeFilters
	}
	return nil
}

// QueryPatternsResponse is the result object for a successful query.
type QueryPatternsResponse struct {
	Matches    []HistoricalMatchJSON `json:"matches"`
	Statistics StatisticsJSON        `json:"statistics"`
	Metadata   Metadata              `json:"metadata"`
}

// HistoricalMatchJSON is one match in wire format.
type HistoricalMatchJSON struct {
	Similarity  float32         `json:"similarity"`
	Timestamp   int64           `json:"timestamp"`
	Date        string          `json:"date"`
	MarketState MatchMarketState `json:"market_state"`
	Outcomes    Outcomes        `json:"outcomes"`
}

// MatchMarketState is the market state snapshot of a historical match.
type MatchMarketState struct {
	RSI7        float64 `json:"rsi_7"`
	RSI14       float64 `json:"rsi_14"`
	MACD        float64 `json:"macd"`
	EMARatio    float64 `json:"ema_ratio"`
	OIDeltaPct  float64 `json:"oi_delta_pct"`
	FundingRate float64 `json:"funding_rate"`
}

// Outcomes is what happened after a historical match, the reason the match
// is valuable to a caller at all.
type Outcomes struct {
	Outcome1h     *float64 `json:"outcome_1h"`
	Outcome4h     *float64 `json:"outcome_4h"`
	Outcome24h    *float64 `json:"outcome_24h"`
	MaxRunup1h    *float64 `json:"max_runup_1h"`
	MaxDrawdown1h *float64 `json:"max_drawdown_1h"`
	HitStopLoss   *bool    `json:"hit_stop_loss"`
	HitTakeProfit *bool    `json:"hit_take_profit"`
}

// StatisticsJSON is the aggregate statistics block in wire format.
type StatisticsJSON struct {
	TotalMatches    int             `json:"total_matches"`
	AvgSimilarity   float32         `json:"avg_similarity"`
	SimilarityRange [2]float32      `json:"similarity_range"`
	Outcome4h       OutcomeStatsJSON `json:"outcome_4h"`
	StopLossHits    int             `json:"stop_loss_hits"`
	TakeProfitHits  int             `json:"take_profit_hits"`
}

// OutcomeStatsJSON is the outcome distribution block in wire format.
type OutcomeStatsJSON struct {
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	P10           float64 `json:"p10"`
	P90           float64 `json:"p90"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	WinRate       float64 `json:"win_rate"`
}

// Metadata describes how the response was produced.
type Metadata struct {
	QueryDurationMS     uint64   `json:"query_duration_ms"`
	EmbeddingDurationMS uint64   `json:"embedding_duration_ms"`
	RetrievalDurationMS uint64   `json:"retrieval_duration_ms"`
	FiltersApplied      []string `json:"filters_applied"`
	SchemaVersion       int      `json:"schema_version"`
	FeatureVersion      string   `json:"feature_version"`
	EmbeddingModel      string   `json:"embedding_model"`
}

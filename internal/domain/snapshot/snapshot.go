// Package snapshot defines the MarketStateSnapshot, the central entity shared
// by the assembler, the formatter, the ingestion pipeline, and the retrieval
// engine.
package snapshot

// TimestampMS is an epoch-millisecond timestamp used for monotonic keying.
type TimestampMS = int64

// MarketStateSnapshot captures a point in time for one symbol: current
// indicators, short- and long-horizon time series, microstructure, and
// (ingest-only) forward outcomes.
type MarketStateSnapshot struct {
	// Identification
	Symbol    string
	Timestamp TimestampMS
	Price     float64

	// Current indicators (3m timeframe)
	RSI7  float64
	RSI14 float64
	MACD  float64
	EMA20 float64

	// 3-minute time series, oldest->newest, length 10 or empty
	MidPrices    []float64
	EMA20Values  []float64
	MACDValues   []float64
	RSI7Values   []float64
	RSI14Values  []float64

	// 4-hour longer-term context
	EMA204h         float64
	EMA504h         float64
	ATR34h          float64
	ATR144h         float64
	CurrentVolume4h float64
	AvgVolume4h     float64
	MACD4hValues    []float64
	RSI144hValues   []float64

	// Market microstructure
	OpenInterestLatest  float64
	OpenInterestAvg24h  float64
	FundingRate         float64
	PriceChange1h       float64
	PriceChange4h       float64

	// Forward outcomes — nil unless populated during ingestion
	Outcome15m      *float64
	Outcome1h       *float64
	Outcome4h       *float64
	Outcome24h      *float64
	MaxRunup1h      *float64
	MaxDrawdown1h   *float64
	HitStopLoss     *bool
	HitTakeProfit   *bool
}

// New returns an empty snapshot with identification fields populated and
// every other field at its zero value / nil, matching the teacher's
// constructor-with-defaults idiom.
func New(symbol string, timestamp TimestampMS, price float64) *MarketStateSnapshot {
	return &MarketStateSnapshot{
		Symbol:    symbol,
		Timestamp: timestamp,
		Price:     price,
	}
}

// EMARatio2050 is ema_20_4h / ema_50_4h, or 1.0 if the denominator is too
// small to trust.
func (s *MarketStateSnapshot) EMARatio2050() float64 {
	if abs(s.EMA504h) > 1e-10 {
		return s.EMA204h / s.EMA504h
	}
	return 1.0
}

// OIDeltaPct is the percent delta between latest and 24h-average open
// interest, or 0.0 if the average is too small to trust.
func (s *MarketStateSnapshot) OIDeltaPct() float64 {
	if abs(s.OpenInterestAvg24h) > 1e-10 {
		return (s.OpenInterestLatest - s.OpenInterestAvg24h) / s.OpenInterestAvg24h * 100.0
	}
	return 0.0
}

// VolatilityRatio is atr_3_4h / atr_14_4h, or 1.0 if the denominator is too
// small to trust. Kept alongside EMARatio2050/OIDeltaPct since all three are
// payload-time derived features computed the same way.
func (s *MarketStateSnapshot) VolatilityRatio() float64 {
	if abs(s.ATR144h) > 1e-9 {
		return s.ATR34h / s.ATR144h
	}
	return 1.0
}

// RSI7Slope is the OLS slope of the RSI(7) time series.
func (s *MarketStateSnapshot) RSI7Slope() float64 {
	return Slope(s.RSI7Values)
}

// MACDSlope is the OLS slope of the MACD time series.
func (s *MarketStateSnapshot) MACDSlope() float64 {
	return Slope(s.MACDValues)
}

// Slope computes the simple OLS slope of values against their index
// [0..len(values)). Returns 0.0 if there are fewer than two points or the
// index variance is degenerate (all values at one index, or the
// denominator underflows — practically: len<2).
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0.0
	}

	xMean := float64(n-1) / 2.0
	yMean := 0.0
	for _, y := range values {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}

	if abs(den) < 1e-10 {
		return 0.0
	}
	return num / den
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

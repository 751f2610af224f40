// Package indicators implements the technical-indicator math used to derive
// mock market-state snapshots when no KV store is configured. Real ingestion
// reads already-computed indicator values from the KV store (see
// internal/kvstore); this package exists so the mock data path produces
// indicator values through the same math a real indicator engine would use,
// rather than hand-rolled sinusoids.
package indicators

import "math"

// RSIResult represents the result of RSI calculation.
type RSIResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateRSI calculates the Relative Strength Index (RSI) for given price data.
func CalculateRSI(prices []float64, period int) RSIResult {
	if len(prices) < period+1 {
		return RSIResult{
			Value:     50.0, // Neutral RSI when insufficient data
			Period:    period,
			IsValid:   false,
			DataCount: len(prices),
		}
	}

	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}

	gains := make([]float64, len(changes))
	losses := make([]float64, len(changes))
	for i, change := range changes {
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing for subsequent periods
	alpha := 1.0 / float64(period)
	for i := period; i < len(changes); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
	}

	if avgLoss == 0 {
		return RSIResult{Value: 100.0, Period: period, IsValid: true, DataCount: len(prices)}
	}

	rs := avgGain / avgLoss
	rsi := 100.0 - (100.0 / (1.0 + rs))

	return RSIResult{Value: rsi, Period: period, IsValid: true, DataCount: len(prices)}
}

// ATRResult represents the result of ATR calculation.
type ATRResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// PriceBar represents OHLC price data.
type PriceBar struct {
	High  float64
	Low   float64
	Close float64
}

// CalculateATR calculates the Average True Range (ATR) for given OHLC data.
func CalculateATR(bars []PriceBar, period int) ATRResult {
	if len(bars) < period+1 {
		return ATRResult{Value: 0.0, Period: period, IsValid: false, DataCount: len(bars)}
	}

	trueRanges := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur := bars[i]
		prevClose := bars[i-1].Close
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prevClose)
		lc := math.Abs(cur.Low - prevClose)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	if len(trueRanges) < period {
		return ATRResult{Value: 0.0, Period: period, IsValid: false, DataCount: len(bars)}
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		atr = atr*(1-alpha) + trueRanges[i]*alpha
	}

	return ATRResult{Value: atr, Period: period, IsValid: true, DataCount: len(bars)}
}

// EMAResult represents the result of EMA calculation.
type EMAResult struct {
	Value     float64 `json:"value"`
	Period    int     `json:"period"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateEMA calculates the Exponential Moving Average over prices,
// seeded with a simple average of the first `period` values.
func CalculateEMA(prices []float64, period int) EMAResult {
	if len(prices) < period {
		return EMAResult{Value: 0.0, Period: period, IsValid: false, DataCount: len(prices)}
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += prices[i]
	}
	ema := sma / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
	}

	return EMAResult{Value: ema, Period: period, IsValid: true, DataCount: len(prices)}
}

// EMASeries returns the EMA value after each price is folded in, aligned
// 1:1 with the input (the first `period-1` entries repeat the seed SMA).
// Used to build the 3m/4h EMA time series for mock snapshots.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	if len(prices) < period {
		period = len(prices)
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += prices[i]
	}
	ema := sma / float64(period)

	out := make([]float64, len(prices))
	for i := 0; i < period; i++ {
		out[i] = ema
	}

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// MACDResult represents the MACD line (EMA12 - EMA26), without signal/histogram.
type MACDResult struct {
	Value   float64 `json:"value"`
	IsValid bool    `json:"is_valid"`
}

// CalculateMACD computes the MACD line as EMA(fast) - EMA(slow).
func CalculateMACD(prices []float64, fast, slow int) MACDResult {
	if len(prices) < slow {
		return MACDResult{Value: 0.0, IsValid: false}
	}
	fastEMA := CalculateEMA(prices, fast)
	slowEMA := CalculateEMA(prices, slow)
	return MACDResult{Value: fastEMA.Value - slowEMA.Value, IsValid: true}
}

// MACDSeries returns the MACD line value at each index using running EMA
// series for the fast and slow periods.
func MACDSeries(prices []float64, fast, slow int) []float64 {
	fastSeries := EMASeries(prices, fast)
	slowSeries := EMASeries(prices, slow)
	n := len(prices)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = fastSeries[i] - slowSeries[i]
	}
	return out
}

// RSISeries returns the RSI value computed over each growing prefix of
// prices (prefix shorter than period+1 repeats the neutral 50.0 default).
func RSISeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		out[i] = CalculateRSI(prices[:i+1], period).Value
	}
	return out
}

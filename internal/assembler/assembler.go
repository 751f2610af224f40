// Package assembler builds complete MarketStateSnapshots either from the
// embedded KV store or from a deterministic mock generator, mirroring
// original_source/trading-data-services/src/rag/snapshot_extractor.rs. The KV
// path fills every field by reading named buckets; the mock path is used when
// no store is configured (local dev, tests) and is upgraded here to run
// synthetic prices through the real indicator math in internal/domain/indicators
// instead of standalone sinusoids, so mock snapshots still exercise the same
// slope/ratio logic real data does.
package assembler

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/ragpatterns/internal/domain/indicators"
	"github.com/sawpanic/ragpatterns/internal/domain/outcome"
	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
	"github.com/sawpanic/ragpatterns/internal/kvstore"
)

// DataSource selects where snapshots are assembled from.
type DataSource int

const (
	// DataSourceMock generates deterministic synthetic snapshots.
	DataSourceMock DataSource = iota
	// DataSourceKV reads real historical data from the KV store.
	DataSourceKV
)

const (
	interval3mMS = 180_000
	interval4hMS = 14_400_000
)

// Extractor builds MarketStateSnapshots for a symbol over a time range.
type Extractor struct {
	source DataSource
	reader *kvstore.Reader
}

// NewMock returns an Extractor backed by the synthetic generator.
func NewMock() *Extractor {
	return &Extractor{source: DataSourceMock}
}

// NewKV returns an Extractor backed by an already-open KV reader.
func NewKV(reader *kvstore.Reader) *Extractor {
	return &Extractor{source: DataSourceKV, reader: reader}
}

// ExtractSnapshots assembles one snapshot per interval tick in
// [startTimestamp, endTimestamp), skipping ticks with missing underlying data
// rather than failing the whole range.
func (e *Extractor) ExtractSnapshots(symbol string, startTimestamp, endTimestamp int64, intervalMinutes int64) ([]*snapshot.MarketStateSnapshot, error) {
	switch e.source {
	case DataSourceKV:
		return e.extractFromKV(symbol, startTimestamp, endTimestamp, intervalMinutes)
	default:
		return e.extractMock(symbol, startTimestamp, endTimestamp, intervalMinutes)
	}
}

func (e *Extractor) extractFromKV(symbol string, startTimestamp, endTimestamp int64, intervalMinutes int64) ([]*snapshot.MarketStateSnapshot, error) {
	intervalMS := intervalMinutes * 60_000
	var out []*snapshot.MarketStateSnapshot

	successCount, skipCount := 0, 0
	for ts := startTimestamp; ts < endTimestamp; ts += intervalMS {
		s, err := e.buildFromKV(symbol, ts)
		if err != nil {
			log.Warn().Str("symbol", symbol).Int64("timestamp", ts).Err(err).
				Msg("failed to build snapshot, skipping")
			skipCount++
			continue
		}
		out = append(out, s)
		successCount++
	}

	log.Info().Str("symbol", symbol).Int("extracted", successCount).Int("skipped", skipCount).
		Int64("start", startTimestamp).Int64("end", endTimestamp).
		Msg("extracted snapshots from kv store")

	return out, nil
}

func extractF64(raw json.RawMessage, field string) (float64, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, fmt.Errorf("decode indicator frame: %w", err)
	}
	v, ok := m[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("field %q is not numeric: %w", field, err)
	}
	return f, nil
}

func (e *Extractor) buildFromKV(symbol string, timestamp int64) (*snapshot.MarketStateSnapshot, error) {
	ind3m, found, err := e.reader.ReadIndicators3m(symbol, timestamp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("missing 3m indicators for %s at %d", symbol, timestamp)
	}

	ind4h, found, err := e.reader.ReadIndicators4h(symbol, timestamp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("missing 4h indicators for %s at %d", symbol, timestamp)
	}

	candle3m, found, err := e.reader.ReadCandles3m(symbol, timestamp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("missing 3m candle for %s at %d", symbol, timestamp)
	}

	price, err := extractF64(candle3m, "close")
	if err != nil {
		return nil, fmt.Errorf("extract close price: %w", err)
	}

	s := snapshot.New(symbol, timestamp, price)

	fields := []struct {
		frame json.RawMessage
		name  string
		dst   *float64
	}{
		{ind3m, "rsi_7", &s.RSI7},
		{ind3m, "rsi_14", &s.RSI14},
		{ind3m, "macd", &s.MACD},
		{ind3m, "ema_20", &s.EMA20},
		{ind4h, "ema_20", &s.EMA204h},
		{ind4h, "ema_50", &s.EMA504h},
		{ind4h, "atr_3", &s.ATR34h},
		{ind4h, "atr_14", &s.ATR144h},
	}
	for _, f := range fields {
		v, err := extractF64(f.frame, f.name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if err := e.fillTimeSeries3m(symbol, timestamp, s); err != nil {
		return nil, err
	}
	if err := e.fillTimeSeries4h(symbol, timestamp, s); err != nil {
		return nil, err
	}

	s.OpenInterestLatest = 0.0
	s.OpenInterestAvg24h = 0.0
	s.FundingRate = 0.0
	s.PriceChange1h = 0.0
	s.PriceChange4h = 0.0

	if err := e.fillOutcomes(symbol, timestamp, price, s); err != nil {
		log.Warn().Str("symbol", symbol).Int64("timestamp", timestamp).Err(err).
			Msg("could not compute forward outcomes, leaving nil")
	}

	return s, nil
}

func (e *Extractor) fillTimeSeries3m(symbol string, endTimestamp int64, s *snapshot.MarketStateSnapshot) error {
	series, err := e.reader.ReadSeries3m(symbol, endTimestamp, interval3mMS, 10)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no 3m time series data available")
	}

	for _, point := range series {
		if v, err := extractF64(point.Data, "ema_20"); err == nil {
			s.EMA20Values = append(s.EMA20Values, v)
		}
		if v, err := extractF64(point.Data, "macd"); err == nil {
			s.MACDValues = append(s.MACDValues, v)
		}
		if v, err := extractF64(point.Data, "rsi_7"); err == nil {
			s.RSI7Values = append(s.RSI7Values, v)
		}
		if v, err := extractF64(point.Data, "rsi_14"); err == nil {
			s.RSI14Values = append(s.RSI14Values, v)
		}

		candle, found, err := e.reader.ReadCandles3m(symbol, point.Timestamp)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("missing candle close price at %d", point.Timestamp)
		}
		close, err := extractF64(candle, "close")
		if err != nil {
			return fmt.Errorf("missing candle close price: %w", err)
		}
		s.MidPrices = append(s.MidPrices, close)
	}

	return nil
}

func (e *Extractor) fillTimeSeries4h(symbol string, endTimestamp int64, s *snapshot.MarketStateSnapshot) error {
	series, err := e.reader.ReadSeries4h(symbol, endTimestamp, interval4hMS, 10)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no 4h time series data available")
	}

	for _, point := range series {
		if v, err := extractF64(point.Data, "macd"); err == nil {
			s.MACD4hValues = append(s.MACD4hValues, v)
		}
		if v, err := extractF64(point.Data, "rsi_14"); err == nil {
			s.RSI144hValues = append(s.RSI144hValues, v)
		}
	}

	return nil
}

// fillOutcomes looks ahead to future candles to populate forward-looking
// outcome fields. Missing future data leaves the fields nil.
func (e *Extractor) fillOutcomes(symbol string, timestamp int64, basePrice float64, s *snapshot.MarketStateSnapshot) error {
	lookup := func(offsetMS int64) *float64 {
		candle, found, err := e.reader.ReadCandles3m(symbol, timestamp+offsetMS)
		if err != nil || !found {
			return nil
		}
		v, err := extractF64(candle, "close")
		if err != nil {
			return nil
		}
		return &v
	}

	price15m := lookup(15 * 60_000)
	price1h := lookup(60 * 60_000)
	price4h := lookup(4 * 60 * 60_000)
	price24h := lookup(24 * 60 * 60_000)

	h := outcome.ComputeHorizons(basePrice, price15m, price1h, price4h, price24h)
	s.Outcome15m = h.Outcome15m
	s.Outcome1h = h.Outcome1h
	s.Outcome4h = h.Outcome4h
	s.Outcome24h = h.Outcome24h

	var intraPrices []float64
	for offset := int64(3 * 60_000); offset <= 60*60_000; offset += 3 * 60_000 {
		if p := lookup(offset); p != nil {
			intraPrices = append(intraPrices, *p)
		}
	}
	if ip, ok := outcome.ComputeIntraperiod(basePrice, intraPrices); ok {
		s.MaxRunup1h = &ip.MaxRunup1h
		s.MaxDrawdown1h = &ip.MaxDrawdown1h
		s.HitStopLoss = &ip.HitStopLoss
		s.HitTakeProfit = &ip.HitTakeProfit
	}

	return nil
}

// extractMock generates deterministic snapshots using a sine-modulated
// synthetic price series fed through the real EMA/MACD/RSI/ATR math, so mock
// data exercises the same slope and ratio computations real data does.
func (e *Extractor) extractMock(symbol string, startTimestamp, endTimestamp int64, intervalMinutes int64) ([]*snapshot.MarketStateSnapshot, error) {
	intervalMS := intervalMinutes * 60_000
	var out []*snapshot.MarketStateSnapshot

	for ts := startTimestamp; ts < endTimestamp; ts += intervalMS {
		out = append(out, e.createMockSnapshot(symbol, ts))
	}

	log.Info().Str("symbol", symbol).Int("count", len(out)).Msg("extracted mock snapshots")
	return out, nil
}

// mockPriceSeries builds 30 synthetic close prices ending at timestamp, 3m
// apart, so indicator math has enough history to be "valid" per period.
func mockPriceSeries(timestamp int64, n int) []float64 {
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		ts := timestamp - int64(n-1-i)*interval3mMS
		t := float64(ts) / 1_000_000.0
		prices[i] = 50000.0 + math.Sin(t*math.Pi)*5000.0
	}
	return prices
}

func (e *Extractor) createMockSnapshot(symbol string, timestamp int64) *snapshot.MarketStateSnapshot {
	const seriesLen = 30
	prices := mockPriceSeries(timestamp, seriesLen)
	basePrice := prices[seriesLen-1]

	s := snapshot.New(symbol, timestamp, basePrice)

	rsi7Series := indicators.RSISeries(prices, 7)
	rsi14Series := indicators.RSISeries(prices, 14)
	macdSeries := indicators.MACDSeries(prices, 12, 26)
	ema20Series := indicators.EMASeries(prices, 20)

	s.RSI7 = rsi7Series[seriesLen-1]
	s.RSI14 = rsi14Series[seriesLen-1]
	s.MACD = macdSeries[seriesLen-1]
	s.EMA20 = ema20Series[seriesLen-1]

	s.EMA204h = indicators.CalculateEMA(prices, 20).Value * 0.995
	s.EMA504h = indicators.CalculateEMA(prices, 20).Value * 0.985
	s.ATR34h = 200.0
	s.ATR144h = 250.0
	s.CurrentVolume4h = 1_000_000.0
	s.AvgVolume4h = 900_000.0

	t := float64(timestamp) / 1_000_000.0
	s.OpenInterestLatest = 100_000.0 + math.Sin(t*math.Pi)*10_000.0
	s.OpenInterestAvg24h = 100_000.0
	s.FundingRate = math.Sin(t*math.Pi) * 0.0002
	s.PriceChange1h = math.Sin(t*math.Pi) * 2.0
	s.PriceChange4h = math.Sin(t*0.5*math.Pi) * 4.0

	const tailLen = 10
	s.MidPrices = prices[seriesLen-tailLen:]
	s.EMA20Values = ema20Series[seriesLen-tailLen:]
	s.MACDValues = macdSeries[seriesLen-tailLen:]
	s.RSI7Values = rsi7Series[seriesLen-tailLen:]
	s.RSI14Values = rsi14Series[seriesLen-tailLen:]
	s.MACD4hValues = macdSeries[seriesLen-tailLen:]
	s.RSI144hValues = rsi14Series[seriesLen-tailLen:]

	futureChange := math.Sin(t*math.Pi*3.0) * 2.0
	o15 := futureChange * 0.25
	o1h := futureChange * 0.5
	o4h := futureChange
	o24h := futureChange * 1.5
	s.Outcome15m = &o15
	s.Outcome1h = &o1h
	s.Outcome4h = &o4h
	s.Outcome24h = &o24h

	runup := math.Abs(futureChange) * 1.2
	drawdown := -math.Abs(futureChange) * 0.8
	hitStop := futureChange < -1.5
	hitTP := futureChange > 2.5
	s.MaxRunup1h = &runup
	s.MaxDrawdown1h = &drawdown
	s.HitStopLoss = &hitStop
	s.HitTakeProfit = &hitTP

	return s
}

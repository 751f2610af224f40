package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlopeRising(t *testing.T) {
	assert.Equal(t, 1.0, Slope([]float64{1, 2, 3, 4, 5}))
}

func TestSlopeFlat(t *testing.T) {
	assert.Equal(t, 0.0, Slope([]float64{3, 3, 3, 3}))
}

func TestSlopeDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, Slope(nil), "nil series")
	assert.Equal(t, 0.0, Slope([]float64{1}), "single point")
}

func TestEMARatio2050(t *testing.T) {
	s := New("BTC-USD", 0, 100)
	s.EMA204h = 110
	s.EMA504h = 100
	assert.Equal(t, 1.1, s.EMARatio2050())

	s.EMA504h = 0
	assert.Equal(t, 1.0, s.EMARatio2050(), "fallback on zero denominator")
}

func TestOIDeltaPct(t *testing.T) {
	s := New("BTC-USD", 0, 100)
	s.OpenInterestLatest = 110
	s.OpenInterestAvg24h = 100
	assert.Equal(t, 10.0, s.OIDeltaPct())

	s.OpenInterestAvg24h = 0
	assert.Equal(t, 0.0, s.OIDeltaPct(), "fallback on zero denominator")
}

func TestVolatilityRatio(t *testing.T) {
	s := New("BTC-USD", 0, 100)
	s.ATR34h = 2
	s.ATR144h = 4
	assert.Equal(t, 0.5, s.VolatilityRatio())

	s.ATR144h = 0
	assert.Equal(t, 1.0, s.VolatilityRatio(), "fallback on zero denominator")
}

func TestRSI7SlopeAndMACDSlope(t *testing.T) {
	s := New("BTC-USD", 0, 100)
	s.RSI7Values = []float64{40, 42, 44}
	s.MACDValues = []float64{-1, 0, 1}

	assert.Equal(t, 2.0, s.RSI7Slope())
	assert.Equal(t, 1.0, s.MACDSlope())
}

package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateRSIInsufficientData(t *testing.T) {
	result := CalculateRSI([]float64{1, 2, 3}, 14)
	assert.False(t, result.IsValid)
	assert.Equal(t, 50.0, result.Value)
}

func TestCalculateRSIAllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = float64(100 + i)
	}
	result := CalculateRSI(prices, 14)
	assert.True(t, result.IsValid)
	assert.Equal(t, 100.0, result.Value)
}

func TestCalculateATRInsufficientData(t *testing.T) {
	result := CalculateATR([]PriceBar{{High: 10, Low: 9, Close: 9.5}}, 14)
	assert.False(t, result.IsValid)
}

func TestCalculateEMAConstantSeries(t *testing.T) {
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 50.0
	}
	result := CalculateEMA(prices, 5)
	assert.True(t, result.IsValid)
	assert.InDelta(t, 50.0, result.Value, 1e-9)
}

func TestEMASeriesLength(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	series := EMASeries(prices, 3)
	assert.Len(t, series, len(prices))
}

func TestMACDSeriesLength(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	series := MACDSeries(prices, 2, 4)
	assert.Len(t, series, len(prices))
}

func TestRSISeriesLength(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	series := RSISeries(prices, 14)
	assert.Len(t, series, len(prices))
	for _, v := range series {
		assert.Equal(t, 50.0, v, "neutral RSI expected for short prefixes")
	}
}

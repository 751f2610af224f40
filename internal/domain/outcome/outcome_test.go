package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestComputeHorizonsNilPassthrough(t *testing.T) {
	h := ComputeHorizons(100.0, nil, floatPtr(102.0), nil, floatPtr(90.0))

	assert.Nil(t, h.Outcome15m)
	assert.Nil(t, h.Outcome4h)
	require.NotNil(t, h.Outcome1h)
	assert.Equal(t, 2.0, *h.Outcome1h)
	require.NotNil(t, h.Outcome24h)
	assert.Equal(t, -10.0, *h.Outcome24h)
}

func TestComputeIntraperiodEmpty(t *testing.T) {
	result, ok := ComputeIntraperiod(100.0, nil)
	assert.False(t, ok)
	assert.Equal(t, Intraperiod{}, result)
}

func TestComputeIntraperiodHitsBoth(t *testing.T) {
	prices := []float64{101, 97.5, 103.5, 99}
	result, ok := ComputeIntraperiod(100.0, prices)
	require.True(t, ok)
	assert.InDelta(t, 3.5, result.MaxRunup1h, 1e-9)
	assert.Equal(t, -2.5, result.MaxDrawdown1h)
	assert.True(t, result.HitStopLoss, "-2.5%% should trip the -2.0%% stop")
	assert.True(t, result.HitTakeProfit, "3.5%% should trip the 3.0%% target")
}

func TestComputeIntraperiodNoHits(t *testing.T) {
	prices := []float64{100.5, 99.5, 100.2}
	result, ok := ComputeIntraperiod(100.0, prices)
	require.True(t, ok)
	assert.False(t, result.HitStopLoss)
	assert.False(t, result.HitTakeProfit)
}

package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMockProducesExpectedCountFor1Hour15MinInterval(t *testing.T) {
	e := NewMock()
	start := int64(0)
	end := int64(60 * 60_000) // 1 hour in ms

	snapshots, err := e.ExtractSnapshots("BTC-USD", start, end, 15)
	require.NoError(t, err)
	require.Len(t, snapshots, 4, "expected 4 snapshots for a 1h range at 15m interval")

	for _, s := range snapshots {
		assert.Equal(t, "BTC-USD", s.Symbol)
		assert.Len(t, s.MidPrices, 10, "expected 10-point mid price tail")
		assert.NotNil(t, s.Outcome4h, "expected mock snapshot to populate Outcome4h")
	}
}

func TestExtractMockIsDeterministic(t *testing.T) {
	e := NewMock()
	a, err := e.ExtractSnapshots("ETH-USD", 0, 15*60_000, 15)
	require.NoError(t, err)
	b, err := e.ExtractSnapshots("ETH-USD", 0, 15*60_000, 15)
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Price, b[0].Price)
	assert.Equal(t, a[0].RSI7, b[0].RSI7)
	assert.Equal(t, a[0].MACD, b[0].MACD)
}

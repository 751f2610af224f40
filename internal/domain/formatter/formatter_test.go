package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
)

func baseSnapshot() *snapshot.MarketStateSnapshot {
	s := snapshot.New("BTC-USD", 1000, 50000)
	s.RSI7 = 55.0
	s.RSI14 = 52.0
	s.MACD = 1.5
	s.EMA204h = 100
	s.EMA504h = 100
	return s
}

func TestToEmbeddingTextIsDeterministic(t *testing.T) {
	a := ToEmbeddingText(baseSnapshot())
	b := ToEmbeddingText(baseSnapshot())
	assert.Equal(t, a, b, "equivalent snapshots must format identically")
}

func TestToEmbeddingTextRSIBuckets(t *testing.T) {
	cases := []struct {
		rsi  float64
		want string
	}{
		{85, "extremely overbought"},
		{75, "overbought"},
		{65, "bullish territory"},
		{50, "neutral"},
		{35, "bearish territory"},
		{25, "oversold"},
		{5, "extremely oversold"},
	}
	for _, c := range cases {
		s := baseSnapshot()
		s.RSI7 = c.rsi
		text := ToEmbeddingText(s)
		assert.Contains(t, text, c.want, "RSI=%v", c.rsi)
	}
}

func TestToEmbeddingTextOmitsConditionalSentencesWhenBelowThreshold(t *testing.T) {
	s := baseSnapshot()
	s.PriceChange1h = 0.1
	s.PriceChange4h = 0.2
	text := ToEmbeddingText(s)
	assert.NotContains(t, text, "last hour")
	assert.NotContains(t, text, "last 4 hours")
}

func TestToEmbeddingTextIncludesPriceChangeAboveThreshold(t *testing.T) {
	s := baseSnapshot()
	s.PriceChange1h = 1.25
	text := ToEmbeddingText(s)
	assert.Contains(t, text, "+1.25% in the last hour")
}

func TestToEmbeddingTextPrefixIncludesSymbol(t *testing.T) {
	text := ToEmbeddingText(baseSnapshot())
	assert.True(t, strings.HasPrefix(text, "Market state for BTC-USD: "))
}

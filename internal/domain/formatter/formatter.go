// Package formatter renders a MarketStateSnapshot into deterministic text
// for the Embedder. The same formatter MUST be reachable from ingestion and
// retrieval (spec §9) — it is a stand-alone library leaf, never a method on
// the snapshot type, so both call sites are guaranteed to produce
// byte-identical text for equivalent snapshot content.
package formatter

import (
	"fmt"
	"strings"

	"github.com/sawpanic/ragpatterns/internal/domain/snapshot"
)

// ToEmbeddingText renders the rich natural-language form used as Embedder
// input. Facts are rendered in a fixed order and joined by ". ", prefixed
// with "Market state for {symbol}: ". Rounding MUST match exactly, or
// cosine similarity between ingest-time and query-time embeddings becomes
// meaningless.
func ToEmbeddingText(s *snapshot.MarketStateSnapshot) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("RSI(7) is %.1f, which is %s", s.RSI7, interpretRSI(s.RSI7)))
	parts = append(parts, fmt.Sprintf("RSI(14) is %.1f", s.RSI14))

	parts = append(parts, fmt.Sprintf("MACD is %.2f", s.MACD))
	macdSlope := s.MACDSlope()
	macdMom := "flat"
	if macdSlope > 0 {
		macdMom = "rising"
	} else if macdSlope < 0 {
		macdMom = "falling"
	}
	parts = append(parts, fmt.Sprintf("MACD momentum is %s (slope %.3f)", macdMom, macdSlope))

	emaRatio := s.EMARatio2050()
	trend := "sideways"
	if emaRatio > 1.005 {
		trend = "strong uptrend"
	} else if emaRatio < 0.995 {
		trend = "strong downtrend"
	}
	parts = append(parts, fmt.Sprintf("EMA(20)/EMA(50) ratio is %.4f, indicating %s", emaRatio, trend))

	oiDelta := s.OIDeltaPct()
	oiSentiment := "stable"
	if oiDelta > 5.0 {
		oiSentiment = "rising significantly"
	} else if oiDelta < -5.0 {
		oiSentiment = "dropping significantly"
	}
	parts = append(parts, fmt.Sprintf("Open interest is %s (%+.1f%% vs 24h average)", oiSentiment, oiDelta))

	fundingSentiment := "neutral"
	if s.FundingRate > 0.0005 {
		fundingSentiment = "highly positive (longs paying shorts)"
	} else if s.FundingRate < -0.0005 {
		fundingSentiment = "highly negative (shorts paying longs)"
	}
	parts = append(parts, fmt.Sprintf("Funding rate is %s", fundingSentiment))

	rsiSlope := s.RSI7Slope()
	if abs(rsiSlope) > 2.0 {
		direction := "accelerating down"
		if rsiSlope > 0 {
			direction = "accelerating up"
		}
		parts = append(parts, fmt.Sprintf("RSI momentum is %s", direction))
	}

	if s.ATR144h > 0.0 && s.ATR34h > 0.0 {
		volState := "normal"
		if s.ATR34h > s.ATR144h*1.5 {
			volState = "elevated"
		}
		parts = append(parts, fmt.Sprintf("Volatility is %s", volState))
	}

	if abs(s.PriceChange1h) > 0.5 {
		parts = append(parts, fmt.Sprintf("Price changed %+.2f%% in the last hour", s.PriceChange1h))
	}
	if abs(s.PriceChange4h) > 1.0 {
		parts = append(parts, fmt.Sprintf("Price changed %+.2f%% in the last 4 hours", s.PriceChange4h))
	}

	return fmt.Sprintf("Market state for %s: %s", s.Symbol, strings.Join(parts, ". "))
}

// ToEmbeddingTextSimple renders the numeric diagnostic form: a single
// comma-delimited line of named key:value pairs. Not used for retrieval.
func ToEmbeddingTextSimple(s *snapshot.MarketStateSnapshot) string {
	return fmt.Sprintf(
		"Symbol: %s, Price: %.1f, RSI(7): %.1f, RSI(14): %.1f, MACD: %.2f, "+
			"EMA Ratio 20/50: %.4f, OI Delta: %+.1f%%, Funding: %.6f, "+
			"ATR(14): %.2f, Price Change 1h: %+.2f%%, Price Change 4h: %+.2f%%",
		s.Symbol, s.Price, s.RSI7, s.RSI14, s.MACD,
		s.EMARatio2050(), s.OIDeltaPct(), s.FundingRate,
		s.ATR144h, s.PriceChange1h, s.PriceChange4h,
	)
}

// interpretRSI buckets an RSI value into the seven documented regimes.
func interpretRSI(rsi float64) string {
	switch {
	case rsi >= 80.0:
		return "extremely overbought"
	case rsi >= 70.0:
		return "overbought"
	case rsi >= 60.0:
		return "bullish territory"
	case rsi >= 40.0:
		return "neutral"
	case rsi >= 30.0:
		return "bearish territory"
	case rsi >= 20.0:
		return "oversold"
	default:
		return "extremely oversold"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

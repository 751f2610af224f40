// Package outcome computes forward-looking trade outcomes as a pure function
// of (base price, future prices, intra-period prices). It has no I/O
// dependency so it can be unit tested in isolation, per the determinism
// contract the teacher repo applies to its indicator math.
package outcome

const (
	// StopLossPct is the percent drawdown from base price that counts as a
	// stop-loss hit within the measurement window.
	StopLossPct = -2.0
	// TakeProfitPct is the percent run-up from base price that counts as a
	// take-profit hit within the measurement window.
	TakeProfitPct = 3.0
)

// Horizons holds the percent-change outcome at each forward horizon. A nil
// pointer means the corresponding future price was not available.
type Horizons struct {
	Outcome15m *float64
	Outcome1h  *float64
	Outcome4h  *float64
	Outcome24h *float64
}

// Intraperiod holds the max run-up/drawdown and stop/target flags computed
// from a series of prices sampled within the first hour after base price.
type Intraperiod struct {
	MaxRunup1h    float64
	MaxDrawdown1h float64
	HitStopLoss   bool
	HitTakeProfit bool
}

func pctChange(base, future float64) float64 {
	return (future - base) / base * 100.0
}

// ComputeHorizons converts optional future prices into percent-change
// outcomes relative to basePrice. A nil input price yields a nil outcome.
func ComputeHorizons(basePrice float64, price15m, price1h, price4h, price24h *float64) Horizons {
	convert := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := pctChange(basePrice, *p)
		return &v
	}
	return Horizons{
		Outcome15m: convert(price15m),
		Outcome1h:  convert(price1h),
		Outcome4h:  convert(price4h),
		Outcome24h: convert(price24h),
	}
}

// ComputeIntraperiod scans intraPeriodPrices (any order caller samples them
// in) and tracks the peak run-up, trough drawdown, and whether the stop-loss
// or take-profit threshold was crossed at any point. Returns the zero value
// if prices is empty — callers should leave the corresponding snapshot
// fields nil in that case rather than persisting a false "no hit".
func ComputeIntraperiod(basePrice float64, intraPeriodPrices []float64) (Intraperiod, bool) {
	if len(intraPeriodPrices) == 0 {
		return Intraperiod{}, false
	}

	var maxRunup, maxDrawdown float64
	var hitStop, hitTP bool

	for _, price := range intraPeriodPrices {
		change := pctChange(basePrice, price)
		if change > maxRunup {
			maxRunup = change
		}
		if change < maxDrawdown {
			maxDrawdown = change
		}
		if change <= StopLossPct {
			hitStop = true
		}
		if change >= TakeProfitPct {
			hitTP = true
		}
	}

	return Intraperiod{
		MaxRunup1h:    maxRunup,
		MaxDrawdown1h: maxDrawdown,
		HitStopLoss:   hitStop,
		HitTakeProfit: hitTP,
	}, true
}

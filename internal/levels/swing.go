package levels

import (
	"math"

	"riskCore/internal/domain"
)

// DetectSwings finds bars whose high (low) is strictly above (below) every
// high (low) in the Lookback bars on either side. Ties disqualify.
func (d *Detector) DetectSwings(klines []*domain.Kline, timeframe string, atr float64) []domain.Level {
	lb := d.cfg.Lookback
	if len(klines) < 2*lb+1 {
		return nil
	}

	var out []domain.Level
	for i := lb; i < len(klines)-lb; i++ {
		if isSwing(klines, i, lb, true) {
			out = append(out, d.swingZone(klines, i, klines[i].High, domain.LevelSwingHigh, timeframe, atr))
		}
		if isSwing(klines, i, lb, false) {
			out = append(out, d.swingZone(klines, i, klines[i].Low, domain.LevelSwingLow, timeframe, atr))
		}
	}
	return out
}

func isSwing(klines []*domain.Kline, i, lb int, high bool) bool {
	for j := i - lb; j <= i+lb; j++ {
		if j == i {
			continue
		}
		if high && klines[j].High >= klines[i].High {
			return false
		}
		if !high && klines[j].Low <= klines[i].Low {
			return false
		}
	}
	return true
}

func (d *Detector) swingZone(klines []*domain.Kline, i int, price float64, t domain.LevelType, timeframe string, atr float64) domain.Level {
	half := d.clampHalfWidth(price, math.Max(atr*d.cfg.ATRMultiplier, price*d.cfg.MinZoneWidthPct/100))
	lvl := newZone(price, half, t, domain.MethodSwing, timeframe)
	lvl.FirstTouch = klines[i].OpenTime
	if t == domain.LevelSwingHigh {
		lvl.Label = "Swing High"
	} else {
		lvl.Label = "Swing Low"
	}

	// Strength grows with revisits after the confirmation window.
	retests := 0
	for j := i + d.cfg.Lookback + 1; j < len(klines); j++ {
		if klines[j].High >= lvl.PriceLow && klines[j].Low <= lvl.PriceHigh {
			retests++
		}
	}
	switch {
	case retests >= 4:
		lvl.Strength = domain.StrengthStrong
	case retests >= 2:
		lvl.Strength = domain.StrengthModerate
	default:
		lvl.Strength = domain.StrengthWeak
	}
	return lvl
}

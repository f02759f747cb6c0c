package levels

import (
	"sort"

	"riskCore/internal/domain"
)

type dayExtremes struct {
	date          string
	high, low     float64
	highAt, lowAt *domain.Kline
}

// DetectDaily builds zones around each of the last DailyLookback UTC days'
// high and low. Bars without timestamps yield nothing.
func (d *Detector) DetectDaily(klines []*domain.Kline, timeframe string) []domain.Level {
	if len(klines) < minDailyBars {
		return nil
	}

	byDay := make(map[string]*dayExtremes)
	for _, k := range klines {
		if k.OpenTime.IsZero() {
			return nil
		}
		key := k.OpenTime.UTC().Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			byDay[key] = &dayExtremes{date: key, high: k.High, low: k.Low, highAt: k, lowAt: k}
			continue
		}
		if k.High > day.high {
			day.high, day.highAt = k.High, k
		}
		if k.Low < day.low {
			day.low, day.lowAt = k.Low, k
		}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > d.cfg.DailyLookback {
		keys = keys[len(keys)-d.cfg.DailyLookback:]
	}

	meanRange := 0.0
	for _, k := range keys {
		meanRange += byDay[k].high - byDay[k].low
	}
	meanRange /= float64(len(keys))
	half := meanRange * dailyWidthOfRange

	out := make([]domain.Level, 0, 2*len(keys))
	for _, k := range keys {
		day := byDay[k]

		hi := newZone(day.high, d.clampHalfWidth(day.high, half), domain.LevelDailyHigh, domain.MethodSwing, timeframe)
		hi.Label = "Daily High " + day.date
		hi.Strength = domain.StrengthModerate
		hi.FirstTouch = day.highAt.OpenTime

		lo := newZone(day.low, d.clampHalfWidth(day.low, half), domain.LevelDailyLow, domain.MethodSwing, timeframe)
		lo.Label = "Daily Low " + day.date
		lo.Strength = domain.StrengthModerate
		lo.FirstTouch = day.lowAt.OpenTime

		out = append(out, hi, lo)
	}
	return out
}

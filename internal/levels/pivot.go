package levels

import "riskCore/internal/domain"

// DetectPivots computes classic floor pivots from the previous completed bar.
func (d *Detector) DetectPivots(klines []*domain.Kline, timeframe string) []domain.Level {
	if len(klines) < 2 {
		return nil
	}
	prev := klines[len(klines)-2]
	h, l, c := prev.High, prev.Low, prev.Close
	pp := (h + l + c) / 3
	rng := h - l
	half := rng * pivotWidthOfRange

	points := []struct {
		label    string
		price    float64
		t        domain.LevelType
		strength domain.Strength
	}{
		{"S2", pp - rng, domain.LevelSupport, domain.StrengthWeak},
		{"S1", 2*pp - h, domain.LevelSupport, domain.StrengthModerate},
		{"PP", pp, domain.LevelPivot, domain.StrengthStrong},
		{"R1", 2*pp - l, domain.LevelResistance, domain.StrengthModerate},
		{"R2", pp + rng, domain.LevelResistance, domain.StrengthWeak},
	}

	out := make([]domain.Level, 0, len(points))
	for _, p := range points {
		if p.price <= 0 {
			continue
		}
		lvl := newZone(p.price, d.clampHalfWidth(p.price, half), p.t, domain.MethodPivot, timeframe)
		lvl.Label = p.label
		lvl.Strength = p.strength
		lvl.FirstTouch = prev.OpenTime
		out = append(out, lvl)
	}
	return out
}

package levels

import (
	"fmt"
	"sort"
	"time"

	"riskCore/internal/domain"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// DetectClusters pools every high and low, sorts them and greedily groups
// neighbours whose gap is within ClusterThresholdPct of the mean price.
func (d *Detector) DetectClusters(klines []*domain.Kline, timeframe string, atr float64) []domain.Level {
	if len(klines) < minClusterBars {
		return nil
	}

	points := make([]pricePoint, 0, 2*len(klines))
	sum := 0.0
	for _, k := range klines {
		points = append(points, pricePoint{k.High, k.OpenTime}, pricePoint{k.Low, k.OpenTime})
		sum += k.High + k.Low
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].price < points[j].price })

	mean := sum / float64(len(points))
	threshold := mean * d.cfg.ClusterThresholdPct / 100
	lastClose := klines[len(klines)-1].Close

	var out []domain.Level
	start := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && points[i].price-points[i-1].price <= threshold {
			continue
		}
		if group := points[start:i]; len(group) >= d.cfg.MinClusterSize {
			out = append(out, d.clusterZone(group, timeframe, atr, lastClose))
		}
		start = i
	}
	return out
}

func (d *Detector) clusterZone(group []pricePoint, timeframe string, atr, lastClose float64) domain.Level {
	low, high := group[0].price, group[len(group)-1].price
	if minWidth := atr * d.cfg.ATRMultiplier; high-low < minWidth {
		mid := (low + high) / 2
		low, high = mid-minWidth/2, mid+minWidth/2
	}
	mid := (low + high) / 2

	t := domain.LevelSupport
	if mid >= lastClose {
		t = domain.LevelResistance
	}

	first := group[0].at
	for _, p := range group[1:] {
		if !p.at.IsZero() && (first.IsZero() || p.at.Before(first)) {
			first = p.at
		}
	}

	touches := len(group)
	strength := domain.StrengthWeak
	switch {
	case touches >= 2*d.cfg.MinClusterSize+2:
		strength = domain.StrengthStrong
	case touches >= d.cfg.MinClusterSize+2:
		strength = domain.StrengthModerate
	}

	return domain.Level{
		ID:         domain.LevelID(mid, t, timeframe),
		Type:       t,
		PriceLow:   low,
		PriceHigh:  high,
		Strength:   strength,
		Method:     domain.MethodCluster,
		Timeframe:  timeframe,
		Touches:    touches,
		Label:      fmt.Sprintf("Cluster x%d", touches),
		FirstTouch: first,
	}
}

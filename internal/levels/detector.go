// Package levels turns a price-bar sequence into support/resistance zones.
//
// Each sub-detector is pure: it reads the bars it is given and returns a
// (possibly empty) slice. Too little data is never an error.
package levels

import (
	"context"
	"fmt"
	"math"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
	"riskCore/internal/strategy/indicators"
)

const (
	minClusterBars = 20
	minDailyBars   = 24

	pivotWidthOfRange = 0.05 // pivot half-width as a fraction of the previous bar's range
	dailyWidthOfRange = 0.02 // daily half-width as a fraction of the mean daily range
)

// Config holds the detector parameters.
type Config struct {
	Lookback            int     // Bars on each side of a swing point
	ATRPeriod           int     // Period for the volatility estimate
	ATRMultiplier       float64 // k in ATR*k zone sizing
	MinZoneWidthPct     float64 // Lower bound of a zone half-width, % of anchor price
	MaxZoneWidthPct     float64 // Upper bound of a zone half-width, % of anchor price
	ClusterThresholdPct float64 // Max gap between neighbours, % of mean price
	MinClusterSize      int     // Members needed to keep a cluster
	DailyLookback       int     // Most recent calendar days used for daily levels
}

// DefaultConfig returns the parameters used by the service when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Lookback:            5,
		ATRPeriod:           14,
		ATRMultiplier:       0.5,
		MinZoneWidthPct:     0.05,
		MaxZoneWidthPct:     0.5,
		ClusterThresholdPct: 0.15,
		MinClusterSize:      3,
		DailyLookback:       5,
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c Config) Validate() error {
	switch {
	case c.Lookback <= 0:
		return fmt.Errorf("lookback must be positive: %w", ports.ErrConfigurationError)
	case c.ATRPeriod <= 0:
		return fmt.Errorf("ATR period must be positive: %w", ports.ErrConfigurationError)
	case c.ATRMultiplier < 0:
		return fmt.Errorf("ATR multiplier cannot be negative: %w", ports.ErrConfigurationError)
	case c.MinZoneWidthPct < 0 || c.MaxZoneWidthPct < c.MinZoneWidthPct:
		return fmt.Errorf("zone width bounds must satisfy 0 <= min <= max: %w", ports.ErrConfigurationError)
	case c.ClusterThresholdPct <= 0:
		return fmt.Errorf("cluster threshold must be positive: %w", ports.ErrConfigurationError)
	case c.MinClusterSize < 1:
		return fmt.Errorf("min cluster size must be at least 1: %w", ports.ErrConfigurationError)
	case c.DailyLookback < 1:
		return fmt.Errorf("daily lookback must be at least 1: %w", ports.ErrConfigurationError)
	}
	return nil
}

// Detector runs the swing, pivot, cluster and daily detectors.
type Detector struct {
	cfg    Config
	atr    *indicators.ATR
	logger ports.Logger
}

// NewDetector creates a detector after validating cfg.
func NewDetector(cfg Config, logger ports.Logger) (*Detector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for level detector")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg: cfg,
		atr: indicators.NewATR(indicators.ATRConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ATRPeriod},
			Smoothing:       indicators.ATRSimple,
		}),
		logger: logger,
	}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// ATR returns the average true range of klines. With fewer than ATRPeriod+1
// bars it falls back to the mean of whatever true ranges exist.
func (d *Detector) ATR(ctx context.Context, klines []*domain.Kline) float64 {
	v, err := d.atr.Calculate(ctx, klines)
	if err == nil {
		return v
	}
	return manualATR(klines, d.cfg.ATRPeriod)
}

// manualATR is the rolling mean of the last period true ranges.
func manualATR(klines []*domain.Kline, period int) float64 {
	trs := indicators.TrueRanges(klines)
	if len(trs) == 0 {
		if len(klines) == 1 {
			return klines[0].Range()
		}
		return 0
	}
	if period > 0 && len(trs) > period {
		trs = trs[len(trs)-period:]
	}
	sum := 0.0
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(len(trs))
}

// Detect concatenates swing, pivot, cluster and daily zones, dropping repeated IDs.
func (d *Detector) Detect(ctx context.Context, klines []*domain.Kline, timeframe string, atr float64) []domain.Level {
	groups := [][]domain.Level{
		d.DetectSwings(klines, timeframe, atr),
		d.DetectPivots(klines, timeframe),
		d.DetectClusters(klines, timeframe, atr),
		d.DetectDaily(klines, timeframe),
	}

	seen := make(map[string]struct{})
	var out []domain.Level
	for _, g := range groups {
		for _, lvl := range g {
			if _, dup := seen[lvl.ID]; dup {
				continue
			}
			seen[lvl.ID] = struct{}{}
			out = append(out, lvl)
		}
	}

	d.logger.Debug(ctx, "Levels detected", map[string]interface{}{
		"timeframe": timeframe,
		"bars":      len(klines),
		"atr":       atr,
		"swing":     len(groups[0]),
		"pivot":     len(groups[1]),
		"cluster":   len(groups[2]),
		"daily":     len(groups[3]),
		"total":     len(out),
	})
	return out
}

// DetectWithATR computes ATR from klines and then runs Detect.
func (d *Detector) DetectWithATR(ctx context.Context, klines []*domain.Kline, timeframe string) ([]domain.Level, float64) {
	atr := d.ATR(ctx, klines)
	return d.Detect(ctx, klines, timeframe, atr), atr
}

// clampHalfWidth bounds half into [min%, max%] of anchor.
func (d *Detector) clampHalfWidth(anchor, half float64) float64 {
	lo := math.Abs(anchor) * d.cfg.MinZoneWidthPct / 100
	hi := math.Abs(anchor) * d.cfg.MaxZoneWidthPct / 100
	if half < lo {
		half = lo
	}
	if half > hi {
		half = hi
	}
	return half
}

func newZone(anchor, half float64, t domain.LevelType, method domain.DetectionMethod, timeframe string) domain.Level {
	return domain.Level{
		ID:        domain.LevelID(anchor, t, timeframe),
		Type:      t,
		PriceLow:  anchor - half,
		PriceHigh: anchor + half,
		Method:    method,
		Timeframe: timeframe,
	}
}

// Nearest returns the zone closest to price entirely above it (above=true)
// or entirely below it (above=false).
func Nearest(levels []domain.Level, price float64, above bool) (domain.Level, bool) {
	var best domain.Level
	found := false
	for _, lvl := range levels {
		if above {
			if lvl.PriceLow > price && (!found || lvl.PriceLow < best.PriceLow) {
				best, found = lvl, true
			}
			continue
		}
		if lvl.PriceHigh < price && (!found || lvl.PriceHigh > best.PriceHigh) {
			best, found = lvl, true
		}
	}
	return best, found
}

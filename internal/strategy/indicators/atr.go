package indicators

import (
	"context"
	"fmt"
	"math"

	"riskCore/internal/domain"
)

// ATRSmoothing selects how true ranges are averaged.
type ATRSmoothing string

const (
	// ATRSimple is the rolling mean of the last Period true ranges.
	ATRSimple ATRSmoothing = "simple"
	// ATRWilder applies Wilder's recursive smoothing over the whole series.
	ATRWilder ATRSmoothing = "wilder"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
	Smoothing ATRSmoothing
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	if config.Smoothing == "" {
		config.Smoothing = ATRSimple
	}
	return &ATR{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints is Period+1: every true range needs the previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(k, prev *domain.Kline) float64 {
	tr := k.High - k.Low
	if prev == nil {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(k.High-prev.Close), math.Abs(k.Low-prev.Close)))
}

// TrueRanges returns the true range of every bar after the first.
func TrueRanges(klines []*domain.Kline) []float64 {
	if len(klines) < 2 {
		return nil
	}
	out := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		out = append(out, TrueRange(klines[i], klines[i-1]))
	}
	return out
}

// Calculate computes the Average True Range value for the given klines
func (a *ATR) Calculate(_ context.Context, klines []*domain.Kline) (float64, error) {
	period := a.config.Period
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(klines) < period+1 {
		return 0, insufficient("ATR", period+1, len(klines))
	}

	trs := TrueRanges(klines)

	switch a.config.Smoothing {
	case ATRSimple:
		// Running window sum over the tail.
		sum := 0.0
		for _, tr := range trs[len(trs)-period:] {
			sum += tr
		}
		return sum / float64(period), nil
	case ATRWilder:
		atr := 0.0
		for i := 0; i < period; i++ {
			atr += trs[i]
		}
		atr /= float64(period)
		for i := period; i < len(trs); i++ {
			atr = (atr*float64(period-1) + trs[i]) / float64(period)
		}
		return atr, nil
	default:
		return 0, fmt.Errorf("unsupported ATR smoothing: %s", a.config.Smoothing)
	}
}

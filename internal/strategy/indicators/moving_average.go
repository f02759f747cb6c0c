package indicators

import (
	"context"
	"fmt"

	"riskCore/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators over closing prices.
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(_ context.Context, klines []*domain.Kline) (float64, error) {
	period := m.Config.Period
	if period <= 0 {
		return 0, fmt.Errorf("%s period must be positive, got %d", m.config.Type, period)
	}
	if len(klines) < period {
		return 0, insufficient(string(m.config.Type), period, len(klines))
	}
	values := closes(klines)
	switch m.config.Type {
	case SimpleMovingAverage:
		return sma(values[len(values)-period:]), nil
	case ExponentialMovingAverage:
		return ema(values, period), nil
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

func sma(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// ema seeds with the SMA of the first period values and walks forward.
func ema(values []float64, period int) float64 {
	multiplier := 2.0 / float64(period+1)
	out := sma(values[:period])
	for _, v := range values[period:] {
		out = (v-out)*multiplier + out
	}
	return out
}

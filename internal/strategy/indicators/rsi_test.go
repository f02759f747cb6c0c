package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
)

func closesToKlines(values ...float64) []*domain.Kline {
	start := time.Now().Add(-time.Duration(len(values)) * time.Hour)
	out := make([]*domain.Kline, len(values))
	for i, v := range values {
		out[i] = &domain.Kline{OpenTime: start.Add(time.Duration(i) * time.Hour), Close: v}
	}
	return out
}

func TestRSI_Calculate(t *testing.T) {
	cfg := RSIConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Overbought: 70, Oversold: 30}

	tests := []struct {
		name          string
		config        RSIConfig
		klines        []*domain.Kline
		expectedValue float64
		expectError   bool
	}{
		{
			name:          "Wilder smoothing over alternating moves",
			config:        cfg,
			klines:        closesToKlines(100, 102, 101, 103, 102, 104),
			expectedValue: 77.272727,
		},
		{
			name:        "Insufficient data",
			config:      RSIConfig{IndicatorConfig: IndicatorConfig{Period: 7}},
			klines:      closesToKlines(100, 102, 101, 103, 102, 104),
			expectError: true,
		},
		{
			name:          "All gains",
			config:        cfg,
			klines:        closesToKlines(100, 102, 104, 106),
			expectedValue: 100.0,
		},
		{
			name:          "All losses",
			config:        cfg,
			klines:        closesToKlines(106, 104, 102, 100),
			expectedValue: 0.0,
		},
		{
			name:          "Flat prices are neutral",
			config:        cfg,
			klines:        closesToKlines(100, 100, 100, 100),
			expectedValue: 50.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := NewRSI(tt.config).Calculate(context.Background(), tt.klines)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedValue, value, 0.0001)
		})
	}
}

func TestRSI_IsOverboughtOversold(t *testing.T) {
	rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Overbought: 70, Oversold: 30})

	tests := []struct {
		value        float64
		isOverbought bool
		isOversold   bool
	}{
		{75.0, true, false},
		{25.0, false, true},
		{50.0, false, false},
		{70.0, true, false},
		{30.0, false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.isOverbought, rsi.IsOverbought(tt.value), "IsOverbought(%v)", tt.value)
		assert.Equal(t, tt.isOversold, rsi.IsOversold(tt.value), "IsOversold(%v)", tt.value)
	}
	assert.Equal(t, "RSI", rsi.Name())
	assert.Equal(t, 15, rsi.RequiredDataPoints())
}

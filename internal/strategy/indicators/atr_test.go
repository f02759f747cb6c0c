package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

func atrKlines() []*domain.Kline {
	now := time.Now()
	return []*domain.Kline{
		{OpenTime: now.Add(-4 * time.Hour), High: 10, Low: 8, Close: 9},
		{OpenTime: now.Add(-3 * time.Hour), High: 11, Low: 9, Close: 10},  // TR 2
		{OpenTime: now.Add(-2 * time.Hour), High: 12, Low: 9, Close: 11},  // TR 3
		{OpenTime: now.Add(-1 * time.Hour), High: 13, Low: 11, Close: 12}, // TR 2
		{OpenTime: now, High: 12, Low: 10, Close: 10},                     // TR 2
	}
}

func TestTrueRanges(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 2, 2}, TrueRanges(atrKlines()))
	assert.Nil(t, TrueRanges(atrKlines()[:1]))
}

func TestATR_Calculate(t *testing.T) {
	tests := []struct {
		name      string
		config    ATRConfig
		klines    []*domain.Kline
		expected  float64
		expectErr error
	}{
		{
			name:     "simple rolling mean of last period",
			config:   ATRConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Smoothing: ATRSimple},
			klines:   atrKlines(),
			expected: 7.0 / 3.0,
		},
		{
			name:     "default smoothing is simple",
			config:   ATRConfig{IndicatorConfig: IndicatorConfig{Period: 3}},
			klines:   atrKlines(),
			expected: 7.0 / 3.0,
		},
		{
			name:     "wilder smoothing",
			config:   ATRConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Smoothing: ATRWilder},
			klines:   atrKlines(),
			expected: (7.0/3.0*2 + 2) / 3,
		},
		{
			name:      "insufficient data",
			config:    ATRConfig{IndicatorConfig: IndicatorConfig{Period: 5}},
			klines:    atrKlines(),
			expectErr: ports.ErrInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atr := NewATR(tt.config)
			value, err := atr.Calculate(context.Background(), tt.klines)
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, value, 0.0001)
		})
	}
}

func TestATR_RequiredDataPoints(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	assert.Equal(t, 15, atr.RequiredDataPoints())
	assert.Equal(t, "ATR", atr.Name())
}

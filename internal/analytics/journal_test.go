package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
)

func trade(pnl float64, trigger domain.ExitTrigger, exit time.Time, hold time.Duration) *domain.Trade {
	return &domain.Trade{
		Symbol:    "ETHUSDT",
		Side:      domain.Long,
		PNL:       pnl,
		Trigger:   trigger,
		EntryTime: exit.Add(-hold),
		ExitTime:  exit,
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 1000)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 1000.0, s.FinalBalance)
	assert.Empty(t, s.Daily)
}

func TestSummarize(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	trades := []*domain.Trade{
		trade(-50, domain.TriggerStopLoss, day2, time.Hour),
		trade(100, domain.TriggerTakeProfit, day1, 2*time.Hour),
		trade(-25, domain.TriggerStopLoss, day2.Add(time.Hour), time.Hour),
		trade(60, domain.TriggerTrailingStop, day2.Add(2*time.Hour), 4*time.Hour),
		trade(0, "", day2.Add(3*time.Hour), 2*time.Hour),
	}
	first := trades[0]

	s := Summarize(trades, 1000)
	require.Equal(t, 5, s.TotalTrades)
	assert.Same(t, first, trades[0], "input order must be preserved")

	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 3, s.LosingTrades)
	assert.InDelta(t, 0.4, s.WinRate, 1e-9)
	assert.InDelta(t, 85, s.TotalPNL, 1e-9)
	assert.InDelta(t, 1085, s.FinalBalance, 1e-9)
	assert.InDelta(t, 80, s.AverageWin, 1e-9)
	assert.InDelta(t, -25, s.AverageLoss, 1e-9)
	assert.InDelta(t, 160.0/75.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 17, s.Expectancy, 1e-9)
	assert.Equal(t, 2, s.MaxConsecutiveLosses)
	assert.Equal(t, 1, s.MaxConsecutiveWins)
	assert.Equal(t, 2*time.Hour, s.AverageHoldTime)

	// Peak 1100 after the first win, trough 1025 two trades later.
	assert.InDelta(t, 75.0/1100.0, s.MaxDrawdown, 1e-9)

	assert.Equal(t, TriggerStats{Trades: 2, PNL: -75}, s.ByTrigger[domain.TriggerStopLoss])
	assert.Equal(t, 1, s.ByTrigger[domain.TriggerUnknown].Trades)

	require.Len(t, s.Daily, 2)
	assert.Equal(t, DailyPNL{Day: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), PNL: 100, Trades: 1}, s.Daily[0])
	assert.Equal(t, 4, s.Daily[1].Trades)
	assert.InDelta(t, -15, s.Daily[1].PNL, 1e-9)
}

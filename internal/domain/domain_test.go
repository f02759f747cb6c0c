package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelID_Deterministic(t *testing.T) {
	a := LevelID(101.25, LevelSupport, "1h")
	assert.Equal(t, a, LevelID(101.25, LevelSupport, "1h"))
	assert.NotEqual(t, a, LevelID(101.25, LevelResistance, "1h"))
	assert.NotEqual(t, a, LevelID(101.25, LevelSupport, "4h"))
	assert.NotEqual(t, a, LevelID(101.26, LevelSupport, "1h"))
}

func TestLevel_Geometry(t *testing.T) {
	l := Level{PriceLow: 99, PriceHigh: 101}
	assert.Equal(t, 100.0, l.Mid())
	assert.Equal(t, 2.0, l.Width())
	assert.True(t, l.Contains(99))
	assert.True(t, l.Contains(101))
	assert.False(t, l.Contains(101.01))
}

func TestSignal_RewardRisk(t *testing.T) {
	long := &Signal{Side: Long, EntryPrice: 100, StopLoss: 98, TakeProfit: 106}
	assert.InDelta(t, 3.0, long.RewardRisk(), 1e-9)

	short := &Signal{Side: Short, EntryPrice: 100, StopLoss: 102, TakeProfit: 97}
	assert.InDelta(t, 1.5, short.RewardRisk(), 1e-9)

	inverted := &Signal{Side: Long, EntryPrice: 100, StopLoss: 101, TakeProfit: 106}
	assert.Zero(t, inverted.RewardRisk())
}

func TestMonitoredPosition_ApplyPrice(t *testing.T) {
	p := &MonitoredPosition{Side: Short, EntryPrice: 200, Quantity: 2}

	p.ApplyPrice(190)
	assert.Equal(t, 20.0, p.UnrealizedPNL)
	assert.InDelta(t, 5.0, p.UnrealizedPNLPct, 1e-9)
	assert.Equal(t, 190.0, p.HighestPrice)
	assert.Equal(t, 190.0, p.LowestPrice)

	p.ApplyPrice(205)
	assert.Equal(t, -10.0, p.UnrealizedPNL)
	assert.Equal(t, 205.0, p.HighestPrice)
	assert.Equal(t, 190.0, p.LowestPrice)
}

func TestSide(t *testing.T) {
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
	assert.True(t, Long.IsValid())
	assert.False(t, Side("flat").IsValid())
}

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
	"riskCore/internal/risk"
)

type recordingMetrics struct {
	ports.NopMetrics
	mu     sync.Mutex
	exits  []string
	trails int
}

func (r *recordingMetrics) ExitSignalled(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, trigger)
}

func (r *recordingMetrics) TrailingStopMoved(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trails++
}

// newTestMonitor trails with ATR multiplier 1.5 and activation 1.0.
func newTestMonitor(t *testing.T) (*Monitor, *recordingMetrics) {
	t.Helper()
	rm, err := risk.NewManager(risk.DefaultConfig(), ports.NopLogger{})
	require.NoError(t, err)
	metrics := &recordingMetrics{}
	m, err := New(rm, ports.NopLogger{}, metrics)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return m, metrics
}

func longPosition() domain.MonitoredPosition {
	return domain.MonitoredPosition{
		Symbol:     "BTCUSDT",
		Side:       domain.Long,
		EntryPrice: 100,
		Quantity:   2,
		StopLoss:   95,
		TakeProfit: 110,
		ATR:        2,
	}
}

func shortPosition() domain.MonitoredPosition {
	return domain.MonitoredPosition{
		Symbol:     "BTCUSDT",
		Side:       domain.Short,
		EntryPrice: 100,
		Quantity:   1,
		StopLoss:   105,
		TakeProfit: 90,
		ATR:        2,
	}
}

func TestOnPriceUpdate_StopsAndTargets(t *testing.T) {
	tests := []struct {
		name    string
		pos     domain.MonitoredPosition
		price   float64
		exit    bool
		trigger domain.ExitTrigger
	}{
		{"long stop-loss", longPosition(), 94, true, domain.TriggerStopLoss},
		{"long stop-loss touch", longPosition(), 95, true, domain.TriggerStopLoss},
		{"long take-profit", longPosition(), 111, true, domain.TriggerTakeProfit},
		{"long inside band", longPosition(), 100, false, ""},
		{"short stop-loss", shortPosition(), 106, true, domain.TriggerStopLoss},
		{"short take-profit", shortPosition(), 89, true, domain.TriggerTakeProfit},
		{"short inside band", shortPosition(), 99, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMonitor(t)
			ctx := context.Background()
			require.NoError(t, m.SetPosition(ctx, tt.pos))

			res, err := m.OnPriceUpdate(ctx, tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.exit, res.ShouldExit)
			assert.Equal(t, tt.trigger, res.Trigger)
			if tt.exit {
				assert.Equal(t, tt.price, res.TriggerPrice)
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestOnPriceUpdate_NoPosition(t *testing.T) {
	m, _ := newTestMonitor(t)
	_, err := m.OnPriceUpdate(context.Background(), 100)
	assert.ErrorIs(t, err, ports.ErrNoActivePosition)

	_, err = m.OnPriceUpdate(context.Background(), 0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestOnPriceUpdate_TracksExtremesAndPNL(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	pos := longPosition()
	pos.TrailingEnabled = false
	require.NoError(t, m.SetPosition(ctx, pos))

	for _, p := range []float64{101, 104, 97, 102} {
		_, err := m.OnPriceUpdate(ctx, p)
		require.NoError(t, err)
	}

	got, ok := m.Position()
	require.True(t, ok)
	assert.Equal(t, 104.0, got.HighestPrice)
	assert.Equal(t, 97.0, got.LowestPrice)
	assert.Equal(t, 102.0, got.CurrentPrice)
	assert.InDelta(t, 4.0, got.UnrealizedPNL, 1e-9)
	assert.InDelta(t, 2.0, got.UnrealizedPNLPct, 1e-9)
}

func TestTrailingStop_RatchetsAndTagsExit(t *testing.T) {
	m, metrics := newTestMonitor(t)
	ctx := context.Background()
	pos := longPosition()
	pos.TrailingEnabled = true
	require.NoError(t, m.SetPosition(ctx, pos))

	var updates []domain.StopUpdate
	m.AddStopListener(func(_ context.Context, u domain.StopUpdate) {
		updates = append(updates, u)
	})

	// Activation is 2 (ATR 2 x 1.0), trail distance is 3 (ATR 2 x 1.5).
	steps := []struct {
		price float64
		stop  float64
	}{
		{101.5, 95},
		{103, 100},
		{105, 102},
		{104, 102},
	}
	for _, s := range steps {
		res, err := m.OnPriceUpdate(ctx, s.price)
		require.NoError(t, err)
		assert.False(t, res.ShouldExit)
		got, _ := m.Position()
		assert.Equal(t, s.stop, got.StopLoss, "price %v", s.price)
	}

	require.Len(t, updates, 2)
	assert.Equal(t, 95.0, updates[0].OldStop)
	assert.Equal(t, 100.0, updates[0].NewStop)
	assert.Equal(t, 102.0, updates[1].NewStop)
	assert.Equal(t, 2, metrics.trails)

	got, _ := m.Position()
	assert.True(t, got.TrailingActivated)
	assert.Equal(t, 95.0, got.OriginalStopLoss)

	res, err := m.OnPriceUpdate(ctx, 101.9)
	require.NoError(t, err)
	assert.True(t, res.ShouldExit)
	assert.Equal(t, domain.TriggerTrailingStop, res.Trigger)
	assert.Equal(t, []string{"trailing-stop"}, metrics.exits)
}

func TestTrailingStop_ShortRatchetsDown(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	pos := shortPosition()
	pos.TrailingEnabled = true
	require.NoError(t, m.SetPosition(ctx, pos))

	_, err := m.OnPriceUpdate(ctx, 97)
	require.NoError(t, err)
	got, _ := m.Position()
	assert.Equal(t, 100.0, got.StopLoss)

	_, err = m.OnPriceUpdate(ctx, 98)
	require.NoError(t, err)
	got, _ = m.Position()
	assert.Equal(t, 100.0, got.StopLoss, "short stop must never move up")
}

func TestPendingExit_IsStickyAndFreezesStop(t *testing.T) {
	m, metrics := newTestMonitor(t)
	ctx := context.Background()
	pos := longPosition()
	pos.TrailingEnabled = true
	require.NoError(t, m.SetPosition(ctx, pos))

	first, err := m.OnPriceUpdate(ctx, 94)
	require.NoError(t, err)
	require.True(t, first.ShouldExit)

	again, err := m.OnPriceUpdate(ctx, 120)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	got, _ := m.Position()
	assert.Equal(t, 95.0, got.StopLoss)
	assert.Equal(t, 120.0, got.CurrentPrice)
	assert.Len(t, metrics.exits, 1)

	pending, ok := m.PendingExit()
	require.True(t, ok)
	assert.Equal(t, domain.TriggerStopLoss, pending.Trigger)
}

func TestSetPosition_RejectsSecond(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	require.NoError(t, m.SetPosition(ctx, longPosition()))

	other := shortPosition()
	other.EntryPrice = 200
	err := m.SetPosition(ctx, other)
	assert.ErrorIs(t, err, ports.ErrPositionActive)

	got, _ := m.Position()
	assert.Equal(t, 100.0, got.EntryPrice)
	assert.Equal(t, domain.Long, got.Side)
}

func TestSetPosition_Validation(t *testing.T) {
	m, _ := newTestMonitor(t)
	pos := longPosition()
	pos.Quantity = 0
	assert.ErrorIs(t, m.SetPosition(context.Background(), pos), ports.ErrInvalidRequest)

	pos = longPosition()
	pos.Side = "sideways"
	assert.ErrorIs(t, m.SetPosition(context.Background(), pos), ports.ErrInvalidRequest)
	assert.False(t, m.HasPosition())
}

func TestExplicitExits(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(m *Monitor) (domain.ExitResult, error)
		want    domain.ExitTrigger
	}{
		{"manual", func(m *Monitor) (domain.ExitResult, error) {
			return m.TriggerManualExit(context.Background(), "operator request")
		}, domain.TriggerManual},
		{"session end", func(m *Monitor) (domain.ExitResult, error) {
			return m.TriggerSessionEndExit(context.Background())
		}, domain.TriggerSessionEnd},
		{"signal", func(m *Monitor) (domain.ExitResult, error) {
			return m.TriggerSignalExit(context.Background(), "MA cross down")
		}, domain.TriggerSignalExit},
		{"daily loss", func(m *Monitor) (domain.ExitResult, error) {
			return m.TriggerExit(context.Background(), domain.TriggerDailyLossLimit, "")
		}, domain.TriggerDailyLossLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMonitor(t)
			require.NoError(t, m.SetPosition(context.Background(), longPosition()))

			res, err := tt.trigger(m)
			require.NoError(t, err)
			assert.True(t, res.ShouldExit)
			assert.Equal(t, tt.want, res.Trigger)
			assert.Equal(t, 100.0, res.TriggerPrice)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestExplicitExit_KeepsEarlierPending(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	require.NoError(t, m.SetPosition(ctx, longPosition()))

	_, err := m.OnPriceUpdate(ctx, 111)
	require.NoError(t, err)

	res, err := m.TriggerManualExit(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerTakeProfit, res.Trigger)
}

func TestExplicitExit_NoPosition(t *testing.T) {
	m, _ := newTestMonitor(t)
	_, err := m.TriggerManualExit(context.Background(), "x")
	assert.ErrorIs(t, err, ports.ErrNoActivePosition)
}

func TestConfirmExit(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	_, err := m.ConfirmExit(ctx, 100, time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrNoActivePosition))

	require.NoError(t, m.SetPosition(ctx, longPosition()))
	_, err = m.OnPriceUpdate(ctx, 94)
	require.NoError(t, err)

	exitAt := time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)
	trade, err := m.ConfirmExit(ctx, 94.5, exitAt)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerStopLoss, trade.Trigger)
	assert.Equal(t, 94.5, trade.ExitPrice)
	assert.InDelta(t, -11.0, trade.PNL, 1e-9)
	assert.Equal(t, exitAt, trade.ExitTime)

	assert.False(t, m.HasPosition())
	_, pending := m.PendingExit()
	assert.False(t, pending)

	// Back to Empty: a new position is accepted.
	require.NoError(t, m.SetPosition(ctx, shortPosition()))
}

func TestConfirmExit_DefaultsToLastPrice(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()
	require.NoError(t, m.SetPosition(ctx, shortPosition()))
	_, err := m.OnPriceUpdate(ctx, 97)
	require.NoError(t, err)

	trade, err := m.ConfirmExit(ctx, 0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 97.0, trade.ExitPrice)
	assert.InDelta(t, 3.0, trade.PNL, 1e-9)
	assert.Equal(t, domain.TriggerUnknown, trade.Trigger)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	_, err := m.Snapshot()
	assert.ErrorIs(t, err, ports.ErrNoActivePosition)

	pos := longPosition()
	pos.TrailingEnabled = true
	require.NoError(t, m.SetPosition(ctx, pos))
	for _, p := range []float64{103, 106, 104.5} {
		_, err := m.OnPriceUpdate(ctx, p)
		require.NoError(t, err)
	}
	before, _ := m.Position()

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snapshotVersion, snap.Version)

	restored, _ := newTestMonitor(t)
	require.NoError(t, restored.Restore(ctx, snap))
	after, ok := restored.Position()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 106.0, after.HighestPrice)
	assert.Equal(t, 103.0, after.StopLoss)
	assert.True(t, after.TrailingActivated)

	// Future decisions continue from the restored stop.
	res, err := restored.OnPriceUpdate(ctx, 102.5)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerTrailingStop, res.Trigger)
}

func TestRestore_Rejections(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.Restore(ctx, nil), ports.ErrInvalidRequest)
	assert.ErrorIs(t, m.Restore(ctx, &domain.PositionSnapshot{Version: 99, Position: longPosition()}), ports.ErrInvalidRequest)

	require.NoError(t, m.SetPosition(ctx, longPosition()))
	err := m.Restore(ctx, &domain.PositionSnapshot{Version: snapshotVersion, Position: shortPosition()})
	assert.ErrorIs(t, err, ports.ErrPositionActive)
}

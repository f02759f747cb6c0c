package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

// newTestStore needs a live server; set REDIS_ADDR to run.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	prefix := "riskcore:test:" + t.Name() + ":"
	s, err := New(context.Background(), Options{Addr: addr, KeyPrefix: prefix}, ports.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.DeleteSnapshot(context.Background(), "BTCUSDT")
		s.Close()
	})
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Options{}, ports.NopLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(context.Background(), Options{Addr: "localhost:6379"}, nil)
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LoadSnapshot(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := &domain.PositionSnapshot{
		Version: 1,
		SavedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Position: domain.MonitoredPosition{
			Symbol:            "BTCUSDT",
			Side:              domain.Short,
			EntryPrice:        100,
			Quantity:          1,
			StopLoss:          99,
			OriginalStopLoss:  105,
			TrailingEnabled:   true,
			TrailingActivated: true,
			LowestPrice:       96,
			HighestPrice:      101,
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, err = s.LoadSnapshot(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.Position, got.Position)

	require.NoError(t, s.DeleteSnapshot(ctx, "BTCUSDT"))
	got, err = s.LoadSnapshot(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, got)
}

package ports

import (
	"context"
	"time"

	"riskCore/internal/domain"
)

// LevelRepository persists detected zones.
type LevelRepository interface {
	// SaveLevels upserts levels by ID.
	SaveLevels(ctx context.Context, symbol string, levels []domain.Level) error
	// FindLevels returns stored levels for a symbol and timeframe ordered by price.
	FindLevels(ctx context.Context, symbol, timeframe string) ([]domain.Level, error)
}

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// DailyStats sums realized P&L and counts trades closed on the given UTC day.
	DailyStats(ctx context.Context, symbol string, day time.Time) (pnl float64, count int, err error)
}

// SnapshotStore keeps the restartable position snapshot, one per symbol.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *domain.PositionSnapshot) error
	// LoadSnapshot returns nil, nil when no snapshot exists.
	LoadSnapshot(ctx context.Context, symbol string) (*domain.PositionSnapshot, error)
	DeleteSnapshot(ctx context.Context, symbol string) error
}

package ports

import (
	"context"

	"riskCore/internal/domain"
)

// PriceSource supplies the latest tradable price for a symbol.
type PriceSource interface {
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// MarketData is the market-data collaborator consumed by the control loop.
type MarketData interface {
	PriceSource

	// GetKlines retrieves the most recent closed klines for the given symbol.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// GetAccountBalance retrieves the balance for a specific asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)
}

// Fill is an executed order as reported by the execution collaborator.
type Fill struct {
	Price    float64
	Quantity float64
	OrderID  string
}

// OrderExecutor owns exchange connectivity and fill confirmation.
type OrderExecutor interface {
	// Enter opens a position for an approved, sized signal.
	Enter(ctx context.Context, signal *domain.Signal, quantity float64) (*Fill, error)
	// Exit closes the given position at market.
	Exit(ctx context.Context, position *domain.MonitoredPosition, exit domain.ExitResult) (*Fill, error)
}

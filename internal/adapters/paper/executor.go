// Package paper provides an OrderExecutor that simulates fills without
// touching an exchange.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

// Executor fills every order at the live mark price when a price source is
// configured, otherwise at the price the caller asked for.
type Executor struct {
	mu       sync.Mutex
	prices   ports.PriceSource
	slippage float64 // fraction applied against the trader, e.g. 0.0005
	logger   ports.Logger
	fills    []ports.Fill
}

// NewExecutor creates a paper executor. prices may be nil.
func NewExecutor(prices ports.PriceSource, slippage float64, logger ports.Logger) *Executor {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if slippage < 0 {
		slippage = 0
	}
	return &Executor{prices: prices, slippage: slippage, logger: logger}
}

// Enter simulates a market entry for the signal.
func (e *Executor) Enter(ctx context.Context, signal *domain.Signal, quantity float64) (*ports.Fill, error) {
	op := "PaperExecutor.Enter"
	if signal == nil || quantity <= 0 {
		return nil, fmt.Errorf("%s: signal and positive quantity required: %w", op, ports.ErrInvalidRequest)
	}

	price, err := e.marketPrice(ctx, signal.Symbol, signal.EntryPrice)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	price = e.slip(price, signal.Side)

	fill := e.record(price, quantity)
	e.logger.Info(ctx, "Paper entry filled", map[string]interface{}{
		"symbol":   signal.Symbol,
		"side":     signal.Side,
		"price":    price,
		"quantity": quantity,
		"order_id": fill.OrderID,
	})
	return fill, nil
}

// Exit simulates closing the position at market.
func (e *Executor) Exit(ctx context.Context, position *domain.MonitoredPosition, exit domain.ExitResult) (*ports.Fill, error) {
	op := "PaperExecutor.Exit"
	if position == nil {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrNoActivePosition)
	}

	fallback := exit.TriggerPrice
	if fallback <= 0 {
		fallback = position.CurrentPrice
	}
	price, err := e.marketPrice(ctx, position.Symbol, fallback)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	price = e.slip(price, position.Side.Opposite())

	fill := e.record(price, position.Quantity)
	e.logger.Info(ctx, "Paper exit filled", map[string]interface{}{
		"symbol":   position.Symbol,
		"trigger":  exit.Trigger,
		"price":    price,
		"quantity": position.Quantity,
		"order_id": fill.OrderID,
	})
	return fill, nil
}

// Fills returns a copy of every simulated fill in order.
func (e *Executor) Fills() []ports.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ports.Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

func (e *Executor) marketPrice(ctx context.Context, symbol string, fallback float64) (float64, error) {
	if e.prices != nil {
		price, err := e.prices.GetMarkPrice(ctx, symbol)
		if err == nil && price > 0 {
			return price, nil
		}
		if err != nil {
			e.logger.Warn(ctx, "Mark price unavailable, filling at requested price", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
		}
	}
	if fallback <= 0 {
		return 0, fmt.Errorf("no usable price for %s: %w", symbol, ports.ErrInvalidRequest)
	}
	return fallback, nil
}

// slip moves the price against an order on the given side.
func (e *Executor) slip(price float64, side domain.Side) float64 {
	if side == domain.Long {
		return price * (1 + e.slippage)
	}
	return price * (1 - e.slippage)
}

func (e *Executor) record(price, quantity float64) *ports.Fill {
	fill := ports.Fill{Price: price, Quantity: quantity, OrderID: "paper-" + uuid.NewString()}
	e.mu.Lock()
	e.fills = append(e.fills, fill)
	e.mu.Unlock()
	return &fill
}

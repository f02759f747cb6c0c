// Package monitor supervises the single open position: it applies price
// ticks, signals exits and ratchets the trailing stop. It never places orders.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

const snapshotVersion = 1

// TrailingAdjuster computes the ratcheted stop for a position.
type TrailingAdjuster interface {
	AdjustSLForTrailing(currentPrice, currentSL, entryPrice float64, side domain.Side, atr float64) (float64, bool)
}

// StopListener is notified after the trailing stop moves.
type StopListener func(ctx context.Context, update domain.StopUpdate)

// Monitor is a two-state machine: Empty, or Active with one position.
type Monitor struct {
	mu        sync.Mutex
	position  *domain.MonitoredPosition
	pending   *domain.ExitResult
	listeners []StopListener

	trailing TrailingAdjuster
	logger   ports.Logger
	metrics  ports.Metrics
	now      func() time.Time
}

// New creates an empty monitor.
func New(trailing TrailingAdjuster, logger ports.Logger, metrics ports.Metrics) (*Monitor, error) {
	if trailing == nil || logger == nil {
		return nil, fmt.Errorf("trailing adjuster and logger are required for position monitor")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Monitor{trailing: trailing, logger: logger, metrics: metrics, now: time.Now}, nil
}

// AddStopListener registers fn for trailing-stop updates.
func (m *Monitor) AddStopListener(fn StopListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func validatePosition(p *domain.MonitoredPosition) error {
	switch {
	case p.Symbol == "":
		return fmt.Errorf("position symbol is empty: %w", ports.ErrInvalidRequest)
	case !p.Side.IsValid():
		return fmt.Errorf("position side %q is invalid: %w", p.Side, ports.ErrInvalidRequest)
	case p.EntryPrice <= 0 || p.Quantity <= 0:
		return fmt.Errorf("entry price and quantity must be positive: %w", ports.ErrInvalidRequest)
	}
	return nil
}

// SetPosition moves the monitor from Empty to Active. A second call while a
// position is active is rejected and leaves the existing position untouched.
func (m *Monitor) SetPosition(ctx context.Context, pos domain.MonitoredPosition) error {
	if err := validatePosition(&pos); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position != nil {
		err := fmt.Errorf("set position %s: %w", pos.Symbol, ports.ErrPositionActive)
		m.logger.Error(ctx, err, "Rejected position while another is active", map[string]interface{}{
			"activeSymbol": m.position.Symbol,
			"activeEntry":  m.position.EntryPrice,
			"newSymbol":    pos.Symbol,
			"newEntry":     pos.EntryPrice,
		})
		return err
	}

	p := pos
	if p.OriginalStopLoss == 0 {
		p.OriginalStopLoss = p.StopLoss
	}
	if p.EntryTime.IsZero() {
		p.EntryTime = m.now()
	}
	if p.CurrentPrice == 0 {
		p.ApplyPrice(p.EntryPrice)
	}
	m.position = &p
	m.pending = nil

	m.logger.Info(ctx, "Position monitoring started", map[string]interface{}{
		"symbol":     p.Symbol,
		"side":       p.Side,
		"entryPrice": p.EntryPrice,
		"quantity":   p.Quantity,
		"stopLoss":   p.StopLoss,
		"takeProfit": p.TakeProfit,
		"trailing":   p.TrailingEnabled,
	})
	return nil
}

// OnPriceUpdate applies a tick and evaluates, in order, stop-loss, take-profit
// and the trailing ratchet. Once an exit is pending, later ticks still refresh
// price and P&L but return the same exit and never move the stop.
func (m *Monitor) OnPriceUpdate(ctx context.Context, price float64) (domain.ExitResult, error) {
	if price <= 0 {
		return domain.ExitResult{}, fmt.Errorf("price %v: %w", price, ports.ErrInvalidRequest)
	}

	exit, update, listeners, err := m.applyPrice(ctx, price)
	if err != nil || update == nil {
		return exit, err
	}

	for _, fn := range listeners {
		fn(ctx, *update)
	}
	return exit, nil
}

func (m *Monitor) applyPrice(ctx context.Context, price float64) (domain.ExitResult, *domain.StopUpdate, []StopListener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.position
	if p == nil {
		return domain.ExitResult{}, nil, nil, ports.ErrNoActivePosition
	}
	p.ApplyPrice(price)

	if m.pending != nil {
		return *m.pending, nil, nil, nil
	}

	if exit := evaluateStops(p, price); exit.ShouldExit {
		m.signalLocked(ctx, exit)
		return exit, nil, nil, nil
	}

	if !p.TrailingEnabled {
		return domain.ExitResult{}, nil, nil, nil
	}
	newSL, moved := m.trailing.AdjustSLForTrailing(price, p.StopLoss, p.EntryPrice, p.Side, p.ATR)
	if !moved {
		return domain.ExitResult{}, nil, nil, nil
	}

	update := &domain.StopUpdate{
		Symbol:  p.Symbol,
		OldStop: p.StopLoss,
		NewStop: newSL,
		Price:   price,
		Time:    m.now(),
	}
	p.StopLoss = newSL
	p.TrailingActivated = true
	m.metrics.TrailingStopMoved(p.Symbol)
	m.logger.Info(ctx, "Trailing stop moved", map[string]interface{}{
		"symbol":  p.Symbol,
		"oldStop": update.OldStop,
		"newStop": newSL,
		"price":   price,
	})

	listeners := make([]StopListener, len(m.listeners))
	copy(listeners, m.listeners)
	return domain.ExitResult{}, update, listeners, nil
}

func evaluateStops(p *domain.MonitoredPosition, price float64) domain.ExitResult {
	stopHit, targetHit := false, false
	if p.IsLong() {
		stopHit = p.StopLoss > 0 && price <= p.StopLoss
		targetHit = p.TakeProfit > 0 && price >= p.TakeProfit
	} else {
		stopHit = p.StopLoss > 0 && price >= p.StopLoss
		targetHit = p.TakeProfit > 0 && price <= p.TakeProfit
	}

	switch {
	case stopHit:
		trigger := domain.TriggerStopLoss
		if p.TrailingActivated {
			trigger = domain.TriggerTrailingStop
		}
		return domain.ExitResult{
			ShouldExit:   true,
			Trigger:      trigger,
			TriggerPrice: price,
			Reason:       fmt.Sprintf("price %.4f crossed %s %.4f (original stop %.4f)", price, trigger, p.StopLoss, p.OriginalStopLoss),
		}
	case targetHit:
		return domain.ExitResult{
			ShouldExit:   true,
			Trigger:      domain.TriggerTakeProfit,
			TriggerPrice: price,
			Reason:       fmt.Sprintf("price %.4f reached take-profit %.4f", price, p.TakeProfit),
		}
	}
	return domain.ExitResult{}
}

func (m *Monitor) signalLocked(ctx context.Context, exit domain.ExitResult) {
	m.pending = &exit
	m.metrics.ExitSignalled(string(exit.Trigger))
	m.logger.Info(ctx, "Exit signalled", map[string]interface{}{
		"symbol":  m.position.Symbol,
		"trigger": exit.Trigger,
		"price":   exit.TriggerPrice,
		"reason":  exit.Reason,
		"pnl":     m.position.UnrealizedPNL,
	})
}

// TriggerExit signals an exit without checking price thresholds. If an exit is
// already pending it is returned unchanged.
func (m *Monitor) TriggerExit(ctx context.Context, trigger domain.ExitTrigger, reason string) (domain.ExitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position == nil {
		return domain.ExitResult{}, fmt.Errorf("trigger %s exit: %w", trigger, ports.ErrNoActivePosition)
	}
	if m.pending != nil {
		return *m.pending, nil
	}
	if reason == "" {
		reason = string(trigger)
	}
	exit := domain.ExitResult{
		ShouldExit:   true,
		Trigger:      trigger,
		TriggerPrice: m.position.CurrentPrice,
		Reason:       reason,
	}
	m.signalLocked(ctx, exit)
	return exit, nil
}

// TriggerManualExit signals an operator-requested exit.
func (m *Monitor) TriggerManualExit(ctx context.Context, reason string) (domain.ExitResult, error) {
	return m.TriggerExit(ctx, domain.TriggerManual, reason)
}

// TriggerSessionEndExit signals an exit at the end of the trading session.
func (m *Monitor) TriggerSessionEndExit(ctx context.Context) (domain.ExitResult, error) {
	return m.TriggerExit(ctx, domain.TriggerSessionEnd, "trading session ended")
}

// TriggerSignalExit signals an exit because the strategy reversed.
func (m *Monitor) TriggerSignalExit(ctx context.Context, reason string) (domain.ExitResult, error) {
	return m.TriggerExit(ctx, domain.TriggerSignalExit, reason)
}

// ConfirmExit records that the exit order filled and returns the monitor to
// Empty. fillPrice <= 0 uses the last applied price.
func (m *Monitor) ConfirmExit(ctx context.Context, fillPrice float64, at time.Time) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.position
	if p == nil {
		err := fmt.Errorf("confirm exit: %w", ports.ErrNoActivePosition)
		m.logger.Error(ctx, err, "Exit confirmation without an active position")
		return nil, err
	}
	if fillPrice <= 0 {
		fillPrice = p.CurrentPrice
	}
	if at.IsZero() {
		at = m.now()
	}

	trade := &domain.Trade{
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  fillPrice,
		Quantity:   p.Quantity,
		PNL:        p.PNLAt(fillPrice),
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		Trigger:    domain.TriggerUnknown,
	}
	if m.pending != nil {
		trade.Trigger = m.pending.Trigger
		trade.Reason = m.pending.Reason
	}

	m.position = nil
	m.pending = nil

	m.logger.Info(ctx, "Position exit confirmed", map[string]interface{}{
		"symbol":    trade.Symbol,
		"exitPrice": fillPrice,
		"pnl":       trade.PNL,
		"trigger":   trade.Trigger,
	})
	return trade, nil
}

// HasPosition reports whether the monitor is Active.
func (m *Monitor) HasPosition() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position != nil
}

// Position returns a copy of the active position.
func (m *Monitor) Position() (domain.MonitoredPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == nil {
		return domain.MonitoredPosition{}, false
	}
	return *m.position, true
}

// PendingExit returns the signalled but unconfirmed exit, if any.
func (m *Monitor) PendingExit() (domain.ExitResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return domain.ExitResult{}, false
	}
	return *m.pending, true
}

// Snapshot serializes the active position for restart recovery.
func (m *Monitor) Snapshot() (*domain.PositionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == nil {
		return nil, fmt.Errorf("snapshot: %w", ports.ErrNoActivePosition)
	}
	return &domain.PositionSnapshot{
		Version:  snapshotVersion,
		SavedAt:  m.now(),
		Position: *m.position,
	}, nil
}

// Restore loads a snapshot verbatim. Stored extremes and trailing flags are
// kept as-is since they drive future trailing decisions.
func (m *Monitor) Restore(ctx context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil {
		return fmt.Errorf("restore: nil snapshot: %w", ports.ErrInvalidRequest)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("restore: unsupported snapshot version %d: %w", snap.Version, ports.ErrInvalidRequest)
	}
	p := snap.Position
	if err := validatePosition(&p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position != nil {
		return fmt.Errorf("restore %s: %w", p.Symbol, ports.ErrPositionActive)
	}
	m.position = &p
	m.pending = nil

	m.logger.Info(ctx, "Position restored from snapshot", map[string]interface{}{
		"symbol":            p.Symbol,
		"savedAt":           snap.SavedAt,
		"stopLoss":          p.StopLoss,
		"trailingActivated": p.TrailingActivated,
	})
	return nil
}

package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

const dayLayout = "2006-01-02"

// Config holds configuration for risk management
type Config struct {
	RiskPerTradePct    float64 // Percent of balance risked per trade
	MaxDailyLossPct    float64 // >= 100 disables the daily gate
	MaxPositionSize    float64 // 0 means uncapped
	MinPositionSize    float64 // Returned for degenerate stops and used as the floor
	LotPrecision       int32   // Decimal places of the exchange lot size
	Leverage           int
	TrailATRMultiplier float64 // Trailing distance in ATR multiples
	TrailActivationATR float64 // Favourable move, in ATR multiples, before trailing engages
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		RiskPerTradePct:    1.0,
		MaxDailyLossPct:    3.0,
		MaxPositionSize:    10,
		MinPositionSize:    0.001,
		LotPrecision:       3,
		Leverage:           1,
		TrailATRMultiplier: 1.5,
		TrailActivationATR: 1.0,
	}
}

// Manager sizes positions, gates entries on daily loss and computes trailing stops.
// Daily counters roll over lazily on the first query or record of a new UTC day.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	state  domain.RiskState
	now    func() time.Time
	logger ports.Logger
}

// NewManager creates a risk manager instance
func NewManager(cfg Config, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	var errs []string
	if cfg.RiskPerTradePct <= 0 || cfg.RiskPerTradePct > 100 {
		errs = append(errs, "risk per trade must be in (0, 100]")
	}
	if cfg.MaxDailyLossPct <= 0 {
		errs = append(errs, "max daily loss must be positive")
	}
	if cfg.MinPositionSize <= 0 {
		errs = append(errs, "min position size must be positive")
	}
	if cfg.MaxPositionSize > 0 && cfg.MaxPositionSize < cfg.MinPositionSize {
		errs = append(errs, "max position size below min position size")
	}
	if cfg.LotPrecision < 0 {
		errs = append(errs, "lot precision cannot be negative")
	} else if minSize := decimal.NewFromFloat(cfg.MinPositionSize); cfg.MinPositionSize > 0 && minSize.Round(cfg.LotPrecision).LessThan(minSize) {
		errs = append(errs, "min position size finer than lot precision")
	}
	if cfg.TrailATRMultiplier <= 0 || cfg.TrailActivationATR < 0 {
		errs = append(errs, "trailing multipliers must be positive")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid risk config: %s: %w", strings.Join(errs, "; "), ports.ErrConfigurationError)
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}

	m := &Manager{cfg: cfg, now: time.Now, logger: logger}
	m.state = domain.RiskState{
		RiskPerTradePct: cfg.RiskPerTradePct,
		MaxDailyLossPct: cfg.MaxDailyLossPct,
		MaxPositionSize: cfg.MaxPositionSize,
		Leverage:        cfg.Leverage,
	}
	return m, nil
}

// SetClock replaces the time source. Intended for tests and replay.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// CalculatePositionSize returns balance*riskPct/100 divided by the stop distance,
// clamped to [min, max] and rounded to the lot precision. A zero or negative
// stop distance yields the minimum size. riskPct <= 0 uses the configured value.
func (m *Manager) CalculatePositionSize(balance, entryPrice, stopPrice, riskPct float64) float64 {
	if riskPct <= 0 {
		riskPct = m.cfg.RiskPerTradePct
	}
	slDistance := math.Abs(entryPrice - stopPrice)
	if slDistance <= 0 || math.IsNaN(slDistance) {
		return m.round(m.cfg.MinPositionSize)
	}

	qty := balance * riskPct / 100 / slDistance
	if qty < m.cfg.MinPositionSize {
		qty = m.cfg.MinPositionSize
	}
	if m.cfg.MaxPositionSize > 0 && qty > m.cfg.MaxPositionSize {
		qty = m.cfg.MaxPositionSize
	}
	return m.round(qty)
}

func (m *Manager) round(qty float64) float64 {
	return decimal.NewFromFloat(qty).Round(m.cfg.LotPrecision).InexactFloat64()
}

// rolloverLocked resets the daily counters when the UTC date has advanced.
func (m *Manager) rolloverLocked(ctx context.Context) {
	today := m.now().UTC().Format(dayLayout)
	if m.state.LastResetDate == today {
		return
	}
	if m.state.LastResetDate != "" {
		m.logger.Info(ctx, "Daily risk counters reset", map[string]interface{}{
			"previousDate": m.state.LastResetDate,
			"date":         today,
			"previousPNL":  m.state.DailyRealizedPNL,
			"trades":       m.state.DailyTradeCount,
		})
	}
	m.state.DailyRealizedPNL = 0
	m.state.DailyTradeCount = 0
	m.state.LastResetDate = today
}

// CheckDailyLossLimit reports whether new entries are allowed and, if not, why.
func (m *Manager) CheckDailyLossLimit(ctx context.Context, balance float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(ctx)

	if m.cfg.MaxDailyLossPct >= 100 {
		return true, "daily loss limit disabled"
	}
	limit := balance * m.cfg.MaxDailyLossPct / 100
	pnl := m.state.DailyRealizedPNL
	if pnl < 0 && math.Abs(pnl) >= limit {
		return false, fmt.Sprintf("daily realized loss %.2f reached limit %.2f (%.2f%% of %.2f)",
			pnl, limit, m.cfg.MaxDailyLossPct, balance)
	}
	return true, ""
}

// WouldBreach reports whether realized plus unrealized P&L crosses the daily ceiling.
func (m *Manager) WouldBreach(ctx context.Context, balance, unrealized float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(ctx)

	if m.cfg.MaxDailyLossPct >= 100 {
		return false
	}
	total := m.state.DailyRealizedPNL + unrealized
	return total < 0 && math.Abs(total) >= balance*m.cfg.MaxDailyLossPct/100
}

// RecordTradeResult accumulates a realized P&L into today's counters.
func (m *Manager) RecordTradeResult(ctx context.Context, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(ctx)

	m.state.DailyRealizedPNL += pnl
	m.state.DailyTradeCount++
	m.logger.Debug(ctx, "Trade result recorded", map[string]interface{}{
		"pnl":      pnl,
		"dailyPNL": m.state.DailyRealizedPNL,
		"trades":   m.state.DailyTradeCount,
	})
}

// RestoreDaily seeds counters from persisted history. Ignored unless day is today (UTC).
func (m *Manager) RestoreDaily(ctx context.Context, day time.Time, pnl float64, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(ctx)

	if day.UTC().Format(dayLayout) != m.state.LastResetDate {
		return
	}
	m.state.DailyRealizedPNL = pnl
	m.state.DailyTradeCount = count
}

// AdjustSLForTrailing returns the ratcheted stop and whether it moved. The stop
// only moves in the position's favour and only after price has travelled more
// than TrailActivationATR*atr from entry.
func (m *Manager) AdjustSLForTrailing(currentPrice, currentSL, entryPrice float64, side domain.Side, atr float64) (float64, bool) {
	if atr <= 0 || currentPrice <= 0 {
		return currentSL, false
	}
	activation := atr * m.cfg.TrailActivationATR
	distance := atr * m.cfg.TrailATRMultiplier

	switch side {
	case domain.Long:
		if currentPrice-entryPrice <= activation {
			return currentSL, false
		}
		if candidate := currentPrice - distance; candidate > currentSL {
			return candidate, true
		}
	case domain.Short:
		if entryPrice-currentPrice <= activation {
			return currentSL, false
		}
		if candidate := currentPrice + distance; currentSL <= 0 || candidate < currentSL {
			return candidate, true
		}
	}
	return currentSL, false
}

// Leverage returns the configured leverage.
func (m *Manager) Leverage() int {
	return m.cfg.Leverage
}

// State returns a copy of the current risk state after applying any rollover.
func (m *Manager) State(ctx context.Context) domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(ctx)
	return m.state
}

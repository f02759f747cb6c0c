package strategy

import (
	"context"
	"fmt"

	"riskCore/internal/domain"
	"riskCore/internal/levels"
	"riskCore/internal/ports"
	"riskCore/internal/strategy/indicators"
)

// Config holds parameters for the trend-following signal source.
type Config struct {
	ShortTermMAPeriod int     // e.g., 20
	LongTermMAPeriod  int     // e.g., 50
	EMAPeriod         int     // e.g., 20
	RSIPeriod         int     // e.g., 14
	RSIOverbought     float64 // e.g., 70.0
	RSIOversold       float64 // e.g., 30.0
	RewardRiskRatio   float64 // Minimum target distance in multiples of risk
	StopATRMultiplier float64 // Stop distance when no zone sits on the risk side
}

// DefaultConfig returns the stock periods and thresholds.
func DefaultConfig() Config {
	return Config{
		ShortTermMAPeriod: 20,
		LongTermMAPeriod:  50,
		EMAPeriod:         20,
		RSIPeriod:         14,
		RSIOverbought:     70,
		RSIOversold:       30,
		RewardRiskRatio:   2,
		StopATRMultiplier: 1.5,
	}
}

// Strategy proposes candidate signals anchored to detected levels.
type Strategy struct {
	cfg    Config
	logger ports.Logger

	shortMA *indicators.MovingAverage
	longMA  *indicators.MovingAverage
	ema     *indicators.MovingAverage
	rsi     *indicators.RSI
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.ShortTermMAPeriod <= 0 || cfg.LongTermMAPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if cfg.ShortTermMAPeriod >= cfg.LongTermMAPeriod {
		return nil, fmt.Errorf("short term MA period must be less than long term MA period")
	}
	if cfg.RSIOversold >= cfg.RSIOverbought {
		return nil, fmt.Errorf("RSI oversold must be below overbought")
	}
	if cfg.RewardRiskRatio <= 0 || cfg.StopATRMultiplier <= 0 {
		return nil, fmt.Errorf("reward:risk ratio and stop ATR multiplier must be positive")
	}

	s := &Strategy{cfg: cfg, logger: logger}
	s.shortMA = indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ShortTermMAPeriod},
		Type:            indicators.SimpleMovingAverage,
	})
	s.longMA = indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongTermMAPeriod},
		Type:            indicators.SimpleMovingAverage,
	})
	s.ema = indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.EMAPeriod},
		Type:            indicators.ExponentialMovingAverage,
	})
	s.rsi = indicators.NewRSI(indicators.RSIConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
		Overbought:      cfg.RSIOverbought,
		Oversold:        cfg.RSIOversold,
	})
	return s, nil
}

// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
func (s *Strategy) RequiredDataPoints() int {
	need := s.longMA.RequiredDataPoints()
	if n := s.ema.RequiredDataPoints(); n > need {
		need = n
	}
	if n := s.rsi.RequiredDataPoints(); n > need {
		need = n
	}
	return need
}

// Snapshot computes the indicator readings for klines. ATR is left for the
// caller, which already holds the value used for level detection.
func (s *Strategy) Snapshot(ctx context.Context, klines []*domain.Kline) (domain.IndicatorSnapshot, error) {
	var snap domain.IndicatorSnapshot
	var err error
	if snap.ShortMA, err = s.shortMA.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("short term MA: %w", err)
	}
	if snap.LongMA, err = s.longMA.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("long term MA: %w", err)
	}
	if snap.EMA, err = s.ema.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("EMA: %w", err)
	}
	if snap.RSI, err = s.rsi.Calculate(ctx, klines); err != nil {
		return snap, fmt.Errorf("RSI: %w", err)
	}
	return snap, nil
}

// direction applies the trend filter to the latest price.
func (s *Strategy) direction(snap domain.IndicatorSnapshot, price float64) (domain.Side, bool) {
	trendingUp := price > snap.ShortMA && snap.ShortMA > snap.LongMA && price > snap.EMA
	if trendingUp && !s.rsi.IsOverbought(snap.RSI) {
		return domain.Long, true
	}
	trendingDown := price < snap.ShortMA && snap.ShortMA < snap.LongMA && price < snap.EMA
	if trendingDown && !s.rsi.IsOversold(snap.RSI) {
		return domain.Short, true
	}
	return "", false
}

// Evaluate returns a candidate signal for the latest closed bar, or nil when
// the trend filter is not aligned or no sane stop can be placed.
func (s *Strategy) Evaluate(ctx context.Context, klines []*domain.Kline, lvls []domain.Level, atr float64) *domain.Signal {
	required := s.RequiredDataPoints()
	if len(klines) < required {
		s.logger.Debug(ctx, "Not enough kline data for strategy evaluation",
			map[string]interface{}{"available": len(klines), "required": required})
		return nil
	}

	snap, err := s.Snapshot(ctx, klines)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to calculate strategy indicators")
		return nil
	}

	last := klines[len(klines)-1]
	price := last.Close
	side, ok := s.direction(snap, price)
	if !ok {
		s.logger.Debug(ctx, "Trade entry conditions not met", map[string]interface{}{
			"currentPrice": price,
			"shortMA":      snap.ShortMA,
			"longMA":       snap.LongMA,
			"ema":          snap.EMA,
			"rsi":          snap.RSI,
		})
		return nil
	}

	stop, target := s.exits(side, price, lvls, atr)
	if stop <= 0 || target <= 0 {
		s.logger.Warn(ctx, "No valid stop for aligned trend, skipping signal", map[string]interface{}{
			"side":  side,
			"price": price,
			"atr":   atr,
		})
		return nil
	}

	reason := fmt.Sprintf("%s trend: price %.4f vs SMA%d %.4f / SMA%d %.4f, EMA %.4f, RSI %.1f",
		side, price, s.cfg.ShortTermMAPeriod, snap.ShortMA, s.cfg.LongTermMAPeriod, snap.LongMA, snap.EMA, snap.RSI)
	sig := &domain.Signal{
		Symbol:     last.Symbol,
		Side:       side,
		EntryPrice: price,
		StopLoss:   stop,
		TakeProfit: target,
		Timeframe:  last.Interval,
		Reason:     reason,
		Time:       last.CloseTime,
	}
	s.logger.Info(ctx, "Trade entry conditions met", map[string]interface{}{
		"side":       side,
		"entry":      price,
		"stopLoss":   stop,
		"takeProfit": target,
		"rr":         sig.RewardRisk(),
	})
	return sig
}

// exits anchors the stop beyond the nearest zone on the risk side and the
// target at the near edge of the nearest zone on the reward side, provided it
// still pays at least RewardRiskRatio.
func (s *Strategy) exits(side domain.Side, entry float64, lvls []domain.Level, atr float64) (stop, target float64) {
	if side == domain.Long {
		if sup, ok := levels.Nearest(lvls, entry, false); ok {
			stop = sup.PriceLow
		} else if atr > 0 {
			stop = entry - s.cfg.StopATRMultiplier*atr
		}
		if stop <= 0 || stop >= entry {
			return 0, 0
		}
		minTarget := entry + s.cfg.RewardRiskRatio*(entry-stop)
		if res, ok := levels.Nearest(lvls, entry, true); ok && res.PriceLow >= minTarget {
			return stop, res.PriceLow
		}
		return stop, minTarget
	}

	if res, ok := levels.Nearest(lvls, entry, true); ok {
		stop = res.PriceHigh
	} else if atr > 0 {
		stop = entry + s.cfg.StopATRMultiplier*atr
	}
	if stop <= entry {
		return 0, 0
	}
	minTarget := entry - s.cfg.RewardRiskRatio*(stop-entry)
	if minTarget <= 0 {
		return 0, 0
	}
	if sup, ok := levels.Nearest(lvls, entry, false); ok && sup.PriceHigh <= minTarget {
		return stop, sup.PriceHigh
	}
	return stop, minTarget
}

// IsReversal reports whether the trend filter now fires against side.
func (s *Strategy) IsReversal(ctx context.Context, klines []*domain.Kline, side domain.Side) bool {
	if len(klines) < s.RequiredDataPoints() {
		return false
	}
	snap, err := s.Snapshot(ctx, klines)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to calculate indicators for reversal check")
		return false
	}
	dir, ok := s.direction(snap, klines[len(klines)-1].Close)
	return ok && dir == side.Opposite()
}

// Package app wires the decision core into a running control loop: it feeds
// market data to level detection and the strategy, gates entries through the
// risk manager and validation gate, and drives exits from the position monitor.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"riskCore/internal/domain"
	"riskCore/internal/levels"
	"riskCore/internal/monitor"
	"riskCore/internal/ports"
	"riskCore/internal/risk"
	"riskCore/internal/strategy"
	"riskCore/internal/validation"
)

const (
	recentBars      = 50 // Bars handed to the validation gate as context
	runnerStopWait  = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Config holds the orchestration settings.
type Config struct {
	Symbol           string
	Interval         string
	QuoteAsset       string
	AccountBalance   float64 // > 0 replaces the exchange balance lookup
	KlineLimit       int
	AnalysisInterval time.Duration
	PollInterval     time.Duration
	SessionEnd       time.Duration // UTC time of day, 0 disables
	CloseOnStop      bool
	TrailingEnabled  bool
}

// Dependencies are the collaborators the service drives.
type Dependencies struct {
	Market    ports.MarketData
	Executor  ports.OrderExecutor
	Levels    ports.LevelRepository
	Trades    ports.TradeRepository
	Snapshots ports.SnapshotStore
	Detector  *levels.Detector
	Strategy  *strategy.Strategy
	Risk      *risk.Manager
	Gate      *validation.Gate
	Monitor   *monitor.Monitor
	Logger    ports.Logger
	Metrics   ports.Metrics
}

// Service orchestrates the decision core's operations.
type Service struct {
	cfg       Config
	logger    ports.Logger
	metrics   ports.Metrics
	market    ports.MarketData
	executor  ports.OrderExecutor
	levelRepo ports.LevelRepository
	tradeRepo ports.TradeRepository
	snapshots ports.SnapshotStore
	detector  *levels.Detector
	strategy  *strategy.Strategy
	risk      *risk.Manager
	gate      *validation.Gate
	monitor   *monitor.Monitor
	runner    *monitor.Runner

	exitMu sync.Mutex // Serializes exit execution between the runner and the cycle
	now    func() time.Time
}

// NewService creates a new application service instance.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	// Validate dependencies
	if deps.Market == nil || deps.Executor == nil || deps.Levels == nil || deps.Trades == nil ||
		deps.Snapshots == nil || deps.Detector == nil || deps.Strategy == nil || deps.Risk == nil ||
		deps.Gate == nil || deps.Monitor == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	if cfg.Symbol == "" || cfg.Interval == "" {
		return nil, fmt.Errorf("symbol and interval are required: %w", ports.ErrConfigurationError)
	}
	if cfg.AnalysisInterval <= 0 {
		return nil, fmt.Errorf("analysis interval must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.KlineLimit < deps.Strategy.RequiredDataPoints() {
		return nil, fmt.Errorf("kline limit %d below strategy requirement %d: %w",
			cfg.KlineLimit, deps.Strategy.RequiredDataPoints(), ports.ErrConfigurationError)
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}

	s := &Service{
		cfg:       cfg,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		market:    deps.Market,
		executor:  deps.Executor,
		levelRepo: deps.Levels,
		tradeRepo: deps.Trades,
		snapshots: deps.Snapshots,
		detector:  deps.Detector,
		strategy:  deps.Strategy,
		risk:      deps.Risk,
		gate:      deps.Gate,
		monitor:   deps.Monitor,
		now:       time.Now,
	}

	runner, err := monitor.NewRunner(deps.Monitor, deps.Market, monitor.RunnerConfig{
		Symbol:   cfg.Symbol,
		Interval: cfg.PollInterval,
	}, s.handleExit, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("create monitor runner: %w", err)
	}
	s.runner = runner
	deps.Monitor.AddStopListener(s.onStopMoved)
	return s, nil
}

// Start runs the service until SIGINT/SIGTERM or ctx cancellation.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting decision core service...")

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Run(ctx)
}

// Run initializes state, starts the position monitor loop and runs one
// analysis cycle per interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("start monitor runner: %w", err)
	}

	ticker := time.NewTicker(s.cfg.AnalysisInterval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
			return s.Shutdown()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// Initialize restores a persisted position and seeds today's risk counters.
func (s *Service) Initialize(ctx context.Context) error {
	op := "Initialize"

	// 1. Restore the open position, if one was persisted
	snap, err := s.snapshots.LoadSnapshot(ctx, s.cfg.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to load position snapshot")
		return fmt.Errorf("failed to load position snapshot: %w", err)
	}
	if snap != nil {
		if err := s.monitor.Restore(ctx, snap); err != nil {
			s.logger.Error(ctx, err, op+": Failed to restore position snapshot", map[string]interface{}{"savedAt": snap.SavedAt})
			return fmt.Errorf("failed to restore position snapshot: %w", err)
		}
	} else {
		s.logger.Info(ctx, op+": No persisted position found")
	}

	// 2. Seed daily counters from trade history
	now := s.now().UTC()
	pnl, count, err := s.tradeRepo.DailyStats(ctx, s.cfg.Symbol, now)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to load today's trade stats")
		return fmt.Errorf("failed to load daily trade stats: %w", err)
	}
	s.risk.RestoreDaily(ctx, now, pnl, count)
	s.logger.Info(ctx, op+": Initial state synchronized", map[string]interface{}{
		"symbol":      s.cfg.Symbol,
		"dailyPNL":    pnl,
		"tradesToday": count,
		"hasPosition": s.monitor.HasPosition(),
	})
	return nil
}

func (s *Service) cycle(ctx context.Context) {
	err := s.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrDailyLossLimit):
		s.logger.Warn(ctx, "Entries halted for the day", map[string]interface{}{"reason": err.Error()})
	case ctx.Err() != nil:
	default:
		s.logger.Error(ctx, err, "Analysis cycle failed")
	}
}

// RunCycle performs one analysis pass: refresh levels, then either supervise
// the open position or look for a new entry.
func (s *Service) RunCycle(ctx context.Context) error {
	op := "RunCycle"
	klines, err := s.market.GetKlines(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.KlineLimit)
	if err != nil {
		return fmt.Errorf("%s: fetch klines: %w", op, err)
	}

	lvls, atr := s.detector.DetectWithATR(ctx, klines, s.cfg.Interval)
	if len(lvls) > 0 {
		if err := s.levelRepo.SaveLevels(ctx, s.cfg.Symbol, lvls); err != nil {
			s.logger.Warn(ctx, op+": Failed to persist levels", map[string]interface{}{"error": err.Error(), "count": len(lvls)})
		}
	}
	s.logger.Debug(ctx, op+": Levels refreshed", map[string]interface{}{"count": len(lvls), "atr": atr, "bars": len(klines)})

	if s.monitor.HasPosition() {
		return s.superviseOpen(ctx, klines)
	}
	return s.considerEntry(ctx, klines, lvls, atr)
}

// superviseOpen raises explicit exits that the price-driven monitor cannot see.
func (s *Service) superviseOpen(ctx context.Context, klines []*domain.Kline) error {
	if pending, ok := s.monitor.PendingExit(); ok {
		return s.executeExit(ctx, pending)
	}
	pos, ok := s.monitor.Position()
	if !ok {
		return nil
	}

	var (
		exit domain.ExitResult
		err  error
	)
	switch {
	case s.sessionEnded():
		exit, err = s.monitor.TriggerSessionEndExit(ctx)
	case s.dailyLossBreached(ctx, pos):
		exit, err = s.monitor.TriggerExit(ctx, domain.TriggerDailyLossLimit,
			fmt.Sprintf("realized plus open P&L crossed the daily loss limit (open %.2f)", pos.UnrealizedPNL))
	case s.strategy.IsReversal(ctx, klines, pos.Side):
		exit, err = s.monitor.TriggerSignalExit(ctx, fmt.Sprintf("trend reversed against %s position", pos.Side))
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return s.executeExit(ctx, exit)
}

func (s *Service) dailyLossBreached(ctx context.Context, pos domain.MonitoredPosition) bool {
	balance, err := s.balance(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Balance unavailable, skipping open-loss check", map[string]interface{}{"error": err.Error()})
		return false
	}
	return s.risk.WouldBreach(ctx, balance, pos.UnrealizedPNL)
}

// sessionEnded reports whether the UTC clock is past the configured session end.
func (s *Service) sessionEnded() bool {
	if s.cfg.SessionEnd <= 0 {
		return false
	}
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return now.Sub(midnight) >= s.cfg.SessionEnd
}

func (s *Service) considerEntry(ctx context.Context, klines []*domain.Kline, lvls []domain.Level, atr float64) error {
	op := "considerEntry"
	if s.sessionEnded() {
		s.logger.Debug(ctx, op+": Session over, no new entries")
		return nil
	}

	balance, err := s.balance(ctx)
	if err != nil {
		return fmt.Errorf("%s: balance: %w", op, err)
	}
	if allowed, reason := s.risk.CheckDailyLossLimit(ctx, balance); !allowed {
		s.metrics.EntryBlocked(string(domain.TriggerDailyLossLimit))
		return fmt.Errorf("%s: %s: %w", op, reason, ports.ErrDailyLossLimit)
	}

	sig := s.strategy.Evaluate(ctx, klines, lvls, atr)
	if sig == nil {
		return nil
	}

	snap, err := s.strategy.Snapshot(ctx, klines)
	if err != nil {
		s.logger.Warn(ctx, op+": Indicator snapshot unavailable", map[string]interface{}{"error": err.Error()})
	}
	snap.ATR = atr
	state := s.risk.State(ctx)
	mctx := &domain.MarketContext{
		Indicators: snap,
		Levels:     lvls,
		RecentBars: tail(klines, recentBars),
		Balance:    balance,
		DailyPNL:   state.DailyRealizedPNL,
	}

	verdict := s.gate.Validate(ctx, sig, mctx)
	if !verdict.Approved {
		s.metrics.EntryBlocked("validation-rejected")
		s.logger.Info(ctx, op+": Signal rejected by validation", map[string]interface{}{
			"requestID":  verdict.RequestID,
			"side":       sig.Side,
			"confidence": verdict.ConfidenceScore,
			"level":      verdict.ValidationLevel,
			"reasoning":  verdict.Reasoning,
		})
		return nil
	}

	quantity := s.risk.CalculatePositionSize(balance, sig.EntryPrice, sig.StopLoss, 0)
	return s.enterPosition(ctx, sig, quantity, atr)
}

func (s *Service) enterPosition(ctx context.Context, sig *domain.Signal, quantity, atr float64) error {
	op := "enterPosition"
	s.logger.Info(ctx, op+": Attempting to enter position", map[string]interface{}{
		"side":       sig.Side,
		"entryPrice": sig.EntryPrice,
		"stopLoss":   sig.StopLoss,
		"takeProfit": sig.TakeProfit,
		"quantity":   quantity,
	})

	fill, err := s.executor.Enter(ctx, sig, quantity)
	if err != nil {
		s.logger.Error(ctx, err, op+": Entry order failed")
		return fmt.Errorf("entry order failed: %w", err)
	}
	entryPrice := fill.Price
	if entryPrice <= 0 {
		s.logger.Warn(ctx, op+": Fill price is 0, using signal price as fallback", map[string]interface{}{"orderID": fill.OrderID})
		entryPrice = sig.EntryPrice
	}
	if fill.Quantity > 0 {
		quantity = fill.Quantity
	}

	pos := domain.MonitoredPosition{
		Symbol:          sig.Symbol,
		Side:            sig.Side,
		EntryPrice:      entryPrice,
		Quantity:        quantity,
		EntryTime:       s.now().UTC(),
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		TrailingEnabled: s.cfg.TrailingEnabled,
		ATR:             atr,
	}
	if err := s.monitor.SetPosition(ctx, pos); err != nil {
		// An exposure the monitor does not track must not stay open.
		s.logger.Warn(ctx, op+": Attempting emergency close after monitor rejection...")
		if _, closeErr := s.executor.Exit(ctx, &pos, domain.ExitResult{
			ShouldExit:   true,
			Trigger:      domain.TriggerUnknown,
			TriggerPrice: entryPrice,
			Reason:       "monitor rejected position",
		}); closeErr != nil {
			s.logger.Error(ctx, closeErr, op+": EMERGENCY CLOSE FAILED")
		}
		return fmt.Errorf("monitor rejected position after entry: %w (emergency close attempted)", err)
	}

	s.saveSnapshot(ctx)
	s.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"orderID":    fill.OrderID,
		"side":       pos.Side,
		"entryPrice": entryPrice,
		"quantity":   quantity,
	})
	return nil
}

// handleExit is the runner's exit callback.
func (s *Service) handleExit(ctx context.Context, exit domain.ExitResult) {
	if err := s.executeExit(ctx, exit); err != nil && ctx.Err() == nil {
		s.logger.Error(ctx, err, "Exit execution failed, will retry on next tick", map[string]interface{}{"trigger": exit.Trigger})
	}
}

// executeExit closes the position at market and records the trade. On an
// order failure the monitor keeps the pending exit so the next call retries.
func (s *Service) executeExit(ctx context.Context, exit domain.ExitResult) error {
	op := "executeExit"
	s.exitMu.Lock()
	defer s.exitMu.Unlock()

	pos, ok := s.monitor.Position()
	if !ok {
		return nil // Closed by a concurrent caller
	}
	if pending, ok := s.monitor.PendingExit(); ok {
		exit = pending
	}

	fill, err := s.executor.Exit(ctx, &pos, exit)
	if err != nil {
		return fmt.Errorf("%s: exit order for %s: %w", op, exit.Trigger, err)
	}

	trade, err := s.monitor.ConfirmExit(ctx, fill.Price, s.now().UTC())
	if err != nil {
		return fmt.Errorf("%s: confirm: %w", op, err)
	}
	trade.Leverage = s.risk.Leverage()
	s.risk.RecordTradeResult(ctx, trade.PNL)

	if id, err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, op+": Failed to save trade", map[string]interface{}{"pnl": trade.PNL})
	} else {
		trade.ID = id
	}
	if err := s.snapshots.DeleteSnapshot(ctx, s.cfg.Symbol); err != nil {
		s.logger.Error(ctx, err, op+": Failed to delete position snapshot")
	}

	s.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"tradeID":   trade.ID,
		"trigger":   trade.Trigger,
		"entry":     trade.EntryPrice,
		"exitPrice": trade.ExitPrice,
		"pnl":       trade.PNL,
	})
	return nil
}

// onStopMoved persists the ratcheted stop so a restart resumes from it.
func (s *Service) onStopMoved(ctx context.Context, update domain.StopUpdate) {
	s.logger.Debug(ctx, "Trailing stop moved", map[string]interface{}{
		"symbol":  update.Symbol,
		"oldStop": update.OldStop,
		"newStop": update.NewStop,
		"price":   update.Price,
	})
	s.saveSnapshot(ctx)
}

func (s *Service) saveSnapshot(ctx context.Context) {
	snap, err := s.monitor.Snapshot()
	if err != nil {
		return
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error(ctx, err, "Failed to save position snapshot", map[string]interface{}{"symbol": snap.Position.Symbol})
	}
}

// Shutdown stops the monitor loop and either closes the open position
// (CloseOnStop) or persists it for the next start.
func (s *Service) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	report := s.runner.Stop(runnerStopWait)
	s.logger.Info(ctx, "Position monitor loop stopped", map[string]interface{}{
		"graceful":          report.Graceful,
		"lastTickProcessed": report.LastTickProcessed,
		"ticks":             report.Ticks,
	})

	if !s.monitor.HasPosition() {
		s.logger.Info(ctx, "Decision core service stopped.")
		return nil
	}
	if !s.cfg.CloseOnStop {
		s.saveSnapshot(ctx)
		s.logger.Info(ctx, "Open position kept for restart", map[string]interface{}{"symbol": s.cfg.Symbol})
		return nil
	}

	exit, err := s.monitor.TriggerExit(ctx, domain.TriggerBotStopped, "service shutting down")
	if err == nil {
		err = s.executeExit(ctx, exit)
	}
	if err != nil {
		s.saveSnapshot(ctx)
		s.logger.Error(ctx, err, "Failed to close position on shutdown, snapshot kept")
		return err
	}
	s.logger.Info(ctx, "Decision core service stopped.")
	return nil
}

func (s *Service) balance(ctx context.Context) (float64, error) {
	if s.cfg.AccountBalance > 0 {
		return s.cfg.AccountBalance, nil
	}
	return s.market.GetAccountBalance(ctx, s.cfg.QuoteAsset)
}

func tail(klines []*domain.Kline, n int) []*domain.Kline {
	if len(klines) <= n {
		return klines
	}
	return klines[len(klines)-n:]
}

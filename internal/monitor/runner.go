package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

// DefaultPollInterval is how often the runner samples the price source.
const DefaultPollInterval = 1000 * time.Millisecond

// ExitHandler is invoked on every tick while an exit is pending, so a failed
// exit order is retried on the next tick.
type ExitHandler func(ctx context.Context, exit domain.ExitResult)

// RunnerConfig configures the polling loop.
type RunnerConfig struct {
	Symbol   string
	Interval time.Duration
}

// StopReport tells the caller how the loop ended.
type StopReport struct {
	Graceful          bool  // Loop exited before the timeout
	LastTickProcessed bool  // Last started tick finished: applied, or skipped after a failed poll
	Ticks             int64 // Ticks applied since Start
}

// Runner polls a price source and feeds the monitor.
type Runner struct {
	monitor *Monitor
	source  ports.PriceSource
	cfg     RunnerConfig
	onExit  ExitHandler
	logger  ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	ticks         atomic.Int64
	lastProcessed atomic.Bool
}

// NewRunner creates a stopped runner.
func NewRunner(m *Monitor, source ports.PriceSource, cfg RunnerConfig, onExit ExitHandler, logger ports.Logger) (*Runner, error) {
	if m == nil || source == nil || onExit == nil || logger == nil {
		return nil, fmt.Errorf("monitor, price source, exit handler and logger are required for runner")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("runner symbol is empty: %w", ports.ErrConfigurationError)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	r := &Runner{monitor: m, source: source, cfg: cfg, onExit: onExit, logger: logger}
	r.lastProcessed.Store(true)
	return r, nil
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Start launches the polling goroutine.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("runner for %s already started", r.cfg.Symbol)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.ticks.Store(0)
	r.lastProcessed.Store(true)

	go r.loop(runCtx, r.done)
	r.logger.Info(ctx, "Position monitor loop started", map[string]interface{}{
		"symbol":   r.cfg.Symbol,
		"interval": r.cfg.Interval.String(),
	})
	return nil
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if !r.monitor.HasPosition() {
		return
	}
	r.lastProcessed.Store(false)

	price, err := r.source.GetMarkPrice(ctx, r.cfg.Symbol)
	if err != nil {
		// A poll cut short by cancellation stays unprocessed; any other failure is a completed skip.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			r.lastProcessed.Store(true)
		}
		if ctx.Err() == nil {
			r.logger.Warn(ctx, "Price poll failed, skipping tick", map[string]interface{}{
				"symbol": r.cfg.Symbol,
				"error":  err.Error(),
			})
		}
		return
	}

	exit, err := r.monitor.OnPriceUpdate(ctx, price)
	r.ticks.Add(1)
	r.lastProcessed.Store(true)
	if err != nil {
		if !errors.Is(err, ports.ErrNoActivePosition) {
			r.logger.Error(ctx, err, "Price update rejected", map[string]interface{}{"price": price})
		}
		return
	}
	if exit.ShouldExit {
		r.onExit(ctx, exit)
	}
}

// Stop cancels the loop and waits up to timeout for the in-flight tick.
func (r *Runner) Stop(timeout time.Duration) StopReport {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	report := StopReport{Graceful: true}
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(timeout):
			report.Graceful = false
		}
	}
	report.LastTickProcessed = r.lastProcessed.Load()
	report.Ticks = r.ticks.Load()
	return report
}

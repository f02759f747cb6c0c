// Package validation implements the hierarchical validation gate: a cheap quick
// check that escalates to a deep check only when the quick verdict is
// inconclusive, degrading to a technical fallback when the backend fails.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

const (
	// FallbackConfidence is reported when the backend fails and fallback is on.
	FallbackConfidence = 50.0
	bypassConfidence   = 100.0
)

// Config controls routing thresholds, timeouts and the provider for each tier.
type Config struct {
	Enabled             bool
	DeepAnalysisEnabled bool
	FallbackToTechnical bool
	TradeThreshold      float64 // Minimum confidence to approve
	DeepThreshold       float64 // Minimum quick confidence to escalate
	QuickTimeout        time.Duration
	DeepTimeout         time.Duration
	DeepBars            int // Recent bars included in the deep prompt
	Quick               ports.ProviderConfig
	Deep                ports.ProviderConfig // Empty provider reuses Quick
}

// DefaultConfig returns the gate defaults. Validation starts disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:             false,
		DeepAnalysisEnabled: true,
		FallbackToTechnical: true,
		TradeThreshold:      70,
		DeepThreshold:       50,
		QuickTimeout:        10 * time.Second,
		DeepTimeout:         30 * time.Second,
		DeepBars:            20,
	}
}

// Validate checks thresholds and, when enabled, the provider selection.
func (c Config) Validate() error {
	var errs []string
	if c.TradeThreshold < 0 || c.TradeThreshold > 100 {
		errs = append(errs, "trade threshold must be within [0,100]")
	}
	if c.DeepThreshold < 0 || c.DeepThreshold > c.TradeThreshold {
		errs = append(errs, "deep threshold must be within [0,trade threshold]")
	}
	if c.QuickTimeout <= 0 || c.DeepTimeout <= 0 {
		errs = append(errs, "timeouts must be positive")
	}
	if c.DeepBars < 0 {
		errs = append(errs, "deep bars must not be negative")
	}
	if c.Enabled && c.Quick.Provider == "" {
		errs = append(errs, "quick provider is required when validation is enabled")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) deepProvider() ports.ProviderConfig {
	if c.Deep.Provider == "" {
		return c.Quick
	}
	return c.Deep
}

// Gate routes signals through the quick and deep tiers.
type Gate struct {
	mu      sync.RWMutex
	cfg     Config
	quick   ports.ValidationBackend
	deep    ports.ValidationBackend
	factory ports.BackendFactory

	logger  ports.Logger
	metrics ports.Metrics
	now     func() time.Time
}

// New validates cfg and builds both tier backends through factory.
func New(cfg Config, factory ports.BackendFactory, logger ports.Logger, metrics ports.Metrics) (*Gate, error) {
	if factory == nil || logger == nil {
		return nil, fmt.Errorf("backend factory and logger are required for validation gate")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	g := &Gate{factory: factory, logger: logger, metrics: metrics, now: time.Now}
	if err := g.UpdateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateConfig swaps in a new configuration and rebuilds both backends so no
// client keeps stale credentials. On error the previous configuration stays.
func (g *Gate) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var quick, deep ports.ValidationBackend
	if cfg.Enabled {
		var err error
		if quick, err = g.factory(cfg.Quick); err != nil {
			return fmt.Errorf("build quick backend %s: %w", cfg.Quick.Provider, err)
		}
		if cfg.DeepAnalysisEnabled {
			if deep, err = g.factory(cfg.deepProvider()); err != nil {
				return fmt.Errorf("build deep backend %s: %w", cfg.deepProvider().Provider, err)
			}
		}
	}

	g.mu.Lock()
	g.cfg, g.quick, g.deep = cfg, quick, deep
	g.mu.Unlock()

	g.logger.Info(ctx, "Validation gate configured", map[string]interface{}{
		"enabled":        cfg.Enabled,
		"deepEnabled":    cfg.DeepAnalysisEnabled,
		"fallback":       cfg.FallbackToTechnical,
		"tradeThreshold": cfg.TradeThreshold,
		"deepThreshold":  cfg.DeepThreshold,
		"quickProvider":  cfg.Quick.Provider,
		"quickModel":     cfg.Quick.Model,
		"deepProvider":   cfg.deepProvider().Provider,
		"deepModel":      cfg.deepProvider().Model,
	})
	return nil
}

// Config returns the active configuration.
func (g *Gate) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Validate returns the final verdict for sig. It never returns an error:
// backend failures are folded into the verdict according to configuration.
func (g *Gate) Validate(ctx context.Context, sig *domain.Signal, mctx *domain.MarketContext) domain.AIValidation {
	g.mu.RLock()
	cfg, quick, deep := g.cfg, g.quick, g.deep
	g.mu.RUnlock()

	start := g.now()
	result := domain.AIValidation{
		RequestID: uuid.NewString(),
		Timestamp: start,
		SetupType: domain.SetupUnknown,
	}
	if mctx == nil {
		mctx = &domain.MarketContext{}
	}

	switch {
	case sig == nil:
		result.ValidationLevel = domain.ValidationQuick
		result.Reasoning = "rejected: no signal to validate"
		result.Error = fmt.Errorf("nil signal: %w", ports.ErrInvalidRequest).Error()
	case !cfg.Enabled:
		result.Approved = true
		result.ConfidenceScore = bypassConfidence
		result.ValidationLevel = domain.ValidationBypass
		result.Reasoning = "validation disabled, signal passed through"
	default:
		result = g.route(ctx, result, cfg, quick, deep, sig, mctx)
	}

	latency := g.now().Sub(start)
	g.metrics.ValidationDecided(string(result.ValidationLevel), result.Approved, latency)
	fields := map[string]interface{}{
		"requestID":  result.RequestID,
		"approved":   result.Approved,
		"confidence": result.ConfidenceScore,
		"level":      result.ValidationLevel,
		"setup":      result.SetupType,
		"deep":       result.DeepAnalysisTriggered,
		"latencyMs":  latency.Milliseconds(),
	}
	if sig != nil {
		fields["symbol"] = sig.Symbol
		fields["side"] = sig.Side
	}
	if result.Error != "" {
		fields["error"] = result.Error
	}
	g.logger.Info(ctx, "Signal validated", fields)
	return result
}

func (g *Gate) route(ctx context.Context, result domain.AIValidation, cfg Config, quick, deep ports.ValidationBackend, sig *domain.Signal, mctx *domain.MarketContext) domain.AIValidation {
	result.ValidationLevel = domain.ValidationQuick
	qv, err := g.ask(ctx, quick, BuildQuickPrompt(sig, mctx), cfg.QuickTimeout, cfg.TradeThreshold)
	if err != nil {
		return g.degrade(ctx, result, cfg, domain.ValidationQuick, err)
	}
	result = applyVerdict(result, quick, qv)

	switch {
	case qv.Confidence >= cfg.TradeThreshold:
		return decide(result, qv, cfg.TradeThreshold)
	case qv.Confidence >= cfg.DeepThreshold && cfg.DeepAnalysisEnabled:
		// escalate
	case qv.Confidence >= cfg.DeepThreshold:
		result.Reasoning = fmt.Sprintf("quick confidence %.0f below trade threshold %.0f and deep analysis disabled: %s",
			qv.Confidence, cfg.TradeThreshold, qv.Reasoning)
		return result
	default:
		result.Reasoning = fmt.Sprintf("quick confidence %.0f below deep threshold %.0f: %s",
			qv.Confidence, cfg.DeepThreshold, qv.Reasoning)
		return result
	}

	result.DeepAnalysisTriggered = true
	result.ValidationLevel = domain.ValidationDeep
	g.logger.Debug(ctx, "Escalating to deep validation", map[string]interface{}{
		"requestID":       result.RequestID,
		"quickConfidence": qv.Confidence,
	})

	dv, err := g.ask(ctx, deep, BuildDeepPrompt(sig, mctx, cfg.DeepBars), cfg.DeepTimeout, cfg.TradeThreshold)
	if err != nil {
		return g.degrade(ctx, result, cfg, domain.ValidationDeep, err)
	}
	result = applyVerdict(result, deep, dv)
	if dv.Confidence < cfg.TradeThreshold {
		result.Reasoning = fmt.Sprintf("deep confidence %.0f below trade threshold %.0f: %s",
			dv.Confidence, cfg.TradeThreshold, dv.Reasoning)
		return result
	}
	return decide(result, dv, cfg.TradeThreshold)
}

func applyVerdict(result domain.AIValidation, backend ports.ValidationBackend, v Verdict) domain.AIValidation {
	result.Provider = backend.Provider()
	result.Model = backend.Model()
	result.ConfidenceScore = v.Confidence
	result.SetupType = v.SetupType
	result.Reasoning = v.Reasoning
	result.Approved = false
	return result
}

// decide approves a verdict that cleared the trade threshold unless the
// backend explicitly vetoed it.
func decide(result domain.AIValidation, v Verdict, threshold float64) domain.AIValidation {
	if !v.Approved {
		result.Reasoning = fmt.Sprintf("backend vetoed despite confidence %.0f >= %.0f: %s", v.Confidence, threshold, v.Reasoning)
		return result
	}
	result.Approved = true
	return result
}

// degrade folds a backend failure into the verdict.
func (g *Gate) degrade(ctx context.Context, result domain.AIValidation, cfg Config, level domain.ValidationLevel, err error) domain.AIValidation {
	g.logger.Error(ctx, err, "Validation backend failed", map[string]interface{}{
		"requestID": result.RequestID,
		"level":     level,
		"fallback":  cfg.FallbackToTechnical,
	})

	result.Error = err.Error()
	result.SetupType = domain.SetupUnknown
	if cfg.FallbackToTechnical {
		result.Approved = true
		result.ConfidenceScore = FallbackConfidence
		result.ValidationLevel = domain.ValidationFallback
		result.Reasoning = fmt.Sprintf("%s validation failed, falling back to technical signal", level)
		return result
	}
	result.Approved = false
	result.ConfidenceScore = 0
	result.ValidationLevel = level
	result.Reasoning = fmt.Sprintf("%s validation failed, signal rejected", level)
	return result
}

type completion struct {
	text string
	err  error
}

// ask calls backend with a bounded timeout. The call runs in its own goroutine
// so a backend that ignores cancellation cannot hold the gate past timeout.
func (g *Gate) ask(ctx context.Context, backend ports.ValidationBackend, prompt string, timeout time.Duration, threshold float64) (Verdict, error) {
	if backend == nil {
		return Verdict{}, fmt.Errorf("no validation backend configured: %w", ports.ErrConfigurationError)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		text, err := backend.Complete(callCtx, prompt)
		done <- completion{text: text, err: err}
	}()

	var c completion
	select {
	case c = <-done:
	case <-callCtx.Done():
		c.err = callCtx.Err()
	}

	if c.err != nil {
		switch {
		case errors.Is(c.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return Verdict{}, fmt.Errorf("%s after %s: %w", backend.Provider(), timeout, ports.ErrTimeout)
		case errors.Is(c.err, context.Canceled):
			return Verdict{}, fmt.Errorf("%s: %w", backend.Provider(), ports.ErrContextCanceled)
		case errors.Is(c.err, ports.ErrBackendFailure):
			return Verdict{}, c.err
		}
		return Verdict{}, fmt.Errorf("%s: %w: %v", backend.Provider(), ports.ErrBackendFailure, c.err)
	}

	v, err := ParseVerdict(c.text, threshold)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", backend.Provider(), err)
	}
	return v, nil
}

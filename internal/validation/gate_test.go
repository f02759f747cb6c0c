package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

type mockBackend struct {
	mock.Mock
	provider string
	model    string
}

func (m *mockBackend) Provider() string { return m.provider }
func (m *mockBackend) Model() string    { return m.model }

func (m *mockBackend) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// fakeFactory hands out backends by model name and counts builds.
type fakeFactory struct {
	backends map[string]*mockBackend
	built    []ports.ProviderConfig
	err      error
}

func (f *fakeFactory) build(cfg ports.ProviderConfig) (ports.ValidationBackend, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.built = append(f.built, cfg)
	b, ok := f.backends[cfg.Model]
	if !ok {
		b = &mockBackend{provider: cfg.Provider, model: cfg.Model}
		f.backends[cfg.Model] = b
	}
	return b, nil
}

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FallbackToTechnical = false
	cfg.QuickTimeout = time.Second
	cfg.DeepTimeout = time.Second
	cfg.Quick = ports.ProviderConfig{Provider: "openai", Model: "quick-model", APIKey: "k1"}
	cfg.Deep = ports.ProviderConfig{Provider: "anthropic", Model: "deep-model", APIKey: "k2"}
	return cfg
}

func newTestGate(t *testing.T, cfg Config) (*Gate, *mockBackend, *mockBackend, *fakeFactory) {
	t.Helper()
	quick := &mockBackend{provider: "openai", model: "quick-model"}
	deep := &mockBackend{provider: "anthropic", model: "deep-model"}
	f := &fakeFactory{backends: map[string]*mockBackend{"quick-model": quick, "deep-model": deep}}
	g, err := New(cfg, f.build, ports.NopLogger{}, nil)
	require.NoError(t, err)
	return g, quick, deep, f
}

func testSignal() *domain.Signal {
	return &domain.Signal{
		Symbol:     "BTCUSDT",
		Side:       domain.Long,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
		Timeframe:  "1h",
		Reason:     "trend filter aligned",
	}
}

func testContext() *domain.MarketContext {
	return &domain.MarketContext{
		Indicators: domain.IndicatorSnapshot{ShortMA: 99, LongMA: 97, EMA: 98, RSI: 58, ATR: 1.8},
		Levels: []domain.Level{
			{Type: domain.LevelResistance, PriceLow: 108, PriceHigh: 109, Strength: domain.StrengthStrong},
			{Type: domain.LevelSupport, PriceLow: 94, PriceHigh: 95, Strength: domain.StrengthModerate},
		},
		Balance: 1000,
	}
}

func TestValidate_HierarchicalRouting(t *testing.T) {
	tests := []struct {
		name        string
		quickReply  string
		deepReply   string
		wantDeep    bool
		approved    bool
		level       domain.ValidationLevel
		confidence  float64
		wantSetup   domain.SetupType
		wantProvide string
	}{
		{
			name:        "quick approves above trade threshold",
			quickReply:  `{"approved": true, "confidence": 80, "setup_type": "breakout", "reasoning": "clean break"}`,
			approved:    true,
			level:       domain.ValidationQuick,
			confidence:  80,
			wantSetup:   domain.SetupBreakout,
			wantProvide: "openai",
		},
		{
			name:        "inconclusive quick escalates and deep approves",
			quickReply:  `{"confidence": 55, "setup_type": "pullback", "reasoning": "unclear"}`,
			deepReply:   `{"approved": true, "confidence": 75, "setup_type": "pullback", "reasoning": "held support"}`,
			wantDeep:    true,
			approved:    true,
			level:       domain.ValidationDeep,
			confidence:  75,
			wantSetup:   domain.SetupPullback,
			wantProvide: "anthropic",
		},
		{
			name:        "inconclusive quick escalates and deep rejects",
			quickReply:  `{"confidence": 55, "setup_type": "pullback"}`,
			deepReply:   `{"approved": false, "confidence": 60, "setup_type": "no_setup", "reasoning": "weak volume"}`,
			wantDeep:    true,
			approved:    false,
			level:       domain.ValidationDeep,
			confidence:  60,
			wantSetup:   domain.SetupNone,
			wantProvide: "anthropic",
		},
		{
			name:        "quick below deep threshold rejects",
			quickReply:  `{"approved": false, "confidence": 30, "setup_type": "reversal", "reasoning": "against trend"}`,
			approved:    false,
			level:       domain.ValidationQuick,
			confidence:  30,
			wantSetup:   domain.SetupReversal,
			wantProvide: "openai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, quick, deep, _ := newTestGate(t, enabledConfig())
			quick.On("Complete", mock.Anything, mock.Anything).Return(tt.quickReply, nil).Once()
			if tt.wantDeep {
				deep.On("Complete", mock.Anything, mock.Anything).Return(tt.deepReply, nil).Once()
			}

			res := g.Validate(context.Background(), testSignal(), testContext())

			assert.Equal(t, tt.approved, res.Approved)
			assert.Equal(t, tt.level, res.ValidationLevel)
			assert.Equal(t, tt.confidence, res.ConfidenceScore)
			assert.Equal(t, tt.wantDeep, res.DeepAnalysisTriggered)
			assert.Equal(t, tt.wantSetup, res.SetupType)
			assert.Equal(t, tt.wantProvide, res.Provider)
			assert.NotEmpty(t, res.Reasoning)
			assert.Empty(t, res.Error)
			_, err := uuid.Parse(res.RequestID)
			assert.NoError(t, err)

			quick.AssertExpectations(t)
			if tt.wantDeep {
				deep.AssertExpectations(t)
			} else {
				deep.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestValidate_DeepDisabledRejectsInconclusive(t *testing.T) {
	cfg := enabledConfig()
	cfg.DeepAnalysisEnabled = false
	g, quick, deep, f := newTestGate(t, cfg)
	quick.On("Complete", mock.Anything, mock.Anything).Return(`{"confidence": 60}`, nil).Once()

	res := g.Validate(context.Background(), testSignal(), testContext())
	assert.False(t, res.Approved)
	assert.False(t, res.DeepAnalysisTriggered)
	assert.Contains(t, res.Reasoning, "deep analysis disabled")
	assert.Len(t, f.built, 1)
	deep.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestValidate_ExplicitVetoAboveThreshold(t *testing.T) {
	g, quick, _, _ := newTestGate(t, enabledConfig())
	quick.On("Complete", mock.Anything, mock.Anything).
		Return(`{"approved": false, "confidence": 90, "setup_type": "breakout"}`, nil).Once()

	res := g.Validate(context.Background(), testSignal(), testContext())
	assert.False(t, res.Approved)
	assert.Equal(t, domain.ValidationQuick, res.ValidationLevel)
	assert.Contains(t, res.Reasoning, "vetoed")
}

func TestValidate_Bypass(t *testing.T) {
	f := &fakeFactory{backends: map[string]*mockBackend{}}
	g, err := New(DefaultConfig(), f.build, ports.NopLogger{}, nil)
	require.NoError(t, err)

	res := g.Validate(context.Background(), testSignal(), nil)
	assert.True(t, res.Approved)
	assert.Equal(t, 100.0, res.ConfidenceScore)
	assert.Equal(t, domain.ValidationBypass, res.ValidationLevel)
	assert.Equal(t, domain.SetupUnknown, res.SetupType)
	assert.NotEmpty(t, res.Reasoning)
	assert.Empty(t, f.built, "no backend is built while disabled")
}

func TestValidate_BackendFailure(t *testing.T) {
	tests := []struct {
		name       string
		fallback   bool
		approved   bool
		confidence float64
		level      domain.ValidationLevel
	}{
		{"fallback to technical", true, true, FallbackConfidence, domain.ValidationFallback},
		{"hard reject", false, false, 0, domain.ValidationQuick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			cfg.FallbackToTechnical = tt.fallback
			g, quick, _, _ := newTestGate(t, cfg)
			quick.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()

			res := g.Validate(context.Background(), testSignal(), testContext())
			assert.Equal(t, tt.approved, res.Approved)
			assert.Equal(t, tt.confidence, res.ConfidenceScore)
			assert.Equal(t, tt.level, res.ValidationLevel)
			assert.Equal(t, domain.SetupUnknown, res.SetupType)
			assert.Contains(t, res.Error, "connection reset")
			assert.Contains(t, res.Error, ports.ErrBackendFailure.Error())
		})
	}
}

func TestValidate_NilSignalRejected(t *testing.T) {
	for _, fallback := range []bool{true, false} {
		cfg := enabledConfig()
		cfg.FallbackToTechnical = fallback
		g, quick, _, _ := newTestGate(t, cfg)

		res := g.Validate(context.Background(), nil, testContext())
		assert.False(t, res.Approved, "fallback=%v", fallback)
		assert.Zero(t, res.ConfidenceScore)
		assert.Equal(t, domain.ValidationQuick, res.ValidationLevel)
		assert.Contains(t, res.Error, ports.ErrInvalidRequest.Error())
		assert.NotEmpty(t, res.Reasoning)
		quick.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	}

	g, err := New(DefaultConfig(), (&fakeFactory{backends: map[string]*mockBackend{}}).build, ports.NopLogger{}, nil)
	require.NoError(t, err)
	res := g.Validate(context.Background(), nil, nil)
	assert.False(t, res.Approved, "bypass does not pass a nil signal")
}

func TestValidate_DeepFailureKeepsEscalationFlag(t *testing.T) {
	cfg := enabledConfig()
	cfg.FallbackToTechnical = true
	g, quick, deep, _ := newTestGate(t, cfg)
	quick.On("Complete", mock.Anything, mock.Anything).Return(`{"confidence": 65}`, nil).Once()
	deep.On("Complete", mock.Anything, mock.Anything).Return("I cannot answer that.", nil).Once()

	res := g.Validate(context.Background(), testSignal(), testContext())
	assert.True(t, res.Approved)
	assert.True(t, res.DeepAnalysisTriggered)
	assert.Equal(t, domain.ValidationFallback, res.ValidationLevel)
	assert.Equal(t, FallbackConfidence, res.ConfidenceScore)
	assert.Contains(t, res.Error, ports.ErrMalformedResponse.Error())
}

func TestValidate_TimeoutDegradesLikeFailure(t *testing.T) {
	cfg := enabledConfig()
	cfg.QuickTimeout = 20 * time.Millisecond
	g, quick, _, _ := newTestGate(t, cfg)
	quick.On("Complete", mock.Anything, mock.Anything).
		After(500*time.Millisecond).
		Return(`{"confidence": 99}`, nil).Once()

	start := time.Now()
	res := g.Validate(context.Background(), testSignal(), testContext())

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.False(t, res.Approved)
	assert.Zero(t, res.ConfidenceScore)
	assert.Contains(t, res.Error, ports.ErrTimeout.Error())
}

func TestValidate_CancelledContext(t *testing.T) {
	cfg := enabledConfig()
	cfg.FallbackToTechnical = true
	g, quick, _, _ := newTestGate(t, cfg)
	quick.On("Complete", mock.Anything, mock.Anything).
		After(500*time.Millisecond).
		Return(`{"confidence": 99}`, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := g.Validate(ctx, testSignal(), testContext())
	assert.True(t, res.Approved)
	assert.Equal(t, domain.ValidationFallback, res.ValidationLevel)
	assert.Contains(t, res.Error, ports.ErrContextCanceled.Error())
}

func TestValidate_PromptsCarryContext(t *testing.T) {
	g, quick, deep, _ := newTestGate(t, enabledConfig())
	var quickPrompt, deepPrompt string
	quick.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { quickPrompt = args.String(1) }).
		Return(`{"confidence": 55}`, nil).Once()
	deep.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { deepPrompt = args.String(1) }).
		Return(`{"confidence": 80, "approved": true}`, nil).Once()

	mctx := testContext()
	mctx.RecentBars = []*domain.Kline{
		{OpenTime: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC), Open: 99, High: 101, Low: 98, Close: 100, Volume: 12},
	}
	g.Validate(context.Background(), testSignal(), mctx)

	assert.Contains(t, quickPrompt, "LONG BTCUSDT")
	assert.Contains(t, quickPrompt, "Nearest resistance: 108.0000-109.0000")
	assert.Contains(t, quickPrompt, "Nearest support: 94.0000-95.0000")
	assert.NotContains(t, quickPrompt, "Recent bars")
	assert.Contains(t, deepPrompt, "Recent bars")
	assert.Contains(t, deepPrompt, "2024-05-10T10:00,99.0000,101.0000,98.0000,100.0000,12.00")
	assert.Contains(t, deepPrompt, "balance=1000.00")
}

func TestUpdateConfig_RebuildsBackends(t *testing.T) {
	g, _, _, f := newTestGate(t, enabledConfig())
	require.Len(t, f.built, 2)

	cfg := enabledConfig()
	cfg.Quick.APIKey = "rotated"
	cfg.Deep = ports.ProviderConfig{}
	require.NoError(t, g.UpdateConfig(context.Background(), cfg))

	require.Len(t, f.built, 4)
	assert.Equal(t, "rotated", f.built[2].APIKey)
	assert.Equal(t, "quick-model", f.built[3].Model, "deep tier reuses quick provider when unset")
	assert.Equal(t, "rotated", g.Config().Quick.APIKey)
}

func TestUpdateConfig_KeepsPreviousOnError(t *testing.T) {
	g, _, _, f := newTestGate(t, enabledConfig())

	bad := enabledConfig()
	bad.DeepThreshold = 90
	assert.ErrorIs(t, g.UpdateConfig(context.Background(), bad), ports.ErrConfigurationError)

	f.err = ports.ErrUnsupportedBackend
	assert.ErrorIs(t, g.UpdateConfig(context.Background(), enabledConfig()), ports.ErrUnsupportedBackend)
	assert.Equal(t, 50.0, g.Config().DeepThreshold)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Enabled = true
	assert.ErrorIs(t, cfg.Validate(), ports.ErrConfigurationError)

	cfg = enabledConfig()
	cfg.TradeThreshold = 120
	assert.ErrorIs(t, cfg.Validate(), ports.ErrConfigurationError)

	cfg = enabledConfig()
	cfg.QuickTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ports.ErrConfigurationError)
}

package llm

import (
	"fmt"
	"strings"

	"riskCore/internal/ports"
)

// OpenAI-compatible hosts selectable by provider name alone.
var compatibleBaseURLs = map[string]string{
	"openai":     defaultOpenAIBaseURL,
	"deepseek":   "https://api.deepseek.com",
	"openrouter": "https://openrouter.ai/api",
	"groq":       "https://api.groq.com/openai",
}

// NewFactory returns a ports.BackendFactory that builds a fresh backend for
// every call, so rotated keys take effect on the next UpdateConfig.
func NewFactory(logger ports.Logger) ports.BackendFactory {
	return func(cfg ports.ProviderConfig) (ports.ValidationBackend, error) {
		return NewBackend(cfg, logger)
	}
}

// NewBackend selects an implementation by provider name.
func NewBackend(cfg ports.ProviderConfig, logger ports.Logger) (ports.ValidationBackend, error) {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s model is empty: %w", provider, ports.ErrConfigurationError)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is empty: %w", provider, ports.ErrConfigurationError)
	}
	cfg.Provider = provider

	if provider == "anthropic" {
		return NewAnthropic(cfg, logger), nil
	}
	base, ok := compatibleBaseURLs[provider]
	if !ok {
		return nil, fmt.Errorf("%q: %w", cfg.Provider, ports.ErrUnsupportedBackend)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = base
	}
	return NewOpenAI(cfg, logger), nil
}

package ports

import "context"

// ValidationBackend is one provider capable of judging a trade prompt.
// It returns the raw completion text; the gate parses it.
type ValidationBackend interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig selects and configures a validation backend.
type ProviderConfig struct {
	Provider  string // e.g. "openai", "anthropic"
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// BackendFactory builds a fresh backend from configuration.
type BackendFactory func(cfg ProviderConfig) (ValidationBackend, error)

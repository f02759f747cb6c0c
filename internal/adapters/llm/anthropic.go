package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"riskCore/internal/ports"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Anthropic talks to the Messages API.
type Anthropic struct {
	cfg    ports.ProviderConfig
	http   *resty.Client
	logger ports.Logger
}

// NewAnthropic builds a Messages API backend.
func NewAnthropic(cfg ports.ProviderConfig, logger ports.Logger) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	client := newHTTPClient(baseURL).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion)
	return &Anthropic{cfg: cfg, http: client, logger: logger}
}

// Provider returns the provider name the backend was configured with.
func (a *Anthropic) Provider() string { return a.cfg.Provider }

// Model returns the model every completion request is sent to.
func (a *Anthropic) Model() string { return a.cfg.Model }

// Complete sends the prompt as a single user turn and joins the text blocks.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	req := messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: maxTokens(a.cfg),
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	var out messagesResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("%s request: %w", a.cfg.Provider, err)
	}
	if resp.IsError() {
		return "", statusError(a.cfg.Provider, resp)
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%s: no text content: %w", a.cfg.Provider, ports.ErrMalformedResponse)
	}

	a.logger.Debug(ctx, "Validation completion received", map[string]interface{}{
		"provider": a.cfg.Provider,
		"model":    a.cfg.Model,
		"duration": resp.Time().String(),
	})
	return text, nil
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"riskCore/internal/ports"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	cfg    ports.ProviderConfig
	http   *resty.Client
	logger ports.Logger
}

// NewOpenAI builds a chat-completions backend.
func NewOpenAI(cfg ports.ProviderConfig, logger ports.Logger) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		cfg:    cfg,
		http:   newHTTPClient(baseURL).SetAuthToken(cfg.APIKey),
		logger: logger,
	}
}

// Provider returns the provider name the backend was configured with.
func (o *OpenAI) Provider() string { return o.cfg.Provider }

// Model returns the model every completion request is sent to.
func (o *OpenAI) Model() string { return o.cfg.Model }

// Complete posts one system and one user message and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens(o.cfg),
		Temperature: 0,
	}

	var out chatResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s request: %w", o.cfg.Provider, err)
	}
	if resp.IsError() {
		return "", statusError(o.cfg.Provider, resp)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: empty completion: %w", o.cfg.Provider, ports.ErrMalformedResponse)
	}

	o.logger.Debug(ctx, "Validation completion received", map[string]interface{}{
		"provider": o.cfg.Provider,
		"model":    o.cfg.Model,
		"duration": resp.Time().String(),
	})
	return out.Choices[0].Message.Content, nil
}

// Package llm provides validation backends that send the gate's prompt to a
// hosted language model over HTTP and return the raw completion text.
package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"riskCore/internal/ports"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second
	defaultHTTPTimeout     = 60 * time.Second
	defaultMaxTokens       = 512

	systemPrompt = "You review trade signals for risk. Answer only with the requested JSON object."
)

func newHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultHTTPTimeout).
		SetRetryCount(defaultRetryAttempts-1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)
}

// isRetryableResp retries transport errors, throttling and server faults.
func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

// statusError turns a non-2xx reply into a backend failure carrying the body.
func statusError(provider string, resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > 300 {
		body = body[:300]
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return fmt.Errorf("%s status %d: %w: %w: %s", provider, resp.StatusCode(), ports.ErrBackendFailure, ports.ErrAuthenticationFailed, body)
	}
	return fmt.Errorf("%s status %d: %w: %s", provider, resp.StatusCode(), ports.ErrBackendFailure, body)
}

func maxTokens(cfg ports.ProviderConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Data Errors
	ErrInsufficientData = errors.New("not enough data points")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Position Monitor Errors
	ErrPositionActive   = errors.New("a position is already being monitored")
	ErrNoActivePosition = errors.New("no active position")

	// Validation Backend Errors
	ErrBackendFailure     = errors.New("validation backend failed")
	ErrMalformedResponse  = errors.New("validation backend returned a malformed response")
	ErrUnsupportedBackend = errors.New("unsupported validation provider")

	// Governance
	ErrDailyLossLimit = errors.New("daily loss limit reached")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

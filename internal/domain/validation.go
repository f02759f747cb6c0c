package domain

import "time"

// ValidationLevel records how a signal was vetted.
type ValidationLevel string

const (
	ValidationQuick    ValidationLevel = "quick"
	ValidationDeep     ValidationLevel = "deep"
	ValidationFallback ValidationLevel = "technical-fallback"
	ValidationBypass   ValidationLevel = "bypass"
)

// SetupType is the backend's classification of the trade setup.
type SetupType string

const (
	SetupBreakout          SetupType = "breakout"
	SetupBreakdown         SetupType = "breakdown"
	SetupPullback          SetupType = "pullback"
	SetupReversal          SetupType = "reversal"
	SetupRangeBounce       SetupType = "range_bounce"
	SetupTrendContinuation SetupType = "trend_continuation"
	SetupLevelRejection    SetupType = "level_rejection"
	SetupNone              SetupType = "no_setup"
	SetupUnknown           SetupType = "unknown"
)

var knownSetups = map[SetupType]struct{}{
	SetupBreakout:          {},
	SetupBreakdown:         {},
	SetupPullback:          {},
	SetupReversal:          {},
	SetupRangeBounce:       {},
	SetupTrendContinuation: {},
	SetupLevelRejection:    {},
	SetupNone:              {},
}

// IsKnown reports whether s belongs to the enumerated setup set.
func (s SetupType) IsKnown() bool {
	_, ok := knownSetups[s]
	return ok
}

// AIValidation is the gate's final verdict on a signal.
type AIValidation struct {
	RequestID             string          `json:"request_id"`
	Approved              bool            `json:"approved"`
	ConfidenceScore       float64         `json:"confidence_score"` // 0..100
	SetupType             SetupType       `json:"setup_type"`
	Reasoning             string          `json:"reasoning"`
	Provider              string          `json:"provider"`
	Model                 string          `json:"model"`
	Timestamp             time.Time       `json:"timestamp"`
	ValidationLevel       ValidationLevel `json:"validation_level"`
	DeepAnalysisTriggered bool            `json:"deep_analysis_triggered"`
	Error                 string          `json:"error,omitempty"`
}

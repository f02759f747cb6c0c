package domain

// Side represents the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// IsValid reports whether the side is long or short.
func (s Side) IsValid() bool {
	return s == Long || s == Short
}

// ExitTrigger indicates why a position should be (or was) closed.
type ExitTrigger string

const (
	TriggerStopLoss       ExitTrigger = "stop-loss"
	TriggerTakeProfit     ExitTrigger = "take-profit"
	TriggerTrailingStop   ExitTrigger = "trailing-stop"
	TriggerSignalExit     ExitTrigger = "signal-exit"
	TriggerManual         ExitTrigger = "manual"
	TriggerSessionEnd     ExitTrigger = "session-end"
	TriggerDailyLossLimit ExitTrigger = "daily-loss-limit"
	TriggerBotStopped     ExitTrigger = "bot-stopped"
	TriggerUnknown        ExitTrigger = "unknown"
)

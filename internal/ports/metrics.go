package ports

import "time"

// Metrics receives decision-core events for observability.
type Metrics interface {
	ValidationDecided(level string, approved bool, latency time.Duration)
	ExitSignalled(trigger string)
	TrailingStopMoved(symbol string)
	EntryBlocked(reason string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ValidationDecided(string, bool, time.Duration) {}
func (NopMetrics) ExitSignalled(string)                          {}
func (NopMetrics) TrailingStopMoved(string)                      {}
func (NopMetrics) EntryBlocked(string)                           {}

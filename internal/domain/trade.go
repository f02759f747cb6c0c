package domain

import "time"

// Trade represents a completed round trip.
type Trade struct {
	ID         int64       // Unique identifier for the trade (usually from DB)
	Symbol     string      // Trading symbol (e.g., "ETHUSDT")
	Side       Side        // Direction of the closed position
	EntryPrice float64     // Price at which the position was entered
	ExitPrice  float64     // Price at which the position was exited
	Quantity   float64     // Size of the position traded
	Leverage   int         // Leverage used for the position
	PNL        float64     // Realized profit and loss
	EntryTime  time.Time   // Timestamp when the position was entered
	ExitTime   time.Time   // Timestamp when the position was exited
	Trigger    ExitTrigger // Why the position was closed
	Reason     string      // Free-text audit reason
}

package domain

import "time"

// MonitoredPosition is the single live position supervised by the position monitor.
type MonitoredPosition struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`

	StopLoss         float64 `json:"stop_loss"`
	TakeProfit       float64 `json:"take_profit"`
	OriginalStopLoss float64 `json:"original_stop_loss"` // Stop before any trailing adjustment

	TrailingEnabled   bool    `json:"trailing_enabled"`
	TrailingActivated bool    `json:"trailing_activated"`
	ATR               float64 `json:"atr"` // Volatility used for trailing distance

	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPNL    float64 `json:"unrealized_pnl"`
	UnrealizedPNLPct float64 `json:"unrealized_pnl_pct"`
	HighestPrice     float64 `json:"highest_price"` // Since entry, drives long trailing
	LowestPrice      float64 `json:"lowest_price"`  // Since entry, drives short trailing
}

// IsLong reports whether the position is long.
func (p *MonitoredPosition) IsLong() bool {
	return p.Side == Long
}

// PNLAt returns the absolute P&L if the position were closed at price.
func (p *MonitoredPosition) PNLAt(price float64) float64 {
	if p.IsLong() {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}

// ApplyPrice records a new market price, refreshing extremes and unrealized P&L.
func (p *MonitoredPosition) ApplyPrice(price float64) {
	p.CurrentPrice = price
	if p.HighestPrice == 0 || price > p.HighestPrice {
		p.HighestPrice = price
	}
	if p.LowestPrice == 0 || price < p.LowestPrice {
		p.LowestPrice = price
	}
	p.UnrealizedPNL = p.PNLAt(price)
	notional := p.EntryPrice * p.Quantity
	if notional > 0 {
		p.UnrealizedPNLPct = p.UnrealizedPNL / notional * 100
	} else {
		p.UnrealizedPNLPct = 0
	}
}

// PositionSnapshot is the restartable, serialized form of a MonitoredPosition.
type PositionSnapshot struct {
	Version  int               `json:"version"`
	SavedAt  time.Time         `json:"saved_at"`
	Position MonitoredPosition `json:"position"`
}

// ExitResult is the monitor's exit signal. The monitor never places orders itself.
type ExitResult struct {
	ShouldExit   bool        `json:"should_exit"`
	Trigger      ExitTrigger `json:"trigger"`
	TriggerPrice float64     `json:"trigger_price"`
	Reason       string      `json:"reason"`
}

// StopUpdate is emitted whenever the trailing stop ratchets.
type StopUpdate struct {
	Symbol  string
	OldStop float64
	NewStop float64
	Price   float64
	Time    time.Time
}

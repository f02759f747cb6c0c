package domain

// RiskState is the risk manager's configuration plus its per-UTC-day counters.
type RiskState struct {
	RiskPerTradePct  float64 `json:"risk_per_trade_pct"`
	MaxDailyLossPct  float64 `json:"max_daily_loss_pct"`
	MaxPositionSize  float64 `json:"max_position_size"`
	Leverage         int     `json:"leverage"`
	DailyRealizedPNL float64 `json:"daily_realized_pnl"`
	DailyTradeCount  int     `json:"daily_trade_count"`
	LastResetDate    string  `json:"last_reset_date"` // UTC calendar day, YYYY-MM-DD
}

package domain

import "time"

// Signal is a candidate trade proposed to the validation gate.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Timeframe  string    `json:"timeframe"`
	Reason     string    `json:"reason"`
	Time       time.Time `json:"time"`
}

// RewardRisk returns the reward-to-risk ratio, or 0 when the stop distance is degenerate.
func (s *Signal) RewardRisk() float64 {
	risk := s.EntryPrice - s.StopLoss
	reward := s.TakeProfit - s.EntryPrice
	if s.Side == Short {
		risk, reward = -risk, -reward
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

// IndicatorSnapshot holds the indicator readings shown to the validation backend.
type IndicatorSnapshot struct {
	ShortMA float64 `json:"short_ma"`
	LongMA  float64 `json:"long_ma"`
	EMA     float64 `json:"ema"`
	RSI     float64 `json:"rsi"`
	ATR     float64 `json:"atr"`
}

// MarketContext is the surrounding market state for a signal.
type MarketContext struct {
	Indicators IndicatorSnapshot
	Levels     []Level
	RecentBars []*Kline
	Balance    float64
	DailyPNL   float64
}

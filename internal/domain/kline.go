package domain

import "time"

// Kline represents a single OHLCV price bar.
// Bars are ordered by OpenTime and never mutated once produced.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
	IsFinal   bool      // Whether this kline is the final one for the interval
}

// Range returns High - Low.
func (k *Kline) Range() float64 {
	return k.High - k.Low
}

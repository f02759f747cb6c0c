package analytics

import (
	"math"
	"sort"
	"time"

	"riskCore/internal/domain"
)

// Summary aggregates a journal of closed trades.
type Summary struct {
	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	TotalPNL             float64
	AverageWin           float64
	AverageLoss          float64 // Negative or zero
	ProfitFactor         float64 // Gross profit over gross loss, 0 without losses
	Expectancy           float64
	MaxDrawdown          float64 // Fraction of the running peak balance
	FinalBalance         float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHoldTime      time.Duration
	ByTrigger            map[domain.ExitTrigger]TriggerStats
	Daily                []DailyPNL
}

// TriggerStats breaks the journal down by what closed the position.
type TriggerStats struct {
	Trades int
	PNL    float64
}

// DailyPNL is the realized result of one UTC day.
type DailyPNL struct {
	Day    time.Time
	PNL    float64
	Trades int
}

// Summarize walks trades in exit order starting from initialBalance.
// The input slice is not modified.
func Summarize(trades []*domain.Trade, initialBalance float64) *Summary {
	s := &Summary{
		FinalBalance: initialBalance,
		ByTrigger:    make(map[domain.ExitTrigger]TriggerStats),
	}
	if len(trades) == 0 {
		return s
	}

	ordered := make([]*domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	balance, peak := initialBalance, initialBalance
	var grossWin, grossLoss float64
	var wins, losses int
	var hold time.Duration
	days := make(map[time.Time]*DailyPNL)

	for _, t := range ordered {
		s.TotalTrades++
		s.TotalPNL += t.PNL
		hold += t.ExitTime.Sub(t.EntryTime)

		if t.PNL > 0 {
			s.WinningTrades++
			grossWin += t.PNL
			wins++
			losses = 0
		} else {
			s.LosingTrades++
			grossLoss += t.PNL
			losses++
			wins = 0
		}
		if wins > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = wins
		}
		if losses > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = losses
		}

		balance += t.PNL
		if balance > peak {
			peak = balance
		} else if peak > 0 {
			s.MaxDrawdown = math.Max(s.MaxDrawdown, (peak-balance)/peak)
		}

		trigger := t.Trigger
		if trigger == "" {
			trigger = domain.TriggerUnknown
		}
		ts := s.ByTrigger[trigger]
		ts.Trades++
		ts.PNL += t.PNL
		s.ByTrigger[trigger] = ts

		y, m, d := t.ExitTime.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if days[day] == nil {
			days[day] = &DailyPNL{Day: day}
		}
		days[day].PNL += t.PNL
		days[day].Trades++
	}

	s.FinalBalance = balance
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	if s.WinningTrades > 0 {
		s.AverageWin = grossWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = grossLoss / float64(s.LosingTrades)
	}
	if grossLoss < 0 {
		s.ProfitFactor = grossWin / -grossLoss
	}
	s.Expectancy = s.TotalPNL / float64(s.TotalTrades)
	s.AverageHoldTime = hold / time.Duration(s.TotalTrades)

	s.Daily = make([]DailyPNL, 0, len(days))
	for _, d := range days {
		s.Daily = append(s.Daily, *d)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Day.Before(s.Daily[j].Day) })
	return s
}

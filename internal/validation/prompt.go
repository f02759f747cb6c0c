package validation

import (
	"fmt"
	"strings"

	"riskCore/internal/domain"
	"riskCore/internal/levels"
)

const responseSchema = `Respond with a single JSON object and nothing else:
{"approved": true|false, "confidence": 0-100, "setup_type": "%s", "reasoning": "<one or two sentences>"}`

var setupChoices = strings.Join([]string{
	string(domain.SetupBreakout),
	string(domain.SetupBreakdown),
	string(domain.SetupPullback),
	string(domain.SetupReversal),
	string(domain.SetupRangeBounce),
	string(domain.SetupTrendContinuation),
	string(domain.SetupLevelRejection),
	string(domain.SetupNone),
}, "|")

// BuildQuickPrompt renders the compact quick-tier prompt.
func BuildQuickPrompt(sig *domain.Signal, mctx *domain.MarketContext) string {
	var b strings.Builder
	b.WriteString("You are a risk reviewer for a futures trading bot. Judge whether this trade signal should be taken.\n\n")
	writeSignal(&b, sig)
	writeIndicators(&b, mctx.Indicators)
	writeNearestLevels(&b, sig.EntryPrice, mctx.Levels)
	b.WriteString("\n")
	fmt.Fprintf(&b, responseSchema, setupChoices)
	return b.String()
}

// BuildDeepPrompt extends the quick prompt with every known level, account
// context and the last bars of price history.
func BuildDeepPrompt(sig *domain.Signal, mctx *domain.MarketContext, bars int) string {
	var b strings.Builder
	b.WriteString("You are a senior risk reviewer. A quick review of this trade signal was inconclusive. ")
	b.WriteString("Analyse the structure in detail before deciding.\n\n")
	writeSignal(&b, sig)
	writeIndicators(&b, mctx.Indicators)

	if len(mctx.Levels) > 0 {
		b.WriteString("Levels:\n")
		for _, lvl := range mctx.Levels {
			fmt.Fprintf(&b, "- %s %s %.4f-%.4f strength=%s touches=%d\n",
				lvl.Type, lvl.Method, lvl.PriceLow, lvl.PriceHigh, lvl.Strength, lvl.Touches)
		}
	}

	fmt.Fprintf(&b, "Account: balance=%.2f daily_pnl=%.2f\n", mctx.Balance, mctx.DailyPNL)

	recent := mctx.RecentBars
	if bars > 0 && len(recent) > bars {
		recent = recent[len(recent)-bars:]
	}
	if len(recent) > 0 {
		b.WriteString("Recent bars (open_time,open,high,low,close,volume):\n")
		for _, k := range recent {
			if k == nil {
				continue
			}
			fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%.2f\n",
				k.OpenTime.UTC().Format("2006-01-02T15:04"), k.Open, k.High, k.Low, k.Close, k.Volume)
		}
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, responseSchema, setupChoices)
	return b.String()
}

func writeSignal(b *strings.Builder, sig *domain.Signal) {
	fmt.Fprintf(b, "Signal: %s %s on %s\n", strings.ToUpper(string(sig.Side)), sig.Symbol, sig.Timeframe)
	fmt.Fprintf(b, "Entry=%.4f Stop=%.4f Target=%.4f R:R=%.2f\n", sig.EntryPrice, sig.StopLoss, sig.TakeProfit, sig.RewardRisk())
	if sig.Reason != "" {
		fmt.Fprintf(b, "Strategy reason: %s\n", sig.Reason)
	}
}

func writeIndicators(b *strings.Builder, ind domain.IndicatorSnapshot) {
	fmt.Fprintf(b, "Indicators: SMA_short=%.4f SMA_long=%.4f EMA=%.4f RSI=%.1f ATR=%.4f\n",
		ind.ShortMA, ind.LongMA, ind.EMA, ind.RSI, ind.ATR)
}

func writeNearestLevels(b *strings.Builder, price float64, lvls []domain.Level) {
	if res, ok := levels.Nearest(lvls, price, true); ok {
		fmt.Fprintf(b, "Nearest resistance: %.4f-%.4f (%s)\n", res.PriceLow, res.PriceHigh, res.Strength)
	}
	if sup, ok := levels.Nearest(lvls, price, false); ok {
		fmt.Fprintf(b, "Nearest support: %.4f-%.4f (%s)\n", sup.PriceLow, sup.PriceHigh, sup.Strength)
	}
}

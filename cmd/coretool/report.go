package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli"

	"riskCore/internal/adapters/sqlite"
	"riskCore/internal/analytics"
	"riskCore/internal/domain"
)

var reportCMD = cli.Command{
	Name:   "report",
	Usage:  "summarize the closed-trade journal",
	Action: reportAction,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "db", Value: "./data/risk_core.db", Usage: "SQLite database written by the service"},
		cli.StringFlag{Name: "symbol", Value: "ETHUSDT", Usage: "trading symbol"},
		cli.IntFlag{Name: "limit", Value: 1000, Usage: "most recent trades to include"},
		cli.Float64Flag{Name: "balance", Value: 10000, Usage: "starting balance for drawdown"},
	},
}

func reportAction(c *cli.Context) error {
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: c.String("db"), Logger: newLogger(c)})
	if err != nil {
		return err
	}
	defer repo.Close()

	symbol := strings.ToUpper(c.String("symbol"))
	trades, err := repo.FindBySymbol(context.Background(), symbol, c.Int("limit"))
	if err != nil {
		return err
	}
	return printSummary(os.Stdout, symbol, analytics.Summarize(trades, c.Float64("balance")))
}

func printSummary(w io.Writer, symbol string, s *analytics.Summary) error {
	if s.TotalTrades == 0 {
		_, err := fmt.Fprintf(w, "%s: no closed trades\n", symbol)
		return err
	}
	fmt.Fprintf(w, "%s: %d trades, win rate %.1f%%, PNL %s, final balance %s\n",
		symbol, s.TotalTrades, s.WinRate*100, price(s.TotalPNL), price(s.FinalBalance))
	fmt.Fprintf(w, "avg win %s, avg loss %s, profit factor %.2f, expectancy %s\n",
		price(s.AverageWin), price(s.AverageLoss), s.ProfitFactor, price(s.Expectancy))
	fmt.Fprintf(w, "max drawdown %.2f%%, streaks %d wins / %d losses, avg hold %s\n\n",
		s.MaxDrawdown*100, s.MaxConsecutiveWins, s.MaxConsecutiveLosses, s.AverageHoldTime)

	triggers := make([]domain.ExitTrigger, 0, len(s.ByTrigger))
	for t := range s.ByTrigger {
		triggers = append(triggers, t)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIGGER\tTRADES\tPNL")
	for _, t := range triggers {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t, s.ByTrigger[t].Trades, price(s.ByTrigger[t].PNL))
	}
	return tw.Flush()
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"riskCore/internal/adapters/binanceclient"
	"riskCore/internal/utils"
)

var fetchCMD = cli.Command{
	Name:   "fetch",
	Usage:  "download closed klines from Binance futures into a CSV file",
	Action: fetchAction,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "symbol", Value: "ETHUSDT", Usage: "trading symbol"},
		cli.StringFlag{Name: "interval", Value: "1h", Usage: "kline interval"},
		cli.IntFlag{Name: "days", Value: 30, Usage: "days of history to fetch"},
		cli.StringFlag{Name: "out", Usage: "output CSV path (default data/<symbol>_<interval>_<from>_to_<to>.csv)"},
		cli.BoolFlag{Name: "testnet", Usage: "use the futures testnet"},
	},
	Description: `Fetch historical bars for offline level detection and validation`,
}

func fetchAction(c *cli.Context) error {
	if c.Int("days") <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	appLogger := newLogger(c)
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     os.Getenv("BINANCE_API_KEY"),
		SecretKey:  os.Getenv("BINANCE_API_SECRET"),
		UseTestnet: c.Bool("testnet"),
		Logger:     appLogger,
	})
	if err != nil {
		return err
	}

	symbol := strings.ToUpper(c.String("symbol"))
	interval := c.String("interval")
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -c.Int("days"))

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol, interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	klines, err := client.GetKlinesRange(context.Background(), symbol, interval, start, end)
	if err != nil {
		return fmt.Errorf("fetch klines: %w", err)
	}

	out := c.String("out")
	if out == "" {
		out = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", symbol, interval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := utils.WriteKlinesToCSV(klines, out); err != nil {
		return err
	}
	fmt.Printf("Saved %d klines to %s\n", len(klines), out)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"riskCore/internal/domain"
	"riskCore/internal/levels"
	"riskCore/internal/utils"
)

var levelsCMD = cli.Command{
	Name:   "levels",
	Usage:  "detect support/resistance zones in a kline CSV",
	Action: levelsAction,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "csv", Usage: "kline CSV written by fetch"},
		cli.StringFlag{Name: "timeframe", Usage: "timeframe label (default: the bars' interval)"},
		cli.StringFlag{Name: "format", Value: "table", Usage: "table, json or yaml"},
		cli.IntFlag{Name: "lookback", Value: levels.DefaultConfig().Lookback, Usage: "bars on each side of a swing"},
	},
	Description: `Run swing, pivot, cluster and daily detection over the CSV bars`,
}

type levelReport struct {
	ATR    float64        `json:"atr" yaml:"atr"`
	Bars   int            `json:"bars" yaml:"bars"`
	Levels []domain.Level `json:"levels" yaml:"levels"`
}

func levelsAction(c *cli.Context) error {
	klines, err := loadBars(c.String("csv"))
	if err != nil {
		return err
	}

	cfg := levels.DefaultConfig()
	cfg.Lookback = c.Int("lookback")
	detector, err := levels.NewDetector(cfg, newLogger(c))
	if err != nil {
		return err
	}

	timeframe := c.String("timeframe")
	if timeframe == "" {
		timeframe = klines[0].Interval
	}
	lvls, atr := detector.DetectWithATR(context.Background(), klines, timeframe)
	return renderLevels(os.Stdout, levelReport{ATR: atr, Bars: len(klines), Levels: lvls}, c.String("format"))
}

func loadBars(path string) ([]*domain.Kline, error) {
	if path == "" {
		return nil, fmt.Errorf("--csv is required")
	}
	klines, err := utils.ReadKlinesFromCSV(path)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s has no bars", path)
	}
	return klines, nil
}

func renderLevels(w io.Writer, report levelReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		fmt.Fprintf(w, "%d levels from %d bars, ATR %s\n", len(report.Levels), report.Bars, price(report.ATR))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tLOW\tHIGH\tSTRENGTH\tMETHOD\tTOUCHES\tLABEL")
		for _, l := range report.Levels {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				l.Type, price(l.PriceLow), price(l.PriceHigh), l.Strength, l.Method, l.Touches, l.Label)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

// price renders a float with four decimals without binary noise.
func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"

	"riskCore/config"
	"riskCore/internal/adapters/llm"
	"riskCore/internal/domain"
	"riskCore/internal/levels"
	"riskCore/internal/strategy"
	"riskCore/internal/validation"
)

var validateCMD = cli.Command{
	Name:   "validate",
	Usage:  "run a hand-written signal through the validation gate",
	Action: validateAction,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "csv", Usage: "kline CSV used as market context"},
		cli.StringFlag{Name: "side", Value: "long", Usage: "long or short"},
		cli.Float64Flag{Name: "entry", Usage: "entry price (default: last close)"},
		cli.Float64Flag{Name: "stop", Usage: "stop-loss price"},
		cli.Float64Flag{Name: "target", Usage: "take-profit price"},
	},
	Description: `Uses the AI_* environment settings; prints the verdict as JSON`,
}

func validateAction(c *cli.Context) error {
	ctx := context.Background()
	appLogger := newLogger(c)

	side := domain.Side(strings.ToLower(c.String("side")))
	if !side.IsValid() {
		return fmt.Errorf("--side must be long or short")
	}
	klines, err := loadBars(c.String("csv"))
	if err != nil {
		return err
	}
	last := klines[len(klines)-1]
	sig := &domain.Signal{
		Symbol:     last.Symbol,
		Side:       side,
		EntryPrice: c.Float64("entry"),
		StopLoss:   c.Float64("stop"),
		TakeProfit: c.Float64("target"),
		Timeframe:  last.Interval,
		Reason:     "operator request",
		Time:       last.CloseTime,
	}
	if sig.EntryPrice <= 0 {
		sig.EntryPrice = last.Close
	}
	if sig.RewardRisk() <= 0 {
		return fmt.Errorf("--stop and --target must sit on opposite sides of the entry for a %s", side)
	}

	vcfg, err := config.LoadValidation()
	if err != nil {
		return err
	}
	gate, err := validation.New(vcfg, llm.NewFactory(appLogger), appLogger, nil)
	if err != nil {
		return err
	}

	detector, err := levels.NewDetector(levels.DefaultConfig(), appLogger)
	if err != nil {
		return err
	}
	lvls, atr := detector.DetectWithATR(ctx, klines, last.Interval)

	mctx := &domain.MarketContext{Levels: lvls, RecentBars: klines}
	strat, err := strategy.New(strategy.DefaultConfig(), appLogger)
	if err != nil {
		return err
	}
	if snap, err := strat.Snapshot(ctx, klines); err == nil {
		mctx.Indicators = snap
	}
	mctx.Indicators.ATR = atr

	verdict := gate.Validate(ctx, sig, mctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"

	"riskCore/internal/ports"
	"riskCore/internal/risk"
)

var sizeCMD = cli.Command{
	Name:   "size",
	Usage:  "compute a risk-based position size",
	Action: sizeAction,
	Flags: []cli.Flag{
		cli.Float64Flag{Name: "balance", Usage: "account balance in quote currency"},
		cli.Float64Flag{Name: "entry", Usage: "entry price"},
		cli.Float64Flag{Name: "stop", Usage: "stop-loss price"},
		cli.Float64Flag{Name: "risk", Value: risk.DefaultConfig().RiskPerTradePct, Usage: "percent of balance at risk"},
		cli.Float64Flag{Name: "min", Value: risk.DefaultConfig().MinPositionSize, Usage: "minimum position size"},
		cli.Float64Flag{Name: "max", Value: risk.DefaultConfig().MaxPositionSize, Usage: "maximum position size, 0 for none"},
		cli.IntFlag{Name: "precision", Value: int(risk.DefaultConfig().LotPrecision), Usage: "lot decimal places"},
		cli.IntFlag{Name: "leverage", Value: 1, Usage: "leverage used for the margin estimate"},
	},
	Description: `Size = balance * risk% / |entry - stop|, clamped and rounded to the lot precision`,
}

type sizeResult struct {
	Quantity  decimal.Decimal
	Notional  decimal.Decimal
	RiskValue decimal.Decimal
	Margin    decimal.Decimal
}

func sizeAction(c *cli.Context) error {
	if c.Float64("balance") <= 0 || c.Float64("entry") <= 0 {
		return fmt.Errorf("--balance and --entry must be positive")
	}
	cfg := risk.DefaultConfig()
	cfg.RiskPerTradePct = c.Float64("risk")
	cfg.MinPositionSize = c.Float64("min")
	cfg.MaxPositionSize = c.Float64("max")
	cfg.LotPrecision = int32(c.Int("precision"))
	cfg.Leverage = c.Int("leverage")

	res, err := computeSize(cfg, c.Float64("balance"), c.Float64("entry"), c.Float64("stop"))
	if err != nil {
		return err
	}
	return printSize(os.Stdout, res, cfg.LotPrecision)
}

func computeSize(cfg risk.Config, balance, entry, stop float64) (sizeResult, error) {
	manager, err := risk.NewManager(cfg, ports.NopLogger{})
	if err != nil {
		return sizeResult{}, err
	}
	qty := decimal.NewFromFloat(manager.CalculatePositionSize(balance, entry, stop, cfg.RiskPerTradePct))
	entryD := decimal.NewFromFloat(entry)
	notional := qty.Mul(entryD)
	return sizeResult{
		Quantity:  qty,
		Notional:  notional,
		RiskValue: qty.Mul(entryD.Sub(decimal.NewFromFloat(stop)).Abs()),
		Margin:    notional.Div(decimal.NewFromInt(int64(manager.Leverage()))),
	}, nil
}

func printSize(w io.Writer, r sizeResult, precision int32) error {
	_, err := fmt.Fprintf(w, "quantity: %s\nnotional: %s\nrisk:     %s\nmargin:   %s\n",
		r.Quantity.StringFixed(precision), r.Notional.StringFixed(2), r.RiskValue.StringFixed(2), r.Margin.StringFixed(2))
	return err
}

// Command coretool exposes the decision core to operators: fetch bars, inspect
// detected levels, size a trade and run a signal through the validation gate.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"riskCore/internal/adapters/logger"
	"riskCore/internal/ports"
)

func main() {
	app := cli.NewApp()
	app.Name = "coretool"
	app.Usage = "Signal-to-risk decision core utilities"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
	}

	app.Commands = []cli.Command{
		fetchCMD,
		levelsCMD,
		sizeCMD,
		reportCMD,
		validateCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) ports.Logger {
	return logger.NewStdLogger(logger.ParseLevel(c.GlobalString("log-level")))
}

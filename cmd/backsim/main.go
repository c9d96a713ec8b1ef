package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/thrasher-corp/backsim/breaker"
	"github.com/thrasher-corp/backsim/config"
	"github.com/thrasher-corp/backsim/data"
	"github.com/thrasher-corp/backsim/data/csv"
	"github.com/thrasher-corp/backsim/engine"
	"github.com/thrasher-corp/backsim/report"
	"github.com/thrasher-corp/backsim/statistics"
	"github.com/thrasher-corp/backsim/strategies"
)

var defaultBreakerStore = "breakers.json"

func main() {
	app := &cli.App{
		Name:  "backsim",
		Usage: "strategy backtesting simulator with a circuit breaker risk governor",
		Commands: []*cli.Command{
			runCommand,
			breakerCommand,
			strategiesCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "run a backtest from a config file over csv bar data",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a backtest config json file, defaults apply when omitted",
		},
		&cli.StringSliceFlag{
			Name:     "data",
			Usage:    "symbol=path csv data source, repeatable for multi symbol runs",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "path to write the json report to",
		},
		&cli.StringFlag{
			Name:  "breaker-store",
			Usage: "path to the circuit breaker state file",
			Value: defaultBreakerStore,
		},
	},
	Action: runBacktest,
}

func runBacktest(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.ReadConfigFromFile(path)
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	feed := data.NewFeed()
	for _, source := range c.StringSlice("data") {
		symbol, path, found := strings.Cut(source, "=")
		if !found {
			return fmt.Errorf("data source %q not in symbol=path form", source)
		}
		bars, err := csv.LoadBars(path, symbol)
		if err != nil {
			return err
		}
		if err = feed.Load(symbol, bars); err != nil {
			return err
		}
	}
	feed.Preprocess(cfg.OutlierK)
	feed.Align()

	registry := strategies.NewRegistry()
	handlers := make([]strategies.Handler, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		h, err := registry.Create(name)
		if err != nil {
			return err
		}
		handlers = append(handlers, h)
	}

	governor := breaker.New(breaker.NewFileStore(c.String("breaker-store")))
	eng, err := engine.New(cfg, feed, handlers, governor)
	if err != nil {
		return err
	}
	result, err := eng.Run()
	if err != nil {
		return err
	}
	statistics.PrintResults(result.Metrics)
	if output := c.String("output"); output != "" {
		return report.Write(result, output)
	}
	return nil
}

var breakerCommand = &cli.Command{
	Name:  "breaker",
	Usage: "inspect and control the circuit breaker governor",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "path to the circuit breaker state file",
			Value: defaultBreakerStore,
		},
	},
	Subcommands: []*cli.Command{
		{
			Name:   "status",
			Usage:  "list active breaker records",
			Action: breakerStatus,
		},
		{
			Name:  "trip",
			Usage: "trip a breaker",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Required: true},
				&cli.StringFlag{Name: "reason", Required: true},
				&cli.StringFlag{Name: "scope"},
				&cli.IntFlag{Name: "reset-after", Usage: "auto reset delay in minutes, 0 disables"},
			},
			Action: breakerTrip,
		},
		{
			Name:  "reset",
			Usage: "manually ease a breaker one step",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Required: true},
				&cli.StringFlag{Name: "scope"},
			},
			Action: breakerReset,
		},
	},
}

func openGovernor(c *cli.Context) *breaker.CircuitBreaker {
	return breaker.New(breaker.NewFileStore(c.String("store")))
}

func breakerStatus(c *cli.Context) error {
	records := openGovernor(c).Records()
	if len(records) == 0 {
		fmt.Println("no active breakers, trading fully allowed")
		return nil
	}
	for k, rec := range records {
		line := fmt.Sprintf("%v\tstatus=%v\treason=%q\ttripped=%v", k, rec.Status, rec.Reason, rec.TrippedAt.Format(time.RFC3339))
		if rec.AutoResetAt != nil {
			line += "\tauto_reset=" + rec.AutoResetAt.Format(time.RFC3339)
		}
		fmt.Println(line)
	}
	return nil
}

func breakerTrip(c *cli.Context) error {
	governor := openGovernor(c)
	governor.Trip(
		breaker.Type(strings.ToUpper(c.String("type"))),
		c.String("reason"),
		c.String("scope"),
		time.Duration(c.Int("reset-after"))*time.Minute,
		breaker.Open)
	return nil
}

func breakerReset(c *cli.Context) error {
	governor := openGovernor(c)
	governor.Reset(breaker.Type(strings.ToUpper(c.String("type"))), c.String("scope"))
	return nil
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list registered strategies",
	Action: func(*cli.Context) error {
		for _, name := range strategies.NewRegistry().List() {
			fmt.Println(name)
		}
		return nil
	},
}

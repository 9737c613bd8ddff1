// Command backtest is the single-process entrypoint: it loads a YAML
// run configuration, replays a bar CSV through the backtesting
// dispatcher against the Exchange Façade and matching engine, drives
// the sample RSI strategy off it, and prints an end-of-run report.
// Grounded on cmd/gctcli's urfave/cli/v2 app-plus-flags idiom, trimmed
// from a gRPC-client command tree (gctcli dials a running daemon) down
// to a single Action, since this module has no daemon/RPC layer to
// dial — spec.md's scope is the in-process dispatcher itself.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/quantforge/barstream/internal/balance"
	"github.com/quantforge/barstream/internal/bar"
	"github.com/quantforge/barstream/internal/config"
	"github.com/quantforge/barstream/internal/dispatcher"
	"github.com/quantforge/barstream/internal/exchange"
	"github.com/quantforge/barstream/internal/lending"
	"github.com/quantforge/barstream/internal/log"
	"github.com/quantforge/barstream/internal/matching"
	"github.com/quantforge/barstream/internal/report"
	"github.com/quantforge/barstream/internal/source"
	"github.com/quantforge/barstream/strategy/rsi"
)

func main() {
	app := cli.NewApp()
	app.Name = "backtest"
	app.Usage = "replay a bar CSV through the backtesting dispatcher and print a run report"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "path to the YAML run configuration",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "bars",
			Aliases:  []string{"b"},
			Usage:    "path to the bar CSV file to replay",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "amount",
			Value: "0.01",
			Usage: "units of the base symbol the sample strategy trades per signal",
		},
		&cli.IntFlag{
			Name:  "rsi-period",
			Value: 14,
			Usage: "trailing window size for the sample RSI strategy",
		},
		&cli.StringFlag{
			Name:  "rsi-low",
			Value: "30",
			Usage: "RSI oversold threshold that triggers a buy",
		},
		&cli.StringFlag{
			Name:  "rsi-high",
			Value: "70",
			Usage: "RSI overbought threshold that triggers a sell",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("backtest: invalid config: %w", err)
	}

	barFile, err := os.Open(c.String("bars"))
	if err != nil {
		return fmt.Errorf("backtest: opening bar file: %w", err)
	}
	defer barFile.Close()

	pair := cfg.Pair()
	barSource, err := source.NewCSVBarSource(barFile, pair, cfg.BarPeriod, 1)
	if err != nil {
		return fmt.Errorf("backtest: loading bars: %w", err)
	}

	ledger := balance.New()
	for symbol, amount := range cfg.InitialFunds {
		funds, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("backtest: initial-funds[%s]: %w", symbol, err)
		}
		ledger.Deposit(symbol, funds)
	}

	feeSchedule, err := cfg.Fees.Schedule()
	if err != nil {
		return fmt.Errorf("backtest: fee schedule: %w", err)
	}

	manager := matching.NewManager(ledger, feeSchedule, cfg.Liquidity.Model())
	manager.RegisterPair(pair, cfg.Precision())

	disp := dispatcher.NewBacktesting()
	disp.SetStrict(cfg.StrictHandlerErrors)
	disp.RegisterSource(barSource)

	facade := exchange.NewBacktesting(disp, manager, ledger)

	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return fmt.Errorf("backtest: amount: %w", err)
	}
	low, err := decimal.NewFromString(c.String("rsi-low"))
	if err != nil {
		return fmt.Errorf("backtest: rsi-low: %w", err)
	}
	high, err := decimal.NewFromString(c.String("rsi-high"))
	if err != nil {
		return fmt.Errorf("backtest: rsi-high: %w", err)
	}

	strategy := rsi.New(facade, pair, amount, c.Int("rsi-period"), low, high)
	if err := facade.SubscribeToBarEvents(pair, cfg.BarPeriod, strategy.OnBar); err != nil {
		return fmt.Errorf("backtest: subscribing strategy: %w", err)
	}

	runID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("backtest: generating run id: %w", err)
	}
	stats := report.New(fmt.Sprintf("rsi(%d,%s,%s)", c.Int("rsi-period"), low, high), runID.String())
	if err := facade.SubscribeToFills(pair, func(_ context.Context, f matching.Fill) error {
		stats.Record(f.When, f)
		return nil
	}); err != nil {
		return fmt.Errorf("backtest: subscribing report to fills: %w", err)
	}
	if err := facade.SubscribeToBarEvents(pair, cfg.BarPeriod, func(_ context.Context, b bar.Bar) error {
		base, quote := ledger.Get(cfg.Base), ledger.Get(cfg.Quote)
		equity := quote.Equity().Add(base.Equity().Mul(b.Close))
		stats.Snapshot(pair, equity)
		return nil
	}); err != nil {
		return fmt.Errorf("backtest: subscribing report to bars: %w", err)
	}

	var lendingPool *lending.Pool
	if cfg.MarginEnabled {
		lendingPool = lending.New(ledger)
		manager.EnableMargin(lendingPool, decimal.NewFromFloat(cfg.MarginInterestRate))

		firstBar, ok := barSource.PeekWhen()
		if !ok {
			return fmt.Errorf("backtest: margin enabled but bar source is empty")
		}
		if err := lendingPool.ScheduleAccrual(disp.Schedule, firstBar.Add(cfg.MarginAccrualInterval), cfg.MarginAccrualInterval); err != nil {
			return fmt.Errorf("backtest: scheduling margin accrual: %w", err)
		}
	}

	log.Infof(log.Exchange, "backtest: starting run over %s at %s bars", pair, cfg.BarPeriod)
	if err := disp.Run(c.Context); err != nil {
		return fmt.Errorf("backtest: run failed: %w", err)
	}

	stats.Fprint(os.Stdout, lendingPool)
	return nil
}

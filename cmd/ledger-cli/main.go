package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/currency"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "ledger-cli", Output: os.Stderr})

	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "ledger-cli",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	rates, err := currency.NewStaticRates(cfg.Ledger.AltCurrency, cfg.Currency.Rates)
	requireResource(ctx, logg, "currency rates", err)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository:        ledger.NewRepository(dbClient.DB()),
		DB:                dbClient,
		Converter:         rates,
		Logger:            logg,
		SettlementAddress: cfg.Ledger.SettlementAddress,
		AltCurrency:       cfg.Ledger.AltCurrency,
	})
	requireResource(ctx, logg, "ledger service", err)

	votesSvc, err := votes.NewService(votes.ServiceParams{
		Repository:     votes.NewRepository(dbClient.DB()),
		DB:             dbClient,
		Ledger:         ledgerSvc,
		Fees:           ledger.NewFeeSplitter(cfg.Ledger.FeePercent),
		TestingCohorts: cfg.Ledger.TestingCohorts,
		FreezeAgeDays:  cfg.Freeze.AgeDays,
		PollInterval:   cfg.Freeze.PollInterval,
		WaitTimeout:    cfg.Freeze.Timeout,
		Logger:         logg,
	})
	requireResource(ctx, logg, "votes service", err)

	balancesSvc, err := balances.NewService(balances.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "balances service", err)

	reporter, err := reports.NewReporter(reports.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "reporter", err)

	cli := &app{
		balances: balancesSvc,
		reports:  reporter,
		ledger:   ledgerSvc,
		votes:    votesSvc,
		out:      os.Stdout,
	}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
			os.Exit(2)
		}
		logg.Error(ctx, "command failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

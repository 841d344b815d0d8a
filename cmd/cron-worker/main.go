package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/payoutledger/api/routes"
	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/cron"
	"github.com/angelmondragon/payoutledger/internal/currency"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/metrics"
	"github.com/angelmondragon/payoutledger/pkg/migrate"
	"github.com/angelmondragon/payoutledger/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.String("once", "", "run the named job once and exit (surveyor-freeze|ads-payout-report)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redis.LockKey(cfg.App.Env, "cron"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if *once != "" {
		if err := service.RunOnce(ctx, *once); err != nil {
			logg.Error(ctx, "cron job failed", err)
			os.Exit(1)
		}
		return
	}

	server := &http.Server{
		Addr: cfg.Ops.Addr,
		Handler: routes.NewRouter(routes.Params{
			Config: cfg,
			Logger: logg,
			Checks: map[string]db.Pinger{"db": dbClient, "redis": redisClient},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logg.Info(ctx, "starting cron worker")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	rates, err := currency.NewStaticRates(cfg.Ledger.AltCurrency, cfg.Currency.Rates)
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository:        ledger.NewRepository(dbClient.DB()),
		DB:                dbClient,
		Converter:         rates,
		Logger:            logg,
		SettlementAddress: cfg.Ledger.SettlementAddress,
		AltCurrency:       cfg.Ledger.AltCurrency,
	})
	if err != nil {
		return nil, err
	}
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
	if err != nil {
		return nil, err
	}
	reporter, err := reports.NewReporter(reports.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()

	freezeJob, err := cron.NewSurveyorFreezeJob(cron.SurveyorFreezeJobParams{
		Logger:   logg,
		Votes:    votesSvc,
		Reporter: reporter,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterSchedule(freezeJob, cfg.Freeze.Schedule); err != nil {
		return nil, err
	}

	if cfg.Cron.AdsPayoutEnabled {
		adsJob, err := cron.NewAdsPayoutReportJob(cron.AdsPayoutReportJobParams{
			Logger:     logg,
			DB:         dbClient,
			Repository: balances.NewPayoutReportRepository(dbClient.DB()),
		})
		if err != nil {
			return nil, err
		}
		if err := registry.RegisterSchedule(adsJob, cfg.Cron.AdsPayoutSchedule); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

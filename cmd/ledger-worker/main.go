package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payoutledger/api/routes"
	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/currency"
	"github.com/angelmondragon/payoutledger/internal/eligibility"
	"github.com/angelmondragon/payoutledger/internal/ingest/handlers"
	"github.com/angelmondragon/payoutledger/internal/ingest/payloads"
	"github.com/angelmondragon/payoutledger/internal/ingest/router"
	"github.com/angelmondragon/payoutledger/internal/ingest/worker"
	"github.com/angelmondragon/payoutledger/internal/ledger"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/internal/votes"
	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/enums"
	"github.com/angelmondragon/payoutledger/pkg/instance"
	"github.com/angelmondragon/payoutledger/pkg/kafka"
	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/metrics"
	"github.com/angelmondragon/payoutledger/pkg/migrate"
	"github.com/angelmondragon/payoutledger/pkg/pubsub"
	"github.com/angelmondragon/payoutledger/pkg/redis"
)

const serviceName = "ledger-worker"

func main() {
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
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	checks := map[string]db.Pinger{"db": dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		requireResource(logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		checks["redis"] = redisClient
	}

	rates, err := currency.NewStaticRates(cfg.Ledger.AltCurrency, cfg.Currency.Rates)
	requireResource(logg, "currency rates", err)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository:        ledger.NewRepository(dbClient.DB()),
		DB:                dbClient,
		Converter:         rates,
		Logger:            logg,
		SettlementAddress: cfg.Ledger.SettlementAddress,
		AltCurrency:       cfg.Ledger.AltCurrency,
	})
	requireResource(logg, "ledger service", err)

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
	requireResource(logg, "votes service", err)

	reporter, err := reports.NewReporter(reports.NewRepository(dbClient.DB()), logg)
	requireResource(logg, "reporter", err)

	balancesSvc, err := balances.NewService(balances.NewRepository(dbClient.DB()))
	requireResource(logg, "balances service", err)

	checker := eligibilityChecker(cfg, logg, redisClient)

	topics := cfg.Broker.Topics(cfg.App.Env)
	topicRouter, err := buildRouter(topics, ledgerSvc, votesSvc, checker, reporter, cfg, logg)
	requireResource(logg, "router", err)

	decoder, err := payloads.NewDefaultRegistry()
	requireResource(logg, "payload registry", err)

	consumerMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	sources, closeTransport, err := buildSources(ctx, cfg, topics, logg, checks)
	requireResource(logg, "broker", err)
	defer closeTransport()

	consumers := make([]consumer, 0, len(sources))
	for _, source := range sources {
		c, err := worker.NewConsumer(worker.ConsumerParams{
			Source:   source,
			Router:   topicRouter,
			Decoder:  decoder,
			DB:       dbClient,
			Reporter: reporter,
			Metrics:  consumerMetrics,
			Logger:   logg,
		})
		requireResource(logg, "consumer "+source.Topic(), err)
		consumers = append(consumers, c)
	}

	server := &http.Server{
		Addr: cfg.Ops.Addr,
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			Checks:   checks,
			Balances: balancesSvc,
			Reports:  reporter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	service, err := NewService(ServiceParams{
		Logger:    logg,
		Consumers: consumers,
		Server:    server,
	})
	requireResource(logg, "ledger worker", err)

	logg.Info(ctx, "starting ledger worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "ledger worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "ledger worker shutting down gracefully")
}

func eligibilityChecker(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) eligibility.Checker {
	if !cfg.Eligibility.Enabled {
		return eligibility.AlwaysEligible{}
	}
	opts := []eligibility.Option{
		eligibility.WithToken(cfg.Eligibility.Token),
		eligibility.WithLogger(logg),
	}
	if redisClient != nil {
		opts = append(opts, eligibility.WithCache(redisClient, cfg.Eligibility.CacheTTL))
	}
	client, err := eligibility.NewClient(cfg.Eligibility.BaseURL, cfg.Eligibility.Timeout, opts...)
	requireResource(logg, "eligibility client", err)
	return client
}

func buildRouter(
	topics config.TopicNames,
	ledgerSvc ledger.Service,
	votesSvc votes.Service,
	checker eligibility.Checker,
	reporter reports.Reporter,
	cfg *config.Config,
	logg *logger.Logger,
) (*router.Router, error) {
	ledgerParams := handlers.LedgerParams{Ledger: ledgerSvc, Logger: logg}
	tallyParams := handlers.TallyParams{
		Votes:        votesSvc,
		Eligibility:  checker,
		Reporter:     reporter,
		Logger:       logg,
		DefaultPrice: cfg.Ledger.DefaultVotePrice,
	}

	vote, err := handlers.NewVoteHandler(tallyParams)
	if err != nil {
		return nil, err
	}
	suggestion, err := handlers.NewSuggestionHandler(tallyParams)
	if err != nil {
		return nil, err
	}
	settlement, err := handlers.NewSettlementHandler(ledgerParams)
	if err != nil {
		return nil, err
	}
	referral, err := handlers.NewReferralHandler(ledgerParams)
	if err != nil {
		return nil, err
	}
	ad, err := handlers.NewAdPayoutHandler(ledgerParams)
	if err != nil {
		return nil, err
	}

	return router.New(map[string]router.Route{
		topics.Vote:       {Kind: enums.EventKindVote, Handler: vote},
		topics.Suggestion: {Kind: enums.EventKindSuggestion, Handler: suggestion},
		topics.Settlement: {Kind: enums.EventKindSettlement, Handler: settlement},
		topics.Referral:   {Kind: enums.EventKindReferral, Handler: referral},
		topics.AdPayout:   {Kind: enums.EventKindAdPayout, Handler: ad},
	})
}

// buildSources opens one source per topic on the configured broker.
func buildSources(ctx context.Context, cfg *config.Config, topics config.TopicNames, logg *logger.Logger, checks map[string]db.Pinger) ([]worker.Source, func(), error) {
	byKind := map[enums.EventKind]string{
		enums.EventKindVote:       topics.Vote,
		enums.EventKindSuggestion: topics.Suggestion,
		enums.EventKindSettlement: topics.Settlement,
		enums.EventKindReferral:   topics.Referral,
		enums.EventKindAdPayout:   topics.AdPayout,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Broker.Kind)) {
	case config.BrokerPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, nil, err
		}
		checks["pubsub"] = client
		closeFn := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}
		sources := make([]worker.Source, 0, len(byKind))
		for _, kind := range enums.EventKinds() {
			sub := client.SubscriptionFor(kind)
			if sub == nil {
				closeFn()
				return nil, nil, fmt.Errorf("no pubsub subscription configured for %s", kind)
			}
			source, err := worker.NewPubSubSource(byKind[kind], sub)
			if err != nil {
				closeFn()
				return nil, nil, err
			}
			sources = append(sources, source)
		}
		return sources, closeFn, nil

	default:
		client, err := kafka.NewClient(ctx, cfg.Broker, cfg.Broker.GroupID(cfg.App.Env), instance.GetID(), logg)
		if err != nil {
			return nil, nil, err
		}
		checks["kafka"] = client
		sources := make([]worker.Source, 0, len(byKind))
		for _, kind := range enums.EventKinds() {
			topic := byKind[kind]
			source, err := worker.NewKafkaSource(topic, func() worker.KafkaReader {
				return client.Reader(topic)
			}, cfg.Broker.BatchSize, cfg.Broker.BatchWait)
			if err != nil {
				return nil, nil, err
			}
			sources = append(sources, source)
		}
		return sources, func() {}, nil
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "resource not working: "+resource, err)
	os.Exit(1)
}

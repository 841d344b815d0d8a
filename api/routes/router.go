package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/payoutledger/api/controllers"
	"github.com/angelmondragon/payoutledger/api/middleware"
	"github.com/angelmondragon/payoutledger/internal/balances"
	"github.com/angelmondragon/payoutledger/internal/reports"
	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

// Params wires the ops router. Balances and Reports are optional; their
// routes are mounted only when set.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Checks   map[string]db.Pinger
	Gatherer prometheus.Gatherer
	Balances balances.Service
	Reports  reports.Reporter
}

func NewRouter(params Params) http.Handler {
	logg := params.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, logg, params.Checks))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if params.Balances != nil {
			r.Get("/accounts/balances", controllers.AccountBalances(params.Balances, logg))
			r.Get("/accounts/top", controllers.TopBalances(params.Balances, logg))
			r.Get("/accounts/earnings/{type}/total", controllers.EarningsTotals(params.Balances, logg))
			r.Get("/accounts/settlements/{type}/total", controllers.PaidTotals(params.Balances, logg))
			r.Get("/accounts/{account}/transactions", controllers.AccountTransactions(params.Balances, logg))
		}
		if params.Reports != nil {
			r.Get("/reports", controllers.FailureReports(params.Reports, logg))
		}
	})

	return r
}

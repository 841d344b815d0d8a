package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/payoutledger/api/responses"
	"github.com/angelmondragon/payoutledger/pkg/config"
	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/logger"
)

const readinessTimeout = 3 * time.Second

const envHeader = "X-Ledger-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails when any of them is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]db.Pinger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failed []string
		for _, name := range names {
			pinger := checks[name]
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				status[name] = err.Error()
				failed = append(failed, name)
				continue
			}
			status[name] = "ok"
		}

		if len(failed) > 0 {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "failed_checks", failed), "readiness check failed")
			}
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"checks": status,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/collectcart/groupbuy-backend/api/responses"
	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GroupBuy-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores so orchestrators only route traffic
// once the API can actually serve it.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-GroupBuy-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["db"] = pingStatus(ctx, logg, "db", func(ctx context.Context) error {
			if dbP == nil {
				return nil
			}
			return dbP.Ping(ctx)
		}, &healthy)

		checks["redis"] = pingStatus(ctx, logg, "redis", func(ctx context.Context) error {
			if redisP == nil {
				return nil
			}
			return redisP.Ping(ctx)
		}, &healthy)

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": checks,
			})
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}

func pingStatus(ctx context.Context, logg *logger.Logger, name string, ping func(context.Context) error, healthy *bool) string {
	if err := ping(ctx); err != nil {
		*healthy = false
		if logg != nil {
			logg.Error(logg.WithField(ctx, "dependency", name), "health.check_failed", err)
		}
		return "down"
	}
	return "ok"
}

package controllers

import (
	"context"
	"net/http"

	"github.com/fairwaygames/clubhouse-backend/api/responses"
	"github.com/fairwaygames/clubhouse-backend/pkg/config"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clubhouse-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails when a backing store is unreachable so the load balancer
// stops routing to this instance.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clubhouse-Env", cfg.App.Env)
		checks := map[string]pinger{"db": db, "redis": cache}
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInternal, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

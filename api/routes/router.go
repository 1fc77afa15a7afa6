package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairwaygames/clubhouse-backend/api/controllers"
	"github.com/fairwaygames/clubhouse-backend/api/middleware"
	"github.com/fairwaygames/clubhouse-backend/internal/discovery"
	"github.com/fairwaygames/clubhouse-backend/internal/entries"
	"github.com/fairwaygames/clubhouse-backend/internal/ingestion"
	"github.com/fairwaygames/clubhouse-backend/internal/lifecycle"
	"github.com/fairwaygames/clubhouse-backend/internal/settlement"
	"github.com/fairwaygames/clubhouse-backend/pkg/config"
	"github.com/fairwaygames/clubhouse-backend/pkg/db"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
	"github.com/fairwaygames/clubhouse-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      redis.Pinger
	Metrics    prometheus.Gatherer
	Discovery  discovery.Service
	Ingestion  ingestion.Service
	Lifecycle  lifecycle.Service
	Settlement settlement.Engine
	Entries    entries.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/discovery/tournaments", controllers.DiscoverTournament(params.Discovery, logg))
		r.Get("/discovery/tournaments", controllers.LookupTournament(params.Discovery, logg))

		r.Route("/contests/{id}", func(r chi.Router) {
			r.Post("/poll", controllers.PollContest(params.Ingestion, logg))
			r.Post("/settle", controllers.SettleContest(params.Settlement, logg))
			r.Post("/entries", controllers.JoinContest(params.Entries, logg))
			r.Get("/standings", controllers.ContestStandings(params.Settlement, logg))
			r.Get("/events", controllers.ContestEvents(params.Ingestion, logg))
			r.Get("/transitions", controllers.ContestTransitions(params.Lifecycle, logg))
		})

		r.Get("/users/{userID}/contests", controllers.JoinedContests(params.Entries, logg))
	})

	return r
}

package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fairwaygames/clubhouse-backend/api/responses"
	"github.com/fairwaygames/clubhouse-backend/api/validators"
	"github.com/fairwaygames/clubhouse-backend/internal/discovery"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

// DiscoverTournament accepts a normalized provider tournament descriptor and
// runs it through the discovery service.
func DiscoverTournament(svc discovery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input discovery.TournamentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DiscoverTournament(r.Context(), input, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, result.StatusCode, result)
	}
}

// LookupTournament returns the system template a discovery run produced for a
// provider tournament and season.
func LookupTournament(svc discovery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := r.URL.Query().Get("provider_tournament_id")
		season, err := strconv.Atoi(r.URL.Query().Get("season_year"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid season year"))
			return
		}

		template, err := svc.TournamentTemplate(r.Context(), providerID, season)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, template)
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fairwaygames/clubhouse-backend/api/responses"
	"github.com/fairwaygames/clubhouse-backend/api/validators"
	"github.com/fairwaygames/clubhouse-backend/internal/entries"
	"github.com/fairwaygames/clubhouse-backend/internal/ingestion"
	"github.com/fairwaygames/clubhouse-backend/internal/lifecycle"
	"github.com/fairwaygames/clubhouse-backend/internal/settlement"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

func contestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contest id")
	}
	return id, nil
}

// PollRequest optionally carries pre-fetched work units; an empty body runs
// the self-fetching cycle instead.
type PollRequest struct {
	WorkUnits []ingestion.WorkUnit `json:"work_units"`
}

// PollContest runs one ingestion cycle for a contest.
func PollContest(svc ingestion.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req PollRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.PollAndIngest(r.Context(), id, req.WorkUnits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SettleRequest binds a settlement run to one leaderboard snapshot.
type SettleRequest struct {
	SnapshotID   uuid.UUID `json:"snapshot_id" validate:"required"`
	SnapshotHash string    `json:"snapshot_hash" validate:"required"`
}

// SettleContest executes settlement for a contest against a snapshot binding.
func SettleContest(engine settlement.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req SettleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audit, err := engine.ExecuteSettlement(r.Context(), id, req.SnapshotID, req.SnapshotHash)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, audit)
	}
}

// ContestStandings returns the current ranking for a contest.
func ContestStandings(engine settlement.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		standings, err := engine.Standings(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, standings)
	}
}

// ContestEvents returns the valid ingestion events for a contest in replay
// order, the audit view of what settlement will apply.
func ContestEvents(svc ingestion.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ReplayEvents(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

// ContestTransitions returns a contest's state transition history.
func ContestTransitions(svc lifecycle.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.History(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// JoinRequest enters a user into a contest.
type JoinRequest struct {
	UserID           uuid.UUID `json:"user_id" validate:"required"`
	PaymentConfirmed bool      `json:"payment_confirmed"`
}

// JoinContest creates a contest entry for a user.
func JoinContest(svc entries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := contestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req JoinRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Join(r.Context(), entries.JoinInput{
			ContestInstanceID: id,
			UserID:            req.UserID,
			PaymentConfirmed:  req.PaymentConfirmed,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// JoinedContests lists the contests a user has entered.
func JoinedContests(svc entries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		ids, err := svc.JoinedContests(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ids)
	}
}

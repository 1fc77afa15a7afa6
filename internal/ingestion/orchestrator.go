package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/canonicaljson"
	"github.com/fairwaygames/clubhouse-backend/pkg/db"
	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
	"github.com/fairwaygames/clubhouse-backend/pkg/metrics"
	"github.com/fairwaygames/clubhouse-backend/pkg/provider"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Summary counts what a poll cycle did with its work units.
type Summary struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// PollResult is the outcome of one poll cycle. EventID is the provider event
// the cycle resolved, nil when selection produced no candidate.
type PollResult struct {
	Success bool    `json:"success"`
	EventID *string `json:"event_id"`
	Summary Summary `json:"summary"`
}

// Service runs one stateless poll cycle per call. Self-fetching mode resolves
// the provider event and fetches the leaderboard itself; supplied-data mode
// only validates and stores pre-fetched work units.
type Service interface {
	PollAndIngest(ctx context.Context, contestID uuid.UUID, workUnits []WorkUnit) (PollResult, error)
	ReplayEvents(ctx context.Context, contestID uuid.UUID) ([]models.IngestionEvent, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	provider provider.API
	logg     *logger.Logger
	metrics  *metrics.IngestionMetrics
	leagueID string
	now      func() time.Time
}

// ServiceParams configure the ingestion orchestrator. Provider may be nil
// when the deployment only runs in supplied-data mode.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Provider provider.API
	Logger   *logger.Logger
	Metrics  *metrics.IngestionMetrics
	LeagueID string
}

// NewService builds the ingestion orchestrator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ingestion repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.DB,
		provider: params.Provider,
		logg:     params.Logger,
		metrics:  params.Metrics,
		leagueID: params.LeagueID,
		now:      time.Now,
	}, nil
}

func (s *service) PollAndIngest(ctx context.Context, contestID uuid.UUID, workUnits []WorkUnit) (PollResult, error) {
	if contestID == uuid.Nil {
		return PollResult{}, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	ctx = s.logg.WithContestID(ctx, contestID)

	instance, template, err := s.repo.FindInstanceWithTemplate(ctx, contestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return PollResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
		}
		return PollResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
	}

	// Ingestion only runs while the contest is locked or in play.
	if instance.Status != enums.ContestStatusLocked && instance.Status != enums.ContestStatusLive {
		return PollResult{
			Summary: Summary{Errors: []string{
				fmt.Sprintf("contest in state %s is not ingestible", instance.Status),
			}},
		}, nil
	}

	var selectedEventID *string
	if len(workUnits) == 0 {
		units, eventID, result, err := s.selfFetch(ctx, instance, template)
		if err != nil || result != nil {
			if result != nil {
				return *result, err
			}
			return PollResult{}, err
		}
		workUnits = units
		selectedEventID = eventID
	} else {
		selectedEventID = &workUnits[0].ProviderEventID
	}

	if err := ValidateWorkUnits(workUnits); err != nil {
		s.metrics.IncFailed(string(enums.ProviderSportsData))
		return PollResult{
			EventID: selectedEventID,
			Summary: Summary{Errors: []string{err.Error()}},
		}, err
	}

	result := PollResult{EventID: selectedEventID}
	for _, unit := range workUnits {
		if err := s.ingestUnit(ctx, instance.ID, unit, &result.Summary); err != nil {
			// Downstream write failures surface in the result; the poll cycle
			// host keeps running.
			result.Summary.Errors = append(result.Summary.Errors, err.Error())
			s.logg.Error(ctx, "ingestion write failed", err)
		}
	}

	result.Success = len(result.Summary.Errors) == 0
	s.metrics.AddProcessed(string(enums.ProviderSportsData), result.Summary.Processed)
	s.metrics.AddSkipped(string(enums.ProviderSportsData), result.Summary.Skipped)
	if !result.Success {
		s.metrics.IncFailed(string(enums.ProviderSportsData))
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"processed": result.Summary.Processed,
		"skipped":   result.Summary.Skipped,
		"errors":    len(result.Summary.Errors),
	})
	s.logg.Info(logCtx, "poll cycle complete")
	return result, nil
}

// ReplayEvents returns a contest's valid snapshots in deterministic replay
// order: the exact inputs a settlement run applies.
func (s *service) ReplayEvents(ctx context.Context, contestID uuid.UUID) ([]models.IngestionEvent, error) {
	if contestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	if _, _, err := s.repo.FindInstanceWithTemplate(ctx, contestID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
	}
	events, err := s.repo.ListEventsForReplay(ctx, contestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list replay events")
	}
	return events, nil
}

// selfFetch resolves the provider event for the contest and fetches its
// leaderboard. A non-nil PollResult means the cycle ends here (skip or
// provider failure).
func (s *service) selfFetch(ctx context.Context, instance *models.ContestInstance, template *models.ContestTemplate) ([]WorkUnit, *string, *PollResult, error) {
	if s.provider == nil {
		err := pkgerrors.New(pkgerrors.CodeValidation,
			"self-fetching disabled: no provider client configured and no work units supplied")
		return nil, nil, &PollResult{Summary: Summary{Errors: []string{err.Error()}}}, err
	}

	calendar, err := s.provider.FetchCalendar(ctx, s.leagueID, instance.SeasonYear)
	if err != nil {
		s.metrics.IncFailed(string(enums.ProviderSportsData))
		return nil, nil, &PollResult{Summary: Summary{Errors: []string{err.Error()}}}, err
	}

	selected, err := SelectEvent(calendar, ContestConfig{
		SeasonYear:      instance.SeasonYear,
		ProviderEventID: instance.ProviderEventID,
		StartDate:       &instance.TournamentStart,
		EndDate:         &instance.TournamentEnd,
		Name:            template.Name,
	})
	if err != nil {
		s.metrics.IncFailed(string(enums.ProviderSportsData))
		return nil, nil, &PollResult{Summary: Summary{Errors: []string{err.Error()}}}, err
	}
	if selected == nil {
		// No candidate: skip the cycle, never crash.
		s.logg.Info(ctx, "no provider event matched contest, skipping cycle")
		s.metrics.AddSkipped(string(enums.ProviderSportsData), 1)
		return nil, nil, &PollResult{Summary: Summary{Skipped: 1}}, nil
	}

	ctx = s.logg.WithProviderEventID(ctx, selected.ID)
	payload, err := s.provider.FetchLeaderboard(ctx, selected.ID)
	if err != nil {
		s.metrics.IncFailed(string(enums.ProviderSportsData))
		return nil, nil, &PollResult{
			EventID: &selected.ID,
			Summary: Summary{Errors: []string{err.Error()}},
		}, err
	}

	units := []WorkUnit{{ProviderEventID: selected.ID, ProviderData: payload}}
	return units, &selected.ID, nil, nil
}

// ingestUnit writes one snapshot. Shape violations persist an INVALID event
// with itemized child rows; duplicate payload hashes are a graceful skip.
func (s *service) ingestUnit(ctx context.Context, instanceID uuid.UUID, unit WorkUnit, summary *Summary) error {
	hash, err := canonicaljson.HashBytes(unit.ProviderData)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "canonicalize provider payload")
	}

	shapeErrors := ValidateLeaderboardShape(unit.ProviderData)
	status := enums.ValidationStatusValid
	if len(shapeErrors) > 0 {
		status = enums.ValidationStatusInvalid
	}

	event := &models.IngestionEvent{
		ContestInstanceID: instanceID,
		Provider:          enums.ProviderSportsData,
		EventType:         enums.IngestionEventLeaderboardSnapshot,
		ProviderEventID:   unit.ProviderEventID,
		ProviderData:      datatypes.JSON(unit.ProviderData),
		PayloadHash:       hash,
		ValidationStatus:  status,
		ReceivedAt:        s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateEvent(ctx, event); err != nil {
			return err
		}
		if len(shapeErrors) == 0 {
			return nil
		}
		rows := make([]models.IngestionValidationError, 0, len(shapeErrors))
		for _, shapeErr := range shapeErrors {
			rows = append(rows, models.IngestionValidationError{
				IngestionEventID: event.ID,
				Field:            shapeErr.Field,
				Message:          shapeErr.Message,
			})
		}
		return repo.CreateValidationErrors(ctx, rows)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// Dedup by (instance, payload hash) is the correctness mechanism:
			// a replayed snapshot is skipped, not an error.
			summary.Skipped++
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write ingestion event")
	}

	if len(shapeErrors) > 0 {
		for _, shapeErr := range shapeErrors {
			summary.Errors = append(summary.Errors, shapeErr.Error())
		}
		return nil
	}
	summary.Processed++
	return nil
}

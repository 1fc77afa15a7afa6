package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CacheInvalidator drops derived read views for a contest instance after a
// cancellation cascade changes its status.
type CacheInvalidator interface {
	InvalidateContest(ctx context.Context, instanceID uuid.UUID) error
}

// Service turns provider tournament descriptors into contest templates and
// their primary marketing instances, and cascades provider cancellations.
type Service interface {
	DiscoverTournament(ctx context.Context, input TournamentInput, now time.Time) (Result, error)
	TournamentTemplate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error)
}

type service struct {
	repo                 Repository
	tx                   txRunner
	logg                 *logger.Logger
	invalidator          CacheInvalidator
	horizonDays          int
	defaultEntryFeeCents int
}

// ServiceParams configure the discovery service. Invalidator is optional.
type ServiceParams struct {
	Repo                 Repository
	DB                   txRunner
	Logger               *logger.Logger
	Invalidator          CacheInvalidator
	HorizonDays          int
	DefaultEntryFeeCents int
}

// NewService builds the discovery service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("discovery repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.HorizonDays <= 0 {
		params.HorizonDays = 120
	}
	if params.DefaultEntryFeeCents <= 0 {
		params.DefaultEntryFeeCents = 1000
	}
	return &service{
		repo:                 params.Repo,
		tx:                   params.DB,
		logg:                 params.Logger,
		invalidator:          params.Invalidator,
		horizonDays:          params.HorizonDays,
		defaultEntryFeeCents: params.DefaultEntryFeeCents,
	}, nil
}

func (s *service) DiscoverTournament(ctx context.Context, input TournamentInput, now time.Time) (Result, error) {
	if errCode := s.validate(input, now); errCode != "" {
		return Result{
				Success:    false,
				StatusCode: http.StatusBadRequest,
				ErrorCode:  errCode,
			}, pkgerrors.New(pkgerrors.CodeValidation, "invalid tournament descriptor").
				WithDetails(map[string]any{"error_code": errCode})
	}

	var result Result
	var cancelled []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		template, err := repo.FindSystemTemplateForUpdate(ctx, input.ProviderTournamentID, input.SeasonYear)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return s.createTemplate(ctx, repo, input, &result)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up contest template")
		}

		if input.Status == enums.TemplateStatusCancelled && template.Status != enums.TemplateStatusCancelled {
			return s.cascadeCancellation(ctx, repo, template, now, &result, &cancelled)
		}

		return s.maybeUpdateMetadata(ctx, repo, template, input, &result)
	})
	if err != nil {
		return Result{Success: false, StatusCode: http.StatusInternalServerError}, err
	}

	// Cached read views go stale once the cascade commits. Best effort: the
	// entries are short-TTL and self-heal.
	if s.invalidator != nil {
		for _, instanceID := range cancelled {
			if invErr := s.invalidator.InvalidateContest(ctx, instanceID); invErr != nil {
				s.logg.Error(ctx, "invalidating cached views for cancelled contest", invErr)
			}
		}
	}

	logCtx := s.logg.WithTemplateID(ctx, *result.TemplateID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"provider_tournament_id": input.ProviderTournamentID,
		"season_year":            input.SeasonYear,
		"created":                result.Created,
		"updated":                result.Updated,
	})
	s.logg.Info(logCtx, "tournament discovery processed")
	return result, nil
}

// TournamentTemplate is the read-side lookup for a discovered tournament.
// It never locks; writers go through DiscoverTournament.
func (s *service) TournamentTemplate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error) {
	if strings.TrimSpace(providerTournamentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider tournament id required")
	}
	template, err := s.repo.FindSystemTemplate(ctx, providerTournamentID, seasonYear)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tournament template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up contest template")
	}
	return template, nil
}

func (s *service) validate(input TournamentInput, now time.Time) string {
	if strings.TrimSpace(input.ProviderTournamentID) == "" {
		return ErrCodeMissingProviderID
	}
	if input.SeasonYear < 2000 || input.SeasonYear > 2099 {
		return ErrCodeSeasonOutOfRange
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() || !input.StartTime.Before(input.EndTime) {
		return ErrCodeInvalidTimeWindow
	}
	if !input.Status.IsValid() {
		return ErrCodeUnknownStatus
	}
	horizon := time.Duration(s.horizonDays) * 24 * time.Hour
	if input.EndTime.Before(now.Add(-horizon)) || input.StartTime.After(now.Add(horizon)) {
		return ErrCodeOutsideHorizon
	}
	return ""
}

func (s *service) createTemplate(ctx context.Context, repo Repository, input TournamentInput, result *Result) error {
	template := &models.ContestTemplate{
		ProviderTournamentID: input.ProviderTournamentID,
		SeasonYear:           input.SeasonYear,
		Name:                 input.Name,
		AllowedPayoutStructures: datatypes.NewJSONSlice([]string{
			string(enums.PayoutWinnerTakesAll),
			string(enums.PayoutTopThreeSplit),
		}),
		IsSystemGenerated: true,
		Status:            input.Status,
		TournamentStart:   input.StartTime,
		TournamentEnd:     input.EndTime,
	}
	if err := repo.CreateTemplate(ctx, template); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contest template")
	}

	// The primary marketing instance mirrors the template; the partial unique
	// index backs the at-most-one guarantee.
	instance := &models.ContestInstance{
		TemplateID:         template.ID,
		EntryFeeCents:      s.defaultEntryFeeCents,
		PayoutStructure:    enums.PayoutWinnerTakesAll,
		Status:             instanceStatusFor(input.Status),
		SeasonYear:         input.SeasonYear,
		TournamentStart:    input.StartTime,
		TournamentEnd:      input.EndTime,
		LockTime:           input.StartTime,
		IsPrimaryMarketing: true,
		IsPlatformOwned:    true,
	}
	if err := repo.CreateInstance(ctx, instance); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create primary marketing instance")
	}

	result.Success = true
	result.Created = true
	result.TemplateID = &template.ID
	result.StatusCode = http.StatusCreated
	return nil
}

func instanceStatusFor(templateStatus enums.TemplateStatus) enums.ContestStatus {
	if templateStatus == enums.TemplateStatusCancelled {
		return enums.ContestStatusCancelled
	}
	return enums.ContestStatusScheduled
}

func (s *service) cascadeCancellation(ctx context.Context, repo Repository, template *models.ContestTemplate, now time.Time, result *Result, cancelled *[]uuid.UUID) error {
	if err := repo.UpdateTemplate(ctx, template.ID, map[string]any{
		"status": enums.TemplateStatusCancelled,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel contest template")
	}

	instances, err := repo.FindInstancesByTemplate(ctx, template.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load template instances")
	}
	for _, instance := range instances {
		// COMPLETE stays immutable; already-CANCELLED gets no duplicate audit row.
		if instance.Status.IsTerminal() {
			continue
		}
		if err := repo.UpdateInstanceStatus(ctx, instance.ID, enums.ContestStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel contest instance")
		}
		transition := &models.ContestStateTransition{
			ContestInstanceID: instance.ID,
			FromState:         instance.Status,
			ToState:           enums.ContestStatusCancelled,
			TriggeredBy:       enums.TriggerProviderTournamentCancelled,
			OccurredAt:        now,
		}
		if err := repo.CreateTransition(ctx, transition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record cancellation transition")
		}
		*cancelled = append(*cancelled, instance.ID)
	}

	result.Success = true
	result.Updated = true
	result.TemplateID = &template.ID
	result.StatusCode = http.StatusOK
	return nil
}

func (s *service) maybeUpdateMetadata(ctx context.Context, repo Repository, template *models.ContestTemplate, input TournamentInput, result *Result) error {
	result.Success = true
	result.TemplateID = &template.ID
	result.StatusCode = http.StatusOK

	changed := template.Name != input.Name ||
		!template.TournamentStart.Equal(input.StartTime) ||
		!template.TournamentEnd.Equal(input.EndTime)
	if !changed {
		return nil
	}

	frozen, err := repo.CountFrozenInstances(ctx, template.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check metadata freeze")
	}
	if frozen > 0 {
		// Metadata freeze: a successful no-op, not an error.
		return nil
	}

	if err := repo.UpdateTemplate(ctx, template.ID, map[string]any{
		"name":             input.Name,
		"tournament_start": input.StartTime,
		"tournament_end":   input.EndTime,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update template metadata")
	}
	result.Updated = true
	return nil
}

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives all contest state changes. Every status update and its
// transition record are written in one transaction under a row lock.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (TransitionResult, error)
	Sweep(ctx context.Context, now time.Time, batchSize int) (SweepResult, error)
	History(ctx context.Context, instanceID uuid.UUID) ([]models.ContestStateTransition, error)
}

// TransitionInput identifies the contest and the trigger firing against it.
type TransitionInput struct {
	InstanceID uuid.UUID
	Trigger    enums.TransitionTrigger
	OccurredAt time.Time
}

// TransitionResult reports what the transition did. Changed is false when the
// contest was already past the requested move (idempotent re-fire).
type TransitionResult struct {
	Changed   bool
	FromState enums.ContestStatus
	ToState   enums.ContestStatus
}

// SweepResult counts the contests advanced by one sweep pass.
type SweepResult struct {
	Locked int
	Live   int
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// ServiceParams configure the lifecycle service.
type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Logger *logger.Logger
}

// NewService builds the lifecycle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("lifecycle repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo: params.Repo,
		tx:   params.DB,
		logg: params.Logger,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	if input.InstanceID == uuid.Nil {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	if !input.Trigger.IsValid() {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown transition trigger")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var result TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		instance, err := repo.FindInstanceForUpdate(ctx, input.InstanceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
		}

		result.FromState = instance.Status
		target, ok := Next(instance.Status, input.Trigger)
		if !ok {
			// Re-fired triggers against a state that already moved are a no-op,
			// not an error. Anything else is a real state conflict.
			if alreadyApplied(instance.Status, input.Trigger) {
				result.ToState = instance.Status
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("trigger %s not allowed in state %s", input.Trigger, instance.Status)).
				WithDetails(map[string]any{
					"current_state": instance.Status,
					"trigger":       input.Trigger,
				})
		}

		if err := repo.UpdateInstanceStatus(ctx, instance.ID, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update contest status")
		}
		transition := &models.ContestStateTransition{
			ContestInstanceID: instance.ID,
			FromState:         instance.Status,
			ToState:           target,
			TriggeredBy:       input.Trigger,
			OccurredAt:        occurredAt,
		}
		if err := repo.CreateTransition(ctx, transition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record state transition")
		}

		result.Changed = true
		result.ToState = target
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if result.Changed {
		logCtx := s.logg.WithContestID(ctx, input.InstanceID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"from":    result.FromState,
			"to":      result.ToState,
			"trigger": input.Trigger,
		})
		s.logg.Info(logCtx, "contest state transition applied")
	}
	return result, nil
}

// alreadyApplied recognizes a trigger whose effect is already in place, so a
// duplicate fire (sweep overlap, retried request) resolves idempotently.
func alreadyApplied(current enums.ContestStatus, trigger enums.TransitionTrigger) bool {
	switch trigger {
	case enums.TriggerLockTimeReached:
		return current == enums.ContestStatusLocked || current == enums.ContestStatusLive ||
			current == enums.ContestStatusComplete
	case enums.TriggerStartTimeReached:
		return current == enums.ContestStatusLive || current == enums.ContestStatusComplete
	case enums.TriggerSettlementCompleted:
		return current == enums.ContestStatusComplete
	case enums.TriggerProviderTournamentCancelled, enums.TriggerAdminOverride:
		return current == enums.ContestStatusCancelled
	}
	return false
}

func (s *service) Sweep(ctx context.Context, now time.Time, batchSize int) (SweepResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var result SweepResult

	dueForLock, err := s.repo.FindDueForLock(ctx, now, batchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query contests due for lock")
	}
	for _, instance := range dueForLock {
		res, err := s.Transition(ctx, TransitionInput{
			InstanceID: instance.ID,
			Trigger:    enums.TriggerLockTimeReached,
			OccurredAt: now,
		})
		if err != nil {
			// A conflict means another worker got there first; skip and continue.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return result, err
		}
		if res.Changed {
			result.Locked++
		}
	}

	dueForLive, err := s.repo.FindDueForLive(ctx, now, batchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query contests due for live")
	}
	for _, instance := range dueForLive {
		res, err := s.Transition(ctx, TransitionInput{
			InstanceID: instance.ID,
			Trigger:    enums.TriggerStartTimeReached,
			OccurredAt: now,
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return result, err
		}
		if res.Changed {
			result.Live++
		}
	}

	return result, nil
}

func (s *service) History(ctx context.Context, instanceID uuid.UUID) ([]models.ContestStateTransition, error) {
	if instanceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	transitions, err := s.repo.ListTransitions(ctx, instanceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list state transitions")
	}
	return transitions, nil
}

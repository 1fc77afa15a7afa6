package entries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db"
	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// JoinInput is one user's request to enter a contest instance. Payment
// capture happens upstream; the confirmed flag is its outcome.
type JoinInput struct {
	ContestInstanceID uuid.UUID
	UserID            uuid.UUID
	PaymentConfirmed  bool
}

// Service manages contest entries and the joined-contests read path.
type Service interface {
	Join(ctx context.Context, input JoinInput) (*models.ContestEntry, error)
	JoinedContests(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	InvalidateContest(ctx context.Context, instanceID uuid.UUID) error
}

type service struct {
	repo  Repository
	tx    txRunner
	cache *joinedCache
	logg  *logger.Logger
	now   func() time.Time
}

// ServiceParams configure the entries service. Cache is optional; without it
// every joined-contests read goes to the database.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Cache    cacheStore
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// NewService builds the entries service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("entries repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:  params.Repo,
		tx:    params.DB,
		cache: newJoinedCache(params.Cache, params.Logger, params.CacheTTL),
		logg:  params.Logger,
		now:   time.Now,
	}, nil
}

// Join enters a user into a contest instance. Joins close the moment the
// instance leaves SCHEDULED; a repeat join surfaces as CONFLICT off the
// unique (instance, user) constraint rather than a pre-read.
func (s *service) Join(ctx context.Context, input JoinInput) (*models.ContestEntry, error) {
	if input.ContestInstanceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.PaymentConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment must be confirmed before joining")
	}
	ctx = s.logg.WithContestID(ctx, input.ContestInstanceID)

	var entry *models.ContestEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		instance, err := repo.FindInstance(ctx, input.ContestInstanceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
		}
		if instance.Status != enums.ContestStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("contest in state %s is closed to entries", instance.Status))
		}

		entry = &models.ContestEntry{
			ContestInstanceID: input.ContestInstanceID,
			UserID:            input.UserID,
			PaymentConfirmed:  true,
			JoinedAt:          s.now().UTC(),
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "user already joined this contest")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contest entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(ctx, input.UserID)
	s.logg.Info(ctx, "contest entry created")
	return entry, nil
}

// JoinedContests returns the contest instance ids a user has entered,
// served from cache when warm.
func (s *service) JoinedContests(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if ids, ok := s.cache.get(ctx, userID); ok {
		return ids, nil
	}
	ids, err := s.repo.ListJoinedInstanceIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list joined contests")
	}
	s.cache.put(ctx, userID, ids)
	return ids, nil
}

// InvalidateContest drops the cached joined-contests view of every entrant
// in the instance. Called after a cancellation cascade touches the contest.
func (s *service) InvalidateContest(ctx context.Context, instanceID uuid.UUID) error {
	if instanceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	userIDs, err := s.repo.ListUserIDsByInstance(ctx, instanceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list contest entrants")
	}
	s.cache.invalidate(ctx, userIDs...)
	return nil
}

package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// Repository covers the persistence surface of the lifecycle service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInstance(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error)
	FindInstanceForUpdate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error)
	UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error
	CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error
	ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]models.ContestStateTransition, error)
	FindDueForLock(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error)
	FindDueForLive(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a lifecycle repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindInstance(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error) {
	var instance models.ContestInstance
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *repository) FindInstanceForUpdate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error) {
	var instance models.ContestInstance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *repository) UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ContestInstance{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(transition).Error
}

func (r *repository) ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]models.ContestStateTransition, error) {
	var transitions []models.ContestStateTransition
	err := r.db.WithContext(ctx).
		Where("contest_instance_id = ?", instanceID).
		Order("occurred_at ASC").
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

func (r *repository) FindDueForLock(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error) {
	var instances []models.ContestInstance
	err := r.db.WithContext(ctx).
		Where("status = ? AND lock_time <= ?", enums.ContestStatusScheduled, now).
		Order("lock_time ASC").
		Limit(limit).
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repository) FindDueForLive(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error) {
	var instances []models.ContestInstance
	err := r.db.WithContext(ctx).
		Where("status = ? AND tournament_start <= ?", enums.ContestStatusLocked, now).
		Order("tournament_start ASC").
		Limit(limit).
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

package entries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
)

// Repository covers entry persistence plus the reads the joined-contests
// cache needs to refill and invalidate itself.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInstance(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error)
	CreateEntry(ctx context.Context, entry *models.ContestEntry) error
	ListJoinedInstanceIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListUserIDsByInstance(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an entries repository bound to the provided DB.
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

func (r *repository) CreateEntry(ctx context.Context, entry *models.ContestEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListJoinedInstanceIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.ContestEntry
	err := r.db.WithContext(ctx).
		Select("contest_instance_id").
		Where("user_id = ?", userID).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ContestInstanceID)
	}
	return ids, nil
}

func (r *repository) ListUserIDsByInstance(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.ContestEntry
	err := r.db.WithContext(ctx).
		Select("user_id").
		Where("contest_instance_id = ?", instanceID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids, nil
}

package ingestion

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// Repository covers the event store surface used by the orchestrator.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInstanceWithTemplate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, *models.ContestTemplate, error)
	CreateEvent(ctx context.Context, event *models.IngestionEvent) error
	CreateValidationErrors(ctx context.Context, errs []models.IngestionValidationError) error
	ListEventsForReplay(ctx context.Context, instanceID uuid.UUID) ([]models.IngestionEvent, error)
	ListIngestibleInstanceIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an ingestion repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindInstanceWithTemplate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, *models.ContestTemplate, error) {
	var instance models.ContestInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		return nil, nil, err
	}
	var template models.ContestTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", instance.TemplateID).First(&template).Error; err != nil {
		return nil, nil, err
	}
	return &instance, &template, nil
}

func (r *repository) CreateEvent(ctx context.Context, event *models.IngestionEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) CreateValidationErrors(ctx context.Context, errs []models.IngestionValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	for i := range errs {
		if errs[i].ID == uuid.Nil {
			errs[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&errs).Error
}

// ListIngestibleInstanceIDs returns every contest currently accepting
// snapshots. Polling walks this list each cycle.
func (r *repository) ListIngestibleInstanceIDs(ctx context.Context) ([]uuid.UUID, error) {
	var instances []models.ContestInstance
	err := r.db.WithContext(ctx).
		Select("id").
		Where("status IN ?", []enums.ContestStatus{enums.ContestStatusLocked, enums.ContestStatusLive}).
		Order("lock_time ASC").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(instances))
	for _, instance := range instances {
		ids = append(ids, instance.ID)
	}
	return ids, nil
}

// ListEventsForReplay returns the instance's valid snapshots in the
// deterministic replay order (received_at ASC, id ASC).
func (r *repository) ListEventsForReplay(ctx context.Context, instanceID uuid.UUID) ([]models.IngestionEvent, error) {
	var events []models.IngestionEvent
	err := r.db.WithContext(ctx).
		Where("contest_instance_id = ? AND validation_status = ?", instanceID, enums.ValidationStatusValid).
		Order("received_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

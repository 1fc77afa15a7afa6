package settlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// Repository covers the persistence surface of the settlement engine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInstance(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error)
	FindInstanceForUpdate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error)
	FindCompleteAudit(ctx context.Context, instanceID, snapshotID uuid.UUID) (*models.SettlementAudit, error)
	FindLatestCompleteAudit(ctx context.Context, instanceID uuid.UUID) (*models.SettlementAudit, error)
	ListConfirmedEntries(ctx context.Context, instanceID uuid.UUID) ([]models.ContestEntry, error)
	ListValidEventIDs(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error)
	CreateAudit(ctx context.Context, audit *models.SettlementAudit) error
	CreateScoreHistory(ctx context.Context, history *models.ScoreHistory) error
	UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error
	CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
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

func (r *repository) FindCompleteAudit(ctx context.Context, instanceID, snapshotID uuid.UUID) (*models.SettlementAudit, error) {
	var audit models.SettlementAudit
	err := r.db.WithContext(ctx).
		Where("contest_instance_id = ? AND snapshot_id = ? AND status = ?",
			instanceID, snapshotID, enums.SettlementStatusComplete).
		First(&audit).Error
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

func (r *repository) FindLatestCompleteAudit(ctx context.Context, instanceID uuid.UUID) (*models.SettlementAudit, error) {
	var audit models.SettlementAudit
	err := r.db.WithContext(ctx).
		Where("contest_instance_id = ? AND status = ?", instanceID, enums.SettlementStatusComplete).
		Order("completed_at DESC").
		First(&audit).Error
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

func (r *repository) ListConfirmedEntries(ctx context.Context, instanceID uuid.UUID) ([]models.ContestEntry, error) {
	var entries []models.ContestEntry
	err := r.db.WithContext(ctx).
		Preload("Scores").
		Where("contest_instance_id = ? AND payment_confirmed = ?", instanceID, true).
		Order("joined_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListValidEventIDs(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error) {
	var events []models.IngestionEvent
	err := r.db.WithContext(ctx).
		Select("id").
		Where("contest_instance_id = ? AND validation_status = ?", instanceID, enums.ValidationStatusValid).
		Order("received_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids, nil
}

func (r *repository) CreateAudit(ctx context.Context, audit *models.SettlementAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *repository) CreateScoreHistory(ctx context.Context, history *models.ScoreHistory) error {
	if history.ID == uuid.Nil {
		history.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(history).Error
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

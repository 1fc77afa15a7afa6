package discovery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// Repository covers the persistence surface of the discovery service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSystemTemplate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error)
	FindSystemTemplateForUpdate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error)
	CreateTemplate(ctx context.Context, template *models.ContestTemplate) error
	UpdateTemplate(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CreateInstance(ctx context.Context, instance *models.ContestInstance) error
	FindInstancesByTemplate(ctx context.Context, templateID uuid.UUID) ([]models.ContestInstance, error)
	UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error
	CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error
	CountFrozenInstances(ctx context.Context, templateID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a discovery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSystemTemplate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error) {
	var template models.ContestTemplate
	err := r.db.WithContext(ctx).
		Where("provider_tournament_id = ? AND season_year = ? AND is_system_generated = ?",
			providerTournamentID, seasonYear, true).
		First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *repository) FindSystemTemplateForUpdate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error) {
	var template models.ContestTemplate
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_tournament_id = ? AND season_year = ? AND is_system_generated = ?",
			providerTournamentID, seasonYear, true).
		First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *repository) CreateTemplate(ctx context.Context, template *models.ContestTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *repository) UpdateTemplate(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ContestTemplate{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateInstance(ctx context.Context, instance *models.ContestInstance) error {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *repository) FindInstancesByTemplate(ctx context.Context, templateID uuid.UUID) ([]models.ContestInstance, error) {
	var instances []models.ContestInstance
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("created_at ASC").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
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

// CountFrozenInstances counts instances that ever reached a state freezing
// template metadata. Terminal CANCELLED rows keep their pre-cancel history in
// contest_state_transitions, so the check joins against the audit trail.
func (r *repository) CountFrozenInstances(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContestStateTransition{}).
		Joins("JOIN contest_instances ON contest_instances.id = contest_state_transitions.contest_instance_id").
		Where("contest_instances.template_id = ?", templateID).
		Where("contest_state_transitions.to_state IN ?", []enums.ContestStatus{
			enums.ContestStatusLocked,
			enums.ContestStatusLive,
			enums.ContestStatusComplete,
		}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

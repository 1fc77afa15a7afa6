package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// ContestTemplate is the reusable contest definition tied to one provider
// tournament and season. System-generated templates are unique per
// (provider_tournament_id, season_year).
type ContestTemplate struct {
	ID                      uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderTournamentID    string                      `gorm:"column:provider_tournament_id;not null"`
	SeasonYear              int                         `gorm:"column:season_year;not null"`
	Name                    string                      `gorm:"column:name;not null"`
	Sport                   string                      `gorm:"column:sport;not null;default:'golf'"`
	ScoringStrategy         string                      `gorm:"column:scoring_strategy;not null;default:'stroke_play_points'"`
	LockStrategy            string                      `gorm:"column:lock_strategy;not null;default:'tournament_start'"`
	SettlementStrategy      string                      `gorm:"column:settlement_strategy;not null;default:'final_leaderboard'"`
	MinEntryFeeCents        int                         `gorm:"column:min_entry_fee_cents;not null;default:0"`
	MaxEntryFeeCents        int                         `gorm:"column:max_entry_fee_cents;not null;default:100000"`
	AllowedPayoutStructures datatypes.JSONSlice[string] `gorm:"column:allowed_payout_structures"`
	IsSystemGenerated       bool                        `gorm:"column:is_system_generated;not null;default:false"`
	Status                  enums.TemplateStatus        `gorm:"column:status;type:text;not null;default:'SCHEDULED'"`
	TournamentStart         time.Time                   `gorm:"column:tournament_start;not null"`
	TournamentEnd           time.Time                   `gorm:"column:tournament_end;not null"`
	Instances               []ContestInstance           `gorm:"foreignKey:TemplateID"`
	CreatedAt               time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

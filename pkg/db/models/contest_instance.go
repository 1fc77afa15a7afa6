package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// ContestInstance is a concrete, joinable contest derived from a template.
// Instances are never deleted; terminal states are final.
type ContestInstance struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TemplateID         uuid.UUID             `gorm:"column:template_id;type:uuid;not null"`
	OrganizerID        *uuid.UUID            `gorm:"column:organizer_id;type:uuid"`
	EntryFeeCents      int                   `gorm:"column:entry_fee_cents;not null;default:0"`
	PayoutStructure    enums.PayoutStructure `gorm:"column:payout_structure;type:text;not null;default:'WINNER_TAKES_ALL'"`
	Status             enums.ContestStatus   `gorm:"column:status;type:text;not null;default:'SCHEDULED'"`
	SeasonYear         int                   `gorm:"column:season_year;not null"`
	ProviderEventID    *string               `gorm:"column:provider_event_id"`
	TournamentStart    time.Time             `gorm:"column:tournament_start;not null"`
	TournamentEnd      time.Time             `gorm:"column:tournament_end;not null"`
	LockTime           time.Time             `gorm:"column:lock_time;not null"`
	IsPrimaryMarketing bool                  `gorm:"column:is_primary_marketing;not null;default:false"`
	IsPlatformOwned    bool                  `gorm:"column:is_platform_owned;not null;default:false"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

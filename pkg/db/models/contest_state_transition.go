package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// ContestStateTransition is the append-only audit row written with every
// lifecycle change. Transitions are recorded in the same transaction as the
// status update, never inferred afterwards.
type ContestStateTransition struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContestInstanceID uuid.UUID               `gorm:"column:contest_instance_id;type:uuid;not null"`
	FromState         enums.ContestStatus     `gorm:"column:from_state;type:text;not null"`
	ToState           enums.ContestStatus     `gorm:"column:to_state;type:text;not null"`
	TriggeredBy       enums.TransitionTrigger `gorm:"column:triggered_by;type:text;not null"`
	OccurredAt        time.Time               `gorm:"column:occurred_at;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
}

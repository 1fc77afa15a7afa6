package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbtypes "github.com/fairwaygames/clubhouse-backend/pkg/db/types"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// SettlementAudit records one settlement attempt. A COMPLETE row for a
// contest instance is the single source of truth and is never superseded.
type SettlementAudit struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContestInstanceID uuid.UUID              `gorm:"column:contest_instance_id;type:uuid;not null"`
	SnapshotID        uuid.UUID              `gorm:"column:snapshot_id;type:uuid;not null"`
	SnapshotHash      string                 `gorm:"column:snapshot_hash;not null"`
	Status            enums.SettlementStatus `gorm:"column:status;type:text;not null"`
	EventIDsApplied   dbtypes.UUIDArray      `gorm:"column:event_ids_applied;type:uuid[]"`
	FinalScores       datatypes.JSON         `gorm:"column:final_scores_json;type:jsonb"`
	ErrorMessage      *string                `gorm:"column:error_message"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	CompletedAt       *time.Time             `gorm:"column:completed_at"`
}

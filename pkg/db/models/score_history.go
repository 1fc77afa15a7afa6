package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ScoreHistory is the append-only canonical score snapshot written alongside
// each settlement audit. Hash equality across runs proves identical inputs
// produced identical outputs.
type ScoreHistory struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SettlementAuditID uuid.UUID      `gorm:"column:settlement_audit_id;type:uuid;not null"`
	ContestInstanceID uuid.UUID      `gorm:"column:contest_instance_id;type:uuid;not null"`
	Scores            datatypes.JSON `gorm:"column:scores;type:jsonb;not null"`
	ScoreHash         string         `gorm:"column:score_hash;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName maps to the singular table created by the migrations.
func (ScoreHistory) TableName() string {
	return "score_history"
}

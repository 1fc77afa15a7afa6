package models

import (
	"time"

	"github.com/google/uuid"
)

// ContestEntry is one participant's paid entry into a contest instance.
// Payment capture itself is a peer subsystem; the core only records that the
// join was authorized.
type ContestEntry struct {
	ID                uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContestInstanceID uuid.UUID    `gorm:"column:contest_instance_id;type:uuid;not null"`
	UserID            uuid.UUID    `gorm:"column:user_id;type:uuid;not null"`
	PaymentConfirmed  bool         `gorm:"column:payment_confirmed;not null;default:false"`
	JoinedAt          time.Time    `gorm:"column:joined_at;not null"`
	Scores            []EntryScore `gorm:"foreignKey:EntryID"`
	CreatedAt         time.Time    `gorm:"column:created_at;autoCreateTime"`
}

// EntryScore is one scoring line attributed to an entry during ingestion
// replay. Settlement ranks entries by the sum of their points.
type EntryScore struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntryID           uuid.UUID  `gorm:"column:entry_id;type:uuid;not null"`
	ContestInstanceID uuid.UUID  `gorm:"column:contest_instance_id;type:uuid;not null"`
	Points            int        `gorm:"column:points;not null;default:0"`
	SourceEventID     *uuid.UUID `gorm:"column:source_event_id;type:uuid"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}

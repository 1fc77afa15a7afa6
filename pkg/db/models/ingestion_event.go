package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// IngestionEvent is one immutable provider snapshot. The table is append-only;
// UPDATE and DELETE are rejected by a storage trigger. Replay order is
// (received_at ASC, id ASC).
type IngestionEvent struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContestInstanceID uuid.UUID                `gorm:"column:contest_instance_id;type:uuid;not null"`
	Provider          enums.Provider           `gorm:"column:provider;type:text;not null"`
	EventType         enums.IngestionEventType `gorm:"column:event_type;type:text;not null"`
	ProviderEventID   string                   `gorm:"column:provider_event_id;not null"`
	ProviderData      datatypes.JSON           `gorm:"column:provider_data;type:jsonb;not null"`
	PayloadHash       string                   `gorm:"column:payload_hash;not null"`
	ValidationStatus  enums.ValidationStatus   `gorm:"column:validation_status;type:text;not null"`
	ReceivedAt        time.Time                `gorm:"column:received_at;not null"`
}

// IngestionValidationError is an append-only child row recorded when shape
// validation rejects a snapshot.
type IngestionValidationError struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IngestionEventID uuid.UUID `gorm:"column:ingestion_event_id;type:uuid;not null"`
	Field            string    `gorm:"column:field;not null"`
	Message          string    `gorm:"column:message;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

package discovery

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// TournamentInput is the normalized provider tournament descriptor handed to
// discovery. "Now" is injected by the caller, never read from the wall clock.
type TournamentInput struct {
	ProviderTournamentID string               `json:"provider_tournament_id" validate:"required"`
	SeasonYear           int                  `json:"season_year" validate:"required"`
	Name                 string               `json:"name"`
	StartTime            time.Time            `json:"start_time" validate:"required"`
	EndTime              time.Time            `json:"end_time" validate:"required"`
	Status               enums.TemplateStatus `json:"status" validate:"required"`
}

// Distinct rejection codes, one per validation rule.
const (
	ErrCodeMissingProviderID = "MISSING_PROVIDER_ID"
	ErrCodeSeasonOutOfRange  = "SEASON_OUT_OF_RANGE"
	ErrCodeInvalidTimeWindow = "INVALID_TIME_WINDOW"
	ErrCodeUnknownStatus     = "UNKNOWN_STATUS"
	ErrCodeOutsideHorizon    = "OUTSIDE_DISCOVERY_HORIZON"
)

// Result reports what a discovery call did.
type Result struct {
	Success    bool       `json:"success"`
	Created    bool       `json:"created"`
	Updated    bool       `json:"updated"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	StatusCode int        `json:"status_code"`
	ErrorCode  string     `json:"error_code,omitempty"`
}

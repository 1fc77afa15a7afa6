package ingestion

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
)

// WorkUnit is one pre-packaged snapshot handed to the orchestrator: the
// provider event it belongs to plus the opaque payload.
type WorkUnit struct {
	ProviderEventID string          `json:"provider_event_id"`
	ProviderData    json.RawMessage `json:"provider_data"`
}

// ShapeError is one itemized shape violation, persisted as an
// IngestionValidationError child row.
type ShapeError struct {
	Field   string
	Message string
}

func (e ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateWorkUnits type-checks the whole batch before any unit is accepted.
// One malformed unit rejects the batch; there is no partial ingestion.
func ValidateWorkUnits(units []WorkUnit) error {
	if len(units) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one work unit required")
	}
	var errs error
	for i, unit := range units {
		if unit.ProviderEventID == "" {
			errs = multierr.Append(errs, fmt.Errorf("work unit %d: provider event id required", i))
		}
		if !isJSONObject(unit.ProviderData) {
			errs = multierr.Append(errs, fmt.Errorf("work unit %d: provider data must be a JSON object", i))
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "work unit batch rejected")
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var decoded map[string]any
	return json.Unmarshal(raw, &decoded) == nil && decoded != nil
}

// leaderboardShape mirrors only the structural spine the pipeline depends on;
// everything else in the payload stays opaque.
type leaderboardShape struct {
	Events []struct {
		Competitions []struct {
			Competitors *[]json.RawMessage `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

// ValidateLeaderboardShape itemizes every structural violation in a provider
// payload: non-null object, non-empty events, first event has non-empty
// competitions, first competition carries a competitors array (may be empty).
func ValidateLeaderboardShape(raw json.RawMessage) []ShapeError {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return []ShapeError{{Field: "payload", Message: "payload is not valid JSON"}}
	}
	if _, ok := decoded.(map[string]any); !ok {
		return []ShapeError{{Field: "payload", Message: "payload must be a non-null JSON object"}}
	}

	var shape leaderboardShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return []ShapeError{{Field: "payload", Message: fmt.Sprintf("payload structure invalid: %v", err)}}
	}

	var errs []ShapeError
	if len(shape.Events) == 0 {
		errs = append(errs, ShapeError{Field: "events", Message: "events array missing or empty"})
		return errs
	}
	if len(shape.Events[0].Competitions) == 0 {
		errs = append(errs, ShapeError{Field: "events[0].competitions", Message: "competitions array missing or empty"})
		return errs
	}
	if shape.Events[0].Competitions[0].Competitors == nil {
		errs = append(errs, ShapeError{
			Field:   "events[0].competitions[0].competitors",
			Message: "competitors array missing",
		})
	}
	return errs
}

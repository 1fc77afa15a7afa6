package ingestion

import (
	"encoding/json"
	"testing"

	"go.uber.org/multierr"

	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
)

func validLeaderboard() json.RawMessage {
	return json.RawMessage(`{
		"events": [{
			"competitions": [{
				"competitors": [{"id": "p1", "score": 70}]
			}]
		}]
	}`)
}

func TestValidateLeaderboardShapeAccepts(t *testing.T) {
	if errs := ValidateLeaderboardShape(validLeaderboard()); len(errs) != 0 {
		t.Fatalf("expected valid shape, got %v", errs)
	}
	// Empty competitors is still a valid shape.
	empty := json.RawMessage(`{"events":[{"competitions":[{"competitors":[]}]}]}`)
	if errs := ValidateLeaderboardShape(empty); len(errs) != 0 {
		t.Fatalf("empty competitors must pass, got %v", errs)
	}
}

func TestValidateLeaderboardShapeRejects(t *testing.T) {
	cases := []struct {
		name      string
		payload   string
		wantField string
	}{
		{"null payload", `null`, "payload"},
		{"array payload", `[1,2]`, "payload"},
		{"missing events", `{}`, "events"},
		{"empty events", `{"events":[]}`, "events"},
		{"missing competitions", `{"events":[{}]}`, "events[0].competitions"},
		{"empty competitions", `{"events":[{"competitions":[]}]}`, "events[0].competitions"},
		{"missing competitors", `{"events":[{"competitions":[{}]}]}`, "events[0].competitions[0].competitors"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateLeaderboardShape(json.RawMessage(tc.payload))
			if len(errs) == 0 {
				t.Fatal("expected shape errors")
			}
			if errs[0].Field != tc.wantField {
				t.Fatalf("expected field %s, got %s", tc.wantField, errs[0].Field)
			}
		})
	}
}

func TestValidateWorkUnitsRejectsWholeBatch(t *testing.T) {
	units := []WorkUnit{
		{ProviderEventID: "401", ProviderData: validLeaderboard()},
		{ProviderEventID: "", ProviderData: json.RawMessage(`"not an object"`)},
	}
	err := ValidateWorkUnits(units)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	// Both violations of the malformed unit are itemized.
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if got := len(multierr.Errors(typed.Unwrap())); got != 2 {
		t.Fatalf("expected 2 itemized violations, got %d", got)
	}
}

func TestValidateWorkUnitsEmptyBatch(t *testing.T) {
	if err := ValidateWorkUnits(nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestValidateWorkUnitsAccepts(t *testing.T) {
	units := []WorkUnit{{ProviderEventID: "401", ProviderData: validLeaderboard()}}
	if err := ValidateWorkUnits(units); err != nil {
		t.Fatalf("expected valid batch, got %v", err)
	}
}

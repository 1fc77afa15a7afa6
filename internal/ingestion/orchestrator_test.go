package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
	"github.com/fairwaygames/clubhouse-backend/pkg/provider"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeIngestionRepo struct {
	instance        *models.ContestInstance
	template        *models.ContestTemplate
	events          []models.IngestionEvent
	validationRows  []models.IngestionValidationError
	createEventErr  error
	seenPayloadHash map[string]bool
}

func (f *fakeIngestionRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeIngestionRepo) FindInstanceWithTemplate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, *models.ContestTemplate, error) {
	if f.instance == nil || f.instance.ID != id {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return f.instance, f.template, nil
}

func (f *fakeIngestionRepo) CreateEvent(ctx context.Context, event *models.IngestionEvent) error {
	if f.createEventErr != nil {
		return f.createEventErr
	}
	if f.seenPayloadHash == nil {
		f.seenPayloadHash = map[string]bool{}
	}
	key := event.ContestInstanceID.String() + "/" + event.PayloadHash
	if f.seenPayloadHash[key] {
		return errors.New(`duplicate key value violates unique constraint "uq_ingestion_payload_per_instance"`)
	}
	f.seenPayloadHash[key] = true
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeIngestionRepo) CreateValidationErrors(ctx context.Context, errs []models.IngestionValidationError) error {
	f.validationRows = append(f.validationRows, errs...)
	return nil
}

func (f *fakeIngestionRepo) ListEventsForReplay(ctx context.Context, instanceID uuid.UUID) ([]models.IngestionEvent, error) {
	return f.events, nil
}

func (f *fakeIngestionRepo) ListIngestibleInstanceIDs(ctx context.Context) ([]uuid.UUID, error) {
	if f.instance == nil {
		return nil, nil
	}
	if f.instance.Status != enums.ContestStatusLocked && f.instance.Status != enums.ContestStatusLive {
		return nil, nil
	}
	return []uuid.UUID{f.instance.ID}, nil
}

type fakeProvider struct {
	calendar       *provider.Calendar
	calendarErr    error
	leaderboard    json.RawMessage
	leaderboardErr error
	fetchedEventID string
}

func (f *fakeProvider) FetchCalendar(ctx context.Context, leagueID string, seasonYear int) (*provider.Calendar, error) {
	return f.calendar, f.calendarErr
}

func (f *fakeProvider) FetchLeaderboard(ctx context.Context, eventID string) (json.RawMessage, error) {
	f.fetchedEventID = eventID
	return f.leaderboard, f.leaderboardErr
}

func liveInstance() (*models.ContestInstance, *models.ContestTemplate) {
	template := &models.ContestTemplate{
		ID:   uuid.New(),
		Name: "Coastal Open",
	}
	eventID := "102"
	instance := &models.ContestInstance{
		ID:              uuid.New(),
		TemplateID:      template.ID,
		Status:          enums.ContestStatusLive,
		SeasonYear:      2026,
		ProviderEventID: &eventID,
		TournamentStart: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		TournamentEnd:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	return instance, template
}

func newTestOrchestrator(t *testing.T, repo Repository, api provider.API) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		DB:       fakeTxRunner{},
		Provider: api,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		LeagueID: "pga",
	})
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}
	return svc
}

func TestPollAndIngestSuppliedMode(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	units := []WorkUnit{{ProviderEventID: "102", ProviderData: validLeaderboard()}}
	result, err := svc.PollAndIngest(context.Background(), instance.ID, units)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Summary.Processed != 1 || result.Summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.EventID == nil || *result.EventID != "102" {
		t.Fatalf("expected event id 102, got %v", result.EventID)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one event row, got %d", len(repo.events))
	}
	event := repo.events[0]
	if event.ValidationStatus != enums.ValidationStatusValid {
		t.Fatalf("expected VALID, got %s", event.ValidationStatus)
	}
	if event.PayloadHash == "" {
		t.Fatal("payload hash missing")
	}
}

func TestPollAndIngestDuplicateHashIsGracefulSkip(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	// Same payload with reordered keys hashes identically.
	first := json.RawMessage(`{"events":[{"competitions":[{"competitors":[{"id":"p1","score":70}]}]}]}`)
	second := json.RawMessage(`{"events":[{"competitions":[{"competitors":[{"score":70,"id":"p1"}]}]}]}`)

	if _, err := svc.PollAndIngest(context.Background(), instance.ID, []WorkUnit{{ProviderEventID: "102", ProviderData: first}}); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	result, err := svc.PollAndIngest(context.Background(), instance.ID, []WorkUnit{{ProviderEventID: "102", ProviderData: second}})
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if !result.Success {
		t.Fatalf("duplicate must not fail the cycle: %+v", result)
	}
	if result.Summary.Skipped != 1 || result.Summary.Processed != 0 {
		t.Fatalf("expected one skip, got %+v", result.Summary)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected a single stored event, got %d", len(repo.events))
	}
}

func TestPollAndIngestShapeViolationRecordsAuditTrail(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	units := []WorkUnit{{ProviderEventID: "102", ProviderData: json.RawMessage(`{"events":[]}`)}}
	result, err := svc.PollAndIngest(context.Background(), instance.ID, units)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if result.Success {
		t.Fatal("shape violation must not report success")
	}
	if len(result.Summary.Errors) == 0 {
		t.Fatal("expected itemized errors")
	}
	if len(repo.events) != 1 || repo.events[0].ValidationStatus != enums.ValidationStatusInvalid {
		t.Fatalf("expected one INVALID event, got %+v", repo.events)
	}
	if len(repo.validationRows) == 0 {
		t.Fatal("expected validation error child rows")
	}
	if repo.validationRows[0].IngestionEventID != repo.events[0].ID {
		t.Fatal("validation rows not linked to event")
	}
}

func TestPollAndIngestMalformedUnitAbortsBatch(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	units := []WorkUnit{
		{ProviderEventID: "102", ProviderData: validLeaderboard()},
		{ProviderEventID: "", ProviderData: validLeaderboard()},
	}
	result, err := svc.PollAndIngest(context.Background(), instance.ID, units)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if len(repo.events) != 0 {
		t.Fatalf("no partial ingestion allowed, got %d rows", len(repo.events))
	}
}

func TestPollAndIngestRejectsNonIngestibleState(t *testing.T) {
	instance, template := liveInstance()
	instance.Status = enums.ContestStatusScheduled
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	result, err := svc.PollAndIngest(context.Background(), instance.ID,
		[]WorkUnit{{ProviderEventID: "102", ProviderData: validLeaderboard()}})
	if err != nil {
		t.Fatalf("skip must not error: %v", err)
	}
	if result.Success {
		t.Fatal("expected skip result")
	}
	if len(repo.events) != 0 {
		t.Fatal("nothing may be written outside LOCKED/LIVE")
	}
}

func TestPollAndIngestSelfFetchMode(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	api := &fakeProvider{
		calendar: &provider.Calendar{Events: []provider.CalendarEvent{
			{ID: "102", Label: "Coastal Open", StartDate: instance.TournamentStart, EndDate: instance.TournamentEnd},
			{ID: "103", Label: "Masters Tournament", StartDate: time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)},
		}},
		leaderboard: validLeaderboard(),
	}
	svc := newTestOrchestrator(t, repo, api)

	result, err := svc.PollAndIngest(context.Background(), instance.ID, nil)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if api.fetchedEventID != "102" {
		t.Fatalf("expected leaderboard fetch for 102, got %q", api.fetchedEventID)
	}
	if result.Summary.Processed != 1 {
		t.Fatalf("expected one processed, got %+v", result.Summary)
	}
}

func TestPollAndIngestSelfFetchNoMatchSkipsCycle(t *testing.T) {
	instance, template := liveInstance()
	instance.ProviderEventID = nil
	template.Name = "Unmatched Invitational"
	instance.TournamentStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	instance.TournamentEnd = time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	repo := &fakeIngestionRepo{instance: instance, template: template}
	api := &fakeProvider{
		calendar: &provider.Calendar{Events: []provider.CalendarEvent{
			{ID: "102", Label: "Coastal Open", StartDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		}},
	}
	svc := newTestOrchestrator(t, repo, api)

	result, err := svc.PollAndIngest(context.Background(), instance.ID, nil)
	if err != nil {
		t.Fatalf("skip must not error: %v", err)
	}
	if result.Success {
		t.Fatal("expected skip result")
	}
	if result.Summary.Skipped != 1 {
		t.Fatalf("expected skip counted, got %+v", result.Summary)
	}
	if len(repo.events) != 0 {
		t.Fatal("skip must write nothing")
	}
}

func TestReplayEventsReturnsValidSnapshots(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	svc := newTestOrchestrator(t, repo, nil)

	units := []WorkUnit{{ProviderEventID: "102", ProviderData: validLeaderboard()}}
	if _, err := svc.PollAndIngest(context.Background(), instance.ID, units); err != nil {
		t.Fatalf("poll: %v", err)
	}

	events, err := svc.ReplayEvents(context.Background(), instance.ID)
	if err != nil {
		t.Fatalf("replay events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one replay event, got %d", len(events))
	}
	if events[0].ValidationStatus != enums.ValidationStatusValid {
		t.Fatalf("expected VALID event, got %s", events[0].ValidationStatus)
	}

	_, err = svc.ReplayEvents(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown contest, got %v", err)
	}
}

func TestPollAndIngestProviderFailureSurfaces(t *testing.T) {
	instance, template := liveInstance()
	repo := &fakeIngestionRepo{instance: instance, template: template}
	api := &fakeProvider{calendarErr: pkgerrors.New(pkgerrors.CodeProviderTransient, "provider timed out")}
	svc := newTestOrchestrator(t, repo, api)

	result, err := svc.PollAndIngest(context.Background(), instance.ID, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderTransient) {
		t.Fatalf("expected PROVIDER_TRANSIENT, got %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if len(result.Summary.Errors) != 1 {
		t.Fatalf("expected one error message, got %+v", result.Summary)
	}
}

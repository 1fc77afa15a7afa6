package discovery

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeDiscoveryRepo struct {
	templates   map[uuid.UUID]*models.ContestTemplate
	instances   map[uuid.UUID]*models.ContestInstance
	transitions []models.ContestStateTransition
	frozenCount int64
}

func newFakeDiscoveryRepo() *fakeDiscoveryRepo {
	return &fakeDiscoveryRepo{
		templates: map[uuid.UUID]*models.ContestTemplate{},
		instances: map[uuid.UUID]*models.ContestInstance{},
	}
}

func (f *fakeDiscoveryRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeDiscoveryRepo) FindSystemTemplate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error) {
	for _, template := range f.templates {
		if template.ProviderTournamentID == providerTournamentID &&
			template.SeasonYear == seasonYear && template.IsSystemGenerated {
			copied := *template
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDiscoveryRepo) FindSystemTemplateForUpdate(ctx context.Context, providerTournamentID string, seasonYear int) (*models.ContestTemplate, error) {
	return f.FindSystemTemplate(ctx, providerTournamentID, seasonYear)
}

func (f *fakeDiscoveryRepo) CreateTemplate(ctx context.Context, template *models.ContestTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	copied := *template
	f.templates[template.ID] = &copied
	return nil
}

func (f *fakeDiscoveryRepo) UpdateTemplate(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	template, ok := f.templates[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		template.Status = status.(enums.TemplateStatus)
	}
	if name, ok := updates["name"]; ok {
		template.Name = name.(string)
	}
	if start, ok := updates["tournament_start"]; ok {
		template.TournamentStart = start.(time.Time)
	}
	if end, ok := updates["tournament_end"]; ok {
		template.TournamentEnd = end.(time.Time)
	}
	return nil
}

func (f *fakeDiscoveryRepo) CreateInstance(ctx context.Context, instance *models.ContestInstance) error {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	if instance.IsPrimaryMarketing {
		for _, existing := range f.instances {
			if existing.TemplateID == instance.TemplateID && existing.IsPrimaryMarketing {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	copied := *instance
	f.instances[instance.ID] = &copied
	return nil
}

func (f *fakeDiscoveryRepo) FindInstancesByTemplate(ctx context.Context, templateID uuid.UUID) ([]models.ContestInstance, error) {
	var out []models.ContestInstance
	for _, instance := range f.instances {
		if instance.TemplateID == templateID {
			out = append(out, *instance)
		}
	}
	return out, nil
}

func (f *fakeDiscoveryRepo) UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error {
	instance, ok := f.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	instance.Status = status
	return nil
}

func (f *fakeDiscoveryRepo) CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error {
	f.transitions = append(f.transitions, *transition)
	return nil
}

func (f *fakeDiscoveryRepo) CountFrozenInstances(ctx context.Context, templateID uuid.UUID) (int64, error) {
	return f.frozenCount, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:                 repo,
		DB:                   fakeTxRunner{},
		Logger:               logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		HorizonDays:          120,
		DefaultEntryFeeCents: 1000,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func validInput() TournamentInput {
	return TournamentInput{
		ProviderTournamentID: "pga_test_2026",
		SeasonYear:           2026,
		Name:                 "Test Championship",
		StartTime:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		EndTime:              time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC),
		Status:               enums.TemplateStatusScheduled,
	}
}

var discoveryNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestDiscoverTournamentCreatesTemplateAndPrimaryInstance(t *testing.T) {
	repo := newFakeDiscoveryRepo()
	svc := newTestService(t, repo)

	result, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !result.Success || !result.Created || result.Updated {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", result.StatusCode)
	}
	if result.TemplateID == nil {
		t.Fatal("expected template id")
	}

	template := repo.templates[*result.TemplateID]
	if template == nil {
		t.Fatal("template not persisted")
	}
	if !template.IsSystemGenerated {
		t.Fatal("expected system-generated template")
	}

	primary := 0
	for _, instance := range repo.instances {
		if instance.TemplateID != template.ID {
			continue
		}
		if !instance.IsPrimaryMarketing {
			t.Fatal("unexpected non-primary instance created by discovery")
		}
		if instance.Status != enums.ContestStatusScheduled {
			t.Fatalf("expected SCHEDULED instance, got %s", instance.Status)
		}
		primary++
	}
	if primary != 1 {
		t.Fatalf("expected exactly one primary marketing instance, got %d", primary)
	}
}

func TestDiscoverTournamentIsIdempotent(t *testing.T) {
	repo := newFakeDiscoveryRepo()
	svc := newTestService(t, repo)

	first, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("first discover: %v", err)
	}
	second, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("second discover: %v", err)
	}

	if *first.TemplateID != *second.TemplateID {
		t.Fatalf("template ids differ: %s vs %s", first.TemplateID, second.TemplateID)
	}
	if second.Created {
		t.Fatal("second call must not create")
	}
	if second.Updated {
		t.Fatal("identical input must not report an update")
	}
	if len(repo.instances) != 1 {
		t.Fatalf("expected one instance after replay, got %d", len(repo.instances))
	}
	if len(repo.transitions) != 0 {
		t.Fatalf("expected zero transitions after replay, got %d", len(repo.transitions))
	}
}

func TestDiscoverTournamentValidation(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(input *TournamentInput)
		wantCode string
	}{
		{"blank provider id", func(in *TournamentInput) { in.ProviderTournamentID = "  " }, ErrCodeMissingProviderID},
		{"season too early", func(in *TournamentInput) { in.SeasonYear = 1999 }, ErrCodeSeasonOutOfRange},
		{"season too late", func(in *TournamentInput) { in.SeasonYear = 2100 }, ErrCodeSeasonOutOfRange},
		{"reversed window", func(in *TournamentInput) { in.StartTime, in.EndTime = in.EndTime, in.StartTime }, ErrCodeInvalidTimeWindow},
		{"zero-length window", func(in *TournamentInput) { in.EndTime = in.StartTime }, ErrCodeInvalidTimeWindow},
		{"unknown status", func(in *TournamentInput) { in.Status = "POSTPONED" }, ErrCodeUnknownStatus},
		{"far future", func(in *TournamentInput) {
			in.StartTime = discoveryNow.AddDate(1, 0, 0)
			in.EndTime = in.StartTime.AddDate(0, 0, 4)
		}, ErrCodeOutsideHorizon},
		{"far past", func(in *TournamentInput) {
			in.StartTime = discoveryNow.AddDate(-1, 0, 0)
			in.EndTime = in.StartTime.AddDate(0, 0, 4)
		}, ErrCodeOutsideHorizon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeDiscoveryRepo()
			svc := newTestService(t, repo)

			input := validInput()
			tc.mutate(&input)

			result, err := svc.DiscoverTournament(context.Background(), input, discoveryNow)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
			if result.Success {
				t.Fatal("expected failure result")
			}
			if result.ErrorCode != tc.wantCode {
				t.Fatalf("expected %s, got %s", tc.wantCode, result.ErrorCode)
			}
			if len(repo.templates) != 0 || len(repo.instances) != 0 {
				t.Fatal("validation failure must write nothing")
			}
		})
	}
}

func TestTournamentTemplateLookup(t *testing.T) {
	repo := newFakeDiscoveryRepo()
	svc := newTestService(t, repo)

	created, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("seed discover: %v", err)
	}

	template, err := svc.TournamentTemplate(context.Background(), "pga_test_2026", 2026)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if template.ID != *created.TemplateID {
		t.Fatalf("expected template %s, got %s", created.TemplateID, template.ID)
	}

	if _, err := svc.TournamentTemplate(context.Background(), "pga_test_2026", 2025); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for other season, got %v", err)
	}
	if _, err := svc.TournamentTemplate(context.Background(), "  ", 2026); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for blank id, got %v", err)
	}
}

func TestDiscoverTournamentCancellationCascade(t *testing.T) {
	repo := newFakeDiscoveryRepo()
	svc := newTestService(t, repo)

	created, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("seed discover: %v", err)
	}
	templateID := *created.TemplateID

	// Sibling instances in every state the cascade must handle.
	states := []enums.ContestStatus{
		enums.ContestStatusLocked,
		enums.ContestStatusComplete,
		enums.ContestStatusCancelled,
	}
	for _, status := range states {
		instance := &models.ContestInstance{
			ID:         uuid.New(),
			TemplateID: templateID,
			Status:     status,
			SeasonYear: 2026,
		}
		repo.instances[instance.ID] = instance
	}

	input := validInput()
	input.Status = enums.TemplateStatusCancelled
	result, err := svc.DiscoverTournament(context.Background(), input, discoveryNow)
	if err != nil {
		t.Fatalf("cancel discover: %v", err)
	}
	if !result.Updated {
		t.Fatal("expected cascade to report an update")
	}

	if repo.templates[templateID].Status != enums.TemplateStatusCancelled {
		t.Fatal("template not cancelled")
	}

	// The SCHEDULED primary and the LOCKED sibling cascade; COMPLETE and
	// already-CANCELLED are untouched.
	if len(repo.transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(repo.transitions))
	}
	for _, transition := range repo.transitions {
		if transition.TriggeredBy != enums.TriggerProviderTournamentCancelled {
			t.Fatalf("unexpected trigger %s", transition.TriggeredBy)
		}
		if transition.FromState == enums.ContestStatusComplete ||
			transition.FromState == enums.ContestStatusCancelled {
			t.Fatalf("terminal instance cascaded from %s", transition.FromState)
		}
	}
	for _, instance := range repo.instances {
		if instance.Status == enums.ContestStatusComplete {
			continue
		}
		if instance.Status != enums.ContestStatusCancelled {
			t.Fatalf("instance left in %s", instance.Status)
		}
	}
}

func TestDiscoverTournamentMetadataUpdateAndFreeze(t *testing.T) {
	repo := newFakeDiscoveryRepo()
	svc := newTestService(t, repo)

	created, err := svc.DiscoverTournament(context.Background(), validInput(), discoveryNow)
	if err != nil {
		t.Fatalf("seed discover: %v", err)
	}
	templateID := *created.TemplateID

	renamed := validInput()
	renamed.Name = "Renamed Championship"
	result, err := svc.DiscoverTournament(context.Background(), renamed, discoveryNow)
	if err != nil {
		t.Fatalf("rename discover: %v", err)
	}
	if !result.Updated {
		t.Fatal("expected metadata update before freeze")
	}
	if repo.templates[templateID].Name != "Renamed Championship" {
		t.Fatal("name not updated")
	}

	// Once any instance has reached LOCKED or beyond, metadata is frozen but
	// the call still succeeds.
	repo.frozenCount = 1
	frozen := validInput()
	frozen.Name = "Too Late Rename"
	result, err = svc.DiscoverTournament(context.Background(), frozen, discoveryNow)
	if err != nil {
		t.Fatalf("frozen discover: %v", err)
	}
	if !result.Success {
		t.Fatal("frozen update must still succeed")
	}
	if result.Updated {
		t.Fatal("frozen update must be a no-op")
	}
	if repo.templates[templateID].Name != "Renamed Championship" {
		t.Fatal("frozen template was mutated")
	}
}

package lifecycle

import (
	"context"
	"io"
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

type fakeLifecycleRepo struct {
	instances   map[uuid.UUID]*models.ContestInstance
	transitions []models.ContestStateTransition
}

func newFakeLifecycleRepo(instances ...*models.ContestInstance) *fakeLifecycleRepo {
	repo := &fakeLifecycleRepo{instances: map[uuid.UUID]*models.ContestInstance{}}
	for _, instance := range instances {
		repo.instances[instance.ID] = instance
	}
	return repo
}

func (f *fakeLifecycleRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeLifecycleRepo) FindInstance(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error) {
	instance, ok := f.instances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *instance
	return &copied, nil
}

func (f *fakeLifecycleRepo) FindInstanceForUpdate(ctx context.Context, id uuid.UUID) (*models.ContestInstance, error) {
	return f.FindInstance(ctx, id)
}

func (f *fakeLifecycleRepo) UpdateInstanceStatus(ctx context.Context, id uuid.UUID, status enums.ContestStatus) error {
	instance, ok := f.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	instance.Status = status
	return nil
}

func (f *fakeLifecycleRepo) CreateTransition(ctx context.Context, transition *models.ContestStateTransition) error {
	f.transitions = append(f.transitions, *transition)
	return nil
}

func (f *fakeLifecycleRepo) ListTransitions(ctx context.Context, instanceID uuid.UUID) ([]models.ContestStateTransition, error) {
	var out []models.ContestStateTransition
	for _, transition := range f.transitions {
		if transition.ContestInstanceID == instanceID {
			out = append(out, transition)
		}
	}
	return out, nil
}

func (f *fakeLifecycleRepo) FindDueForLock(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error) {
	var out []models.ContestInstance
	for _, instance := range f.instances {
		if instance.Status == enums.ContestStatusScheduled && !instance.LockTime.After(now) {
			out = append(out, *instance)
		}
	}
	return out, nil
}

func (f *fakeLifecycleRepo) FindDueForLive(ctx context.Context, now time.Time, limit int) ([]models.ContestInstance, error) {
	var out []models.ContestInstance
	for _, instance := range f.instances {
		if instance.Status == enums.ContestStatusLocked && !instance.TournamentStart.After(now) {
			out = append(out, *instance)
		}
	}
	return out, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, DB: fakeTxRunner{}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func scheduledInstance(lockTime, start time.Time) *models.ContestInstance {
	return &models.ContestInstance{
		ID:              uuid.New(),
		TemplateID:      uuid.New(),
		Status:          enums.ContestStatusScheduled,
		LockTime:        lockTime,
		TournamentStart: start,
		TournamentEnd:   start.Add(96 * time.Hour),
	}
}

func TestTransitionAppliesAndRecordsAudit(t *testing.T) {
	now := time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC)
	instance := scheduledInstance(now.Add(-time.Minute), now.Add(time.Hour))
	repo := newFakeLifecycleRepo(instance)
	svc := newTestService(t, repo)

	result, err := svc.Transition(context.Background(), TransitionInput{
		InstanceID: instance.ID,
		Trigger:    enums.TriggerLockTimeReached,
		OccurredAt: now,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected transition to change state")
	}
	if result.FromState != enums.ContestStatusScheduled || result.ToState != enums.ContestStatusLocked {
		t.Fatalf("unexpected states: %s -> %s", result.FromState, result.ToState)
	}
	if instance.Status != enums.ContestStatusLocked {
		t.Fatalf("instance status not updated: %s", instance.Status)
	}
	if len(repo.transitions) != 1 {
		t.Fatalf("expected one transition record, got %d", len(repo.transitions))
	}
	record := repo.transitions[0]
	if record.TriggeredBy != enums.TriggerLockTimeReached {
		t.Fatalf("unexpected trigger recorded: %s", record.TriggeredBy)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected occurred_at: %s", record.OccurredAt)
	}
}

func TestTransitionIsIdempotentOnRefire(t *testing.T) {
	now := time.Now().UTC()
	instance := scheduledInstance(now.Add(-time.Minute), now.Add(time.Hour))
	instance.Status = enums.ContestStatusLocked
	repo := newFakeLifecycleRepo(instance)
	svc := newTestService(t, repo)

	result, err := svc.Transition(context.Background(), TransitionInput{
		InstanceID: instance.ID,
		Trigger:    enums.TriggerLockTimeReached,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if result.Changed {
		t.Fatal("expected no change on duplicate trigger")
	}
	if len(repo.transitions) != 0 {
		t.Fatalf("expected no transition record, got %d", len(repo.transitions))
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	now := time.Now().UTC()
	instance := scheduledInstance(now.Add(time.Hour), now.Add(2*time.Hour))
	repo := newFakeLifecycleRepo(instance)
	svc := newTestService(t, repo)

	_, err := svc.Transition(context.Background(), TransitionInput{
		InstanceID: instance.ID,
		Trigger:    enums.TriggerSettlementCompleted,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
	if instance.Status != enums.ContestStatusScheduled {
		t.Fatalf("status must be unchanged, got %s", instance.Status)
	}
}

func TestTransitionUnknownInstance(t *testing.T) {
	repo := newFakeLifecycleRepo()
	svc := newTestService(t, repo)

	_, err := svc.Transition(context.Background(), TransitionInput{
		InstanceID: uuid.New(),
		Trigger:    enums.TriggerLockTimeReached,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSweepAdvancesDueContests(t *testing.T) {
	now := time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC)

	dueLock := scheduledInstance(now.Add(-time.Minute), now.Add(time.Hour))
	notDue := scheduledInstance(now.Add(time.Hour), now.Add(2*time.Hour))
	dueLive := scheduledInstance(now.Add(-2*time.Hour), now.Add(-time.Minute))
	dueLive.Status = enums.ContestStatusLocked

	repo := newFakeLifecycleRepo(dueLock, notDue, dueLive)
	svc := newTestService(t, repo)

	result, err := svc.Sweep(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Locked != 1 {
		t.Fatalf("expected 1 locked, got %d", result.Locked)
	}
	if result.Live != 1 {
		t.Fatalf("expected 1 live, got %d", result.Live)
	}
	if dueLock.Status != enums.ContestStatusLocked {
		t.Fatalf("due contest not locked: %s", dueLock.Status)
	}
	if notDue.Status != enums.ContestStatusScheduled {
		t.Fatalf("future contest must stay scheduled: %s", notDue.Status)
	}
	if dueLive.Status != enums.ContestStatusLive {
		t.Fatalf("started contest not live: %s", dueLive.Status)
	}
}

func TestSweepTwiceIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	instance := scheduledInstance(now.Add(-time.Minute), now.Add(time.Hour))
	repo := newFakeLifecycleRepo(instance)
	svc := newTestService(t, repo)

	if _, err := svc.Sweep(context.Background(), now, 100); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	result, err := svc.Sweep(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Locked != 0 || result.Live != 0 {
		t.Fatalf("second sweep must be a no-op, got %+v", result)
	}
	if len(repo.transitions) != 1 {
		t.Fatalf("expected a single transition record, got %d", len(repo.transitions))
	}
}

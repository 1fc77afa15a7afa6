package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) { return f.acquired, nil }

func (f *fakeLock) Release(ctx context.Context) error {
	f.releases++
	return nil
}

type fakeJob struct {
	name string
	runs int
	err  error
}

func (f *fakeJob) Name() string { return f.name }

func (f *fakeJob) Run(ctx context.Context) error {
	f.runs++
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &fakeJob{name: "noop"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: false},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("jobs must not run without the lock, ran %d times", job.runs)
	}
}

func TestRunCycleRunsEveryJobAndReleasesLock(t *testing.T) {
	lock := &fakeLock{acquired: true}
	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	second := &fakeJob{name: "second"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(failing, second),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if failing.runs != 1 || second.runs != 1 {
		t.Fatalf("every job must run once, got %d and %d", failing.runs, second.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("lock must be released once, got %d", lock.releases)
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &fakeJob{name: "real"})
	registry.Register(nil)
	if len(registry.Jobs()) != 1 {
		t.Fatalf("expected one job, got %d", len(registry.Jobs()))
	}
}

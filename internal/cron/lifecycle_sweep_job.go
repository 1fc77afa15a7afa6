package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fairwaygames/clubhouse-backend/internal/lifecycle"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

const defaultSweepBatchSize = 100

// LifecycleSweepJobParams configure the time-based contest advancer.
type LifecycleSweepJobParams struct {
	Logger    *logger.Logger
	Lifecycle lifecycle.Service
	BatchSize int
}

// NewLifecycleSweepJob builds the job that fires LOCK_TIME_REACHED and
// START_TIME_REACHED for every contest whose deadline has passed.
func NewLifecycleSweepJob(params LifecycleSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("lifecycle service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &lifecycleSweepJob{
		logg:      params.Logger,
		lifecycle: params.Lifecycle,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type lifecycleSweepJob struct {
	logg      *logger.Logger
	lifecycle lifecycle.Service
	batchSize int
	now       func() time.Time
}

func (j *lifecycleSweepJob) Name() string { return "lifecycle-sweep" }

func (j *lifecycleSweepJob) Run(ctx context.Context) error {
	result, err := j.lifecycle.Sweep(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("lifecycle sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"locked": result.Locked,
		"live":   result.Live,
	})
	j.logg.Info(logCtx, "lifecycle sweep complete")
	return nil
}

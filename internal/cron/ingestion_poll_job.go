package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/fairwaygames/clubhouse-backend/internal/ingestion"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type ingestibleLister interface {
	ListIngestibleInstanceIDs(ctx context.Context) ([]uuid.UUID, error)
}

// IngestionPollJobParams configure the provider polling job.
type IngestionPollJobParams struct {
	Logger    *logger.Logger
	Ingestion ingestion.Service
	Lister    ingestibleLister
}

// NewIngestionPollJob builds the job that polls the provider for every
// contest currently accepting snapshots. One contest failing does not stop
// the rest of the list.
func NewIngestionPollJob(params IngestionPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ingestion == nil {
		return nil, fmt.Errorf("ingestion service required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("ingestible lister required")
	}
	return &ingestionPollJob{
		logg:      params.Logger,
		ingestion: params.Ingestion,
		lister:    params.Lister,
	}, nil
}

type ingestionPollJob struct {
	logg      *logger.Logger
	ingestion ingestion.Service
	lister    ingestibleLister
}

func (j *ingestionPollJob) Name() string { return "ingestion-poll" }

func (j *ingestionPollJob) Run(ctx context.Context) error {
	instanceIDs, err := j.lister.ListIngestibleInstanceIDs(ctx)
	if err != nil {
		return fmt.Errorf("list ingestible contests: %w", err)
	}

	var errs []error
	processed, skipped := 0, 0
	for _, instanceID := range instanceIDs {
		result, err := j.ingestion.PollAndIngest(ctx, instanceID, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll contest %s: %w", instanceID, err))
			continue
		}
		processed += result.Summary.Processed
		skipped += result.Summary.Skipped
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"contests":  len(instanceIDs),
		"processed": processed,
		"skipped":   skipped,
	})
	j.logg.Info(logCtx, "ingestion poll cycle complete")
	return multierr.Combine(errs...)
}

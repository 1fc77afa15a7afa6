package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fairwaygames/clubhouse-backend/pkg/canonicaljson"
	"github.com/fairwaygames/clubhouse-backend/pkg/db/models"
	dbtypes "github.com/fairwaygames/clubhouse-backend/pkg/db/types"
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
	"github.com/fairwaygames/clubhouse-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Standing is one ranked line of the final scores document.
type Standing struct {
	Rank        int       `json:"rank"`
	EntryID     uuid.UUID `json:"entry_id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalPoints int       `json:"total_points"`
	PayoutCents int64     `json:"payout_cents"`
}

// Engine settles one contest instance exactly once per snapshot binding.
type Engine interface {
	ExecuteSettlement(ctx context.Context, instanceID, snapshotID uuid.UUID, snapshotHash string) (*models.SettlementAudit, error)
	Standings(ctx context.Context, instanceID uuid.UUID) ([]Standing, error)
}

type engine struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	rakeBps int
	now     func() time.Time
}

// EngineParams configure the settlement engine.
type EngineParams struct {
	Repo    Repository
	DB      txRunner
	Logger  *logger.Logger
	RakeBps int
}

// NewEngine builds the settlement engine with the required dependencies.
func NewEngine(params EngineParams) (Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.RakeBps < 0 || params.RakeBps >= 10000 {
		return nil, fmt.Errorf("rake basis points out of range")
	}
	return &engine{
		repo:    params.Repo,
		tx:      params.DB,
		logg:    params.Logger,
		rakeBps: params.RakeBps,
		now:     time.Now,
	}, nil
}

// ExecuteSettlement runs the whole settlement in one transaction: row lock,
// idempotent short-circuit, ranking, payouts, audit + score history + the
// COMPLETE transition. Any failure rolls the entire run back, then a FAILED
// audit row is recorded in its own transaction so every attempt leaves a row.
func (e *engine) ExecuteSettlement(ctx context.Context, instanceID, snapshotID uuid.UUID, snapshotHash string) (*models.SettlementAudit, error) {
	if instanceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	if snapshotID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot id required")
	}
	if snapshotHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot hash required")
	}
	ctx = e.logg.WithContestID(ctx, instanceID)

	var audit *models.SettlementAudit
	var replayed bool
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)

		instance, err := repo.FindInstanceForUpdate(ctx, instanceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
		}

		existing, err := repo.FindCompleteAudit(ctx, instanceID, snapshotID)
		if err == nil {
			// Replay: return the existing record untouched, write nothing.
			audit = existing
			replayed = true
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up settlement audit")
		}

		if instance.Status != enums.ContestStatusLive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("contest in state %s cannot be settled", instance.Status))
		}

		standings, err := e.computeStandings(ctx, repo, instance)
		if err != nil {
			return err
		}

		eventIDs, err := repo.ListValidEventIDs(ctx, instanceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list applied events")
		}

		finalScores, err := canonicaljson.Marshal(standings)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "canonicalize final scores")
		}
		scoreHash, err := canonicaljson.Hash(standings)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash final scores")
		}

		completedAt := e.now().UTC()
		audit = &models.SettlementAudit{
			ContestInstanceID: instanceID,
			SnapshotID:        snapshotID,
			SnapshotHash:      snapshotHash,
			Status:            enums.SettlementStatusComplete,
			EventIDsApplied:   dbtypes.UUIDArray(eventIDs),
			FinalScores:       datatypes.JSON(finalScores),
			CompletedAt:       &completedAt,
		}
		if err := repo.CreateAudit(ctx, audit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write settlement audit")
		}

		history := &models.ScoreHistory{
			SettlementAuditID: audit.ID,
			ContestInstanceID: instanceID,
			Scores:            datatypes.JSON(finalScores),
			ScoreHash:         scoreHash,
		}
		if err := repo.CreateScoreHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write score history")
		}

		if err := repo.UpdateInstanceStatus(ctx, instanceID, enums.ContestStatusComplete); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete contest instance")
		}
		transition := &models.ContestStateTransition{
			ContestInstanceID: instanceID,
			FromState:         instance.Status,
			ToState:           enums.ContestStatusComplete,
			TriggeredBy:       enums.TriggerSettlementCompleted,
			OccurredAt:        completedAt,
		}
		if err := repo.CreateTransition(ctx, transition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record completion transition")
		}
		return nil
	})
	if err != nil {
		e.recordFailedAttempt(ctx, instanceID, snapshotID, snapshotHash, err)
		return nil, err
	}

	if replayed {
		e.logg.Info(ctx, "settlement replayed existing complete audit")
	} else {
		e.logg.Info(ctx, "settlement completed")
	}
	return audit, nil
}

// computeStandings ranks confirmed entries by total points, ties broken by
// the lower entry id (lexicographic), never by insertion order.
func (e *engine) computeStandings(ctx context.Context, repo Repository, instance *models.ContestInstance) ([]Standing, error) {
	entries, err := repo.ListConfirmedEntries(ctx, instance.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest entries")
	}
	if len(entries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no confirmed entries to settle")
	}

	standings := make([]Standing, 0, len(entries))
	for _, entry := range entries {
		total := 0
		for _, score := range entry.Scores {
			total += score.Points
		}
		standings = append(standings, Standing{
			EntryID:     entry.ID,
			UserID:      entry.UserID,
			TotalPoints: total,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].TotalPoints != standings[j].TotalPoints {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		return standings[i].EntryID.String() < standings[j].EntryID.String()
	})

	payouts, err := ComputePayouts(instance.PayoutStructure, instance.EntryFeeCents, len(entries), e.rakeBps)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		standings[i].Rank = i + 1
		if i < len(payouts) {
			standings[i].PayoutCents = payouts[i]
		}
	}
	return standings, nil
}

// recordFailedAttempt writes the FAILED audit row outside the rolled-back
// transaction. Best effort: a failure here is logged, never surfaced.
func (e *engine) recordFailedAttempt(ctx context.Context, instanceID, snapshotID uuid.UUID, snapshotHash string, cause error) {
	if pkgerrors.IsCode(cause, pkgerrors.CodeNotFound) ||
		pkgerrors.IsCode(cause, pkgerrors.CodeValidation) ||
		pkgerrors.IsCode(cause, pkgerrors.CodeStateConflict) {
		return
	}
	message := cause.Error()
	failed := &models.SettlementAudit{
		ContestInstanceID: instanceID,
		SnapshotID:        snapshotID,
		SnapshotHash:      snapshotHash,
		Status:            enums.SettlementStatusFailed,
		ErrorMessage:      &message,
	}
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return e.repo.WithTx(tx).CreateAudit(ctx, failed)
	})
	if err != nil {
		e.logg.Error(ctx, "recording failed settlement attempt", err)
	}
}

// Standings reads the settled final scores for an instance from its COMPLETE
// audit; unsettled contests report a live ranking from current score rows.
func (e *engine) Standings(ctx context.Context, instanceID uuid.UUID) ([]Standing, error) {
	if instanceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contest instance id required")
	}
	instance, err := e.repo.FindInstance(ctx, instanceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contest instance not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contest instance")
	}
	if instance.Status == enums.ContestStatusComplete {
		return e.settledStandings(ctx, instanceID)
	}
	standings, err := e.computeStandings(ctx, e.repo, instance)
	if err != nil {
		return nil, err
	}
	return standings, nil
}

// settledStandings decodes the final scores document the settlement run
// persisted. A COMPLETE instance without a COMPLETE audit cannot happen
// outside manual intervention.
func (e *engine) settledStandings(ctx context.Context, instanceID uuid.UUID) ([]Standing, error) {
	audit, err := e.repo.FindLatestCompleteAudit(ctx, instanceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeInvariantViolation,
				"settled contest has no complete settlement audit")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settlement audit")
	}
	var standings []Standing
	if err := json.Unmarshal(audit.FinalScores, &standings); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode settled final scores")
	}
	return standings, nil
}

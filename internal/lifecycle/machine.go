package lifecycle

import (
	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
)

// transitionTable is the single source of truth for legal lifecycle moves.
// A (state, trigger) pair absent from the table is rejected; COMPLETE and
// CANCELLED have no outgoing edges.
var transitionTable = map[enums.ContestStatus]map[enums.TransitionTrigger]enums.ContestStatus{
	enums.ContestStatusScheduled: {
		enums.TriggerLockTimeReached:             enums.ContestStatusLocked,
		enums.TriggerProviderTournamentCancelled: enums.ContestStatusCancelled,
		enums.TriggerAdminOverride:               enums.ContestStatusCancelled,
	},
	enums.ContestStatusLocked: {
		enums.TriggerStartTimeReached:            enums.ContestStatusLive,
		enums.TriggerProviderTournamentCancelled: enums.ContestStatusCancelled,
		enums.TriggerAdminOverride:               enums.ContestStatusCancelled,
	},
	enums.ContestStatusLive: {
		enums.TriggerSettlementCompleted:         enums.ContestStatusComplete,
		enums.TriggerProviderTournamentCancelled: enums.ContestStatusCancelled,
		enums.TriggerAdminOverride:               enums.ContestStatusCancelled,
	},
}

// Next resolves the target state for a trigger fired in the given state.
// The second return is false when the move is not legal.
func Next(from enums.ContestStatus, trigger enums.TransitionTrigger) (enums.ContestStatus, bool) {
	edges, ok := transitionTable[from]
	if !ok {
		return "", false
	}
	to, ok := edges[trigger]
	return to, ok
}

// CanReach reports whether any trigger moves from -> to in one step.
func CanReach(from, to enums.ContestStatus) bool {
	for _, target := range transitionTable[from] {
		if target == to {
			return true
		}
	}
	return false
}

package enums

// TransitionTrigger names the cause recorded with every state transition.
type TransitionTrigger string

const (
	TriggerLockTimeReached             TransitionTrigger = "LOCK_TIME_REACHED"
	TriggerStartTimeReached            TransitionTrigger = "START_TIME_REACHED"
	TriggerSettlementCompleted         TransitionTrigger = "SETTLEMENT_COMPLETED"
	TriggerProviderTournamentCancelled TransitionTrigger = "PROVIDER_TOURNAMENT_CANCELLED"
	TriggerAdminOverride               TransitionTrigger = "ADMIN_OVERRIDE"
)

func (t TransitionTrigger) IsValid() bool {
	switch t {
	case TriggerLockTimeReached, TriggerStartTimeReached, TriggerSettlementCompleted,
		TriggerProviderTournamentCancelled, TriggerAdminOverride:
		return true
	}
	return false
}

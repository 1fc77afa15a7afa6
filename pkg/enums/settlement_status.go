package enums

// SettlementStatus tracks one settlement attempt.
type SettlementStatus string

const (
	SettlementStatusStarted  SettlementStatus = "STARTED"
	SettlementStatusComplete SettlementStatus = "COMPLETE"
	SettlementStatusFailed   SettlementStatus = "FAILED"
)

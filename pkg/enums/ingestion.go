package enums

// Provider identifies the upstream sports data source.
type Provider string

const (
	ProviderSportsData Provider = "SPORTSDATA"
)

// IngestionEventType classifies an event store row.
type IngestionEventType string

const (
	IngestionEventLeaderboardSnapshot IngestionEventType = "LEADERBOARD_SNAPSHOT"
)

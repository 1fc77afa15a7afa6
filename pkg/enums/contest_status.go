package enums

// ContestStatus is the lifecycle state of a contest instance.
type ContestStatus string

const (
	// ContestStatusScheduled means the contest is joinable and not yet locked.
	ContestStatusScheduled ContestStatus = "SCHEDULED"
	// ContestStatusLocked means entries are frozen ahead of the tournament.
	ContestStatusLocked ContestStatus = "LOCKED"
	// ContestStatusLive means the underlying tournament is in play.
	ContestStatusLive ContestStatus = "LIVE"
	// ContestStatusComplete means settlement finished; terminal.
	ContestStatusComplete ContestStatus = "COMPLETE"
	// ContestStatusCancelled means the contest was withdrawn; terminal.
	ContestStatusCancelled ContestStatus = "CANCELLED"
)

func (s ContestStatus) IsValid() bool {
	switch s {
	case ContestStatusScheduled, ContestStatusLocked, ContestStatusLive,
		ContestStatusComplete, ContestStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this state.
func (s ContestStatus) IsTerminal() bool {
	return s == ContestStatusComplete || s == ContestStatusCancelled
}

package enums

// PayoutStructure selects how the prize pool is split among ranked entries.
type PayoutStructure string

const (
	// PayoutWinnerTakesAll pays the full pool to first place.
	PayoutWinnerTakesAll PayoutStructure = "WINNER_TAKES_ALL"
	// PayoutTopThreeSplit pays 70/20/10 across the top three places.
	PayoutTopThreeSplit PayoutStructure = "TOP_THREE_SPLIT"
)

func (p PayoutStructure) IsValid() bool {
	return p == PayoutWinnerTakesAll || p == PayoutTopThreeSplit
}

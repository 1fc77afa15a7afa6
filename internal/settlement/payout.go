package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/fairwaygames/clubhouse-backend/pkg/enums"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
)

var payoutSplits = map[enums.PayoutStructure][]decimal.Decimal{
	enums.PayoutWinnerTakesAll: {
		decimal.NewFromInt(1),
	},
	enums.PayoutTopThreeSplit: {
		decimal.NewFromFloat(0.70),
		decimal.NewFromFloat(0.20),
		decimal.NewFromFloat(0.10),
	},
}

// ComputePayouts returns the payout in cents per finishing place. The pool is
// the sum of entry fees minus the rake; each place's share is rounded
// independently, never pro-rated afterward, so the math is replay-stable.
func ComputePayouts(structure enums.PayoutStructure, entryFeeCents int, entryCount int, rakeBps int) ([]int64, error) {
	splits, ok := payoutSplits[structure]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout structure")
	}
	if entryCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one entry required")
	}
	if rakeBps < 0 || rakeBps >= 10000 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rake must be in [0, 10000) basis points")
	}

	pool := decimal.NewFromInt(int64(entryFeeCents)).Mul(decimal.NewFromInt(int64(entryCount)))
	rake := pool.Mul(decimal.NewFromInt(int64(rakeBps))).Div(decimal.NewFromInt(10000))
	net := pool.Sub(rake)

	places := len(splits)
	if entryCount < places {
		places = entryCount
	}

	payouts := make([]int64, places)
	for i := 0; i < places; i++ {
		payouts[i] = net.Mul(splits[i]).Round(0).IntPart()
	}
	return payouts, nil
}

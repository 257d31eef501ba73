package price

import (
	"math/big"
	"time"
)

// Reading is a single report from the external price feed. Price is signed as
// delivered by the feed; validation happens in the oracle adapter.
type Reading struct {
	RoundID         uint64
	Price           *big.Int
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// Complete reports whether the reading answers its own round rather than
// carrying over a stale answer from an earlier one.
func (r Reading) Complete() bool {
	return r.AnsweredInRound >= r.RoundID
}

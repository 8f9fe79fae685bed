// internal/payout/resolve.go
package payout

import (
	"fmt"

	"DrawLedger/internal/draw"
	"DrawLedger/internal/fixedpoint"
)

// Outcome is the pure result of resolving one bet against a fulfilled draw.
// It carries no payment state; whether the payout can actually be made is
// the pool's decision.
type Outcome struct {
	Won    bool
	Payout int64 // Fixed-point: amount scale, zero for losers
}

// Resolve compares a bet's chosen number against the winning number for its
// type and computes the payout on the post-fee amount, truncated toward
// zero. The draw must have randomness delivered.
func Resolve(b *draw.Bet, d *draw.Draw, table *Table) (Outcome, error) {
	winning, ok := d.WinningNumber(b.Type)
	if !ok {
		return Outcome{}, fmt.Errorf("draw %s has no winning number for %s", d.DrawID, b.Type)
	}

	if b.Number != winning {
		return Outcome{}, nil
	}

	multiplier, ok := table.Get(b.Type)
	if !ok {
		return Outcome{}, fmt.Errorf("no multiplier for bet type %s", b.Type)
	}

	return Outcome{
		Won:    true,
		Payout: fixedpoint.ComputePayout(b.NetAmount(), multiplier),
	}, nil
}

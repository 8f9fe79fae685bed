// internal/command/bet.go
package command

import (
	"DrawLedger/internal/draw"

	"github.com/google/uuid"
)

// BetEntry is one wager inside a placement command.
type BetEntry struct {
	BetID  uuid.UUID
	Type   draw.BetType
	Number int64
	Amount int64 // Fixed-point: gross wager, amount scale
}

// PlaceBet places a single wager on an open draw.
type PlaceBet struct {
	CommandID uuid.UUID
	UserID    uuid.UUID
	DrawID    uuid.UUID
	Bet       BetEntry
	At        int64
}

func (c *PlaceBet) IdempotencyKey() string   { return c.CommandID.String() }
func (c *PlaceBet) CommandType() CommandType { return CommandTypePlaceBet }
func (c *PlaceBet) Timestamp() int64         { return c.At }

// PlaceBetBatch places several wagers atomically: every entry is validated
// up front and the whole batch aborts if any entry fails.
type PlaceBetBatch struct {
	CommandID uuid.UUID
	UserID    uuid.UUID
	DrawID    uuid.UUID
	Bets      []BetEntry
	At        int64
}

func (c *PlaceBetBatch) IdempotencyKey() string   { return c.CommandID.String() }
func (c *PlaceBetBatch) CommandType() CommandType { return CommandTypePlaceBetBatch }
func (c *PlaceBetBatch) Timestamp() int64         { return c.At }

// RetryUnpaidBet retries the payout of a won-but-unpaid bet after the pool
// has been replenished.
type RetryUnpaidBet struct {
	CommandID uuid.UUID
	BetID     uuid.UUID
	At        int64
}

func (c *RetryUnpaidBet) IdempotencyKey() string   { return c.CommandID.String() }
func (c *RetryUnpaidBet) CommandType() CommandType { return CommandTypeRetryUnpaidBet }
func (c *RetryUnpaidBet) Timestamp() int64         { return c.At }

// internal/draw/bet.go
package draw

import (
	"github.com/google/uuid"
)

// BetType discriminates the number-match games a draw hosts.
type BetType int32

const (
	BetTypeUnknown BetType = iota
	BetTypeTwoDigit
	BetTypeThreeDigit
	BetTypeFourDigit
)

func (bt BetType) String() string {
	switch bt {
	case BetTypeTwoDigit:
		return "TwoDigit"
	case BetTypeThreeDigit:
		return "ThreeDigit"
	case BetTypeFourDigit:
		return "FourDigit"
	default:
		return "Unknown"
	}
}

// Modulus returns the modular-reduction base for deriving this type's
// winning number from the draw's random value.
func (bt BetType) Modulus() int64 {
	switch bt {
	case BetTypeTwoDigit:
		return 100
	case BetTypeThreeDigit:
		return 1_000
	case BetTypeFourDigit:
		return 10_000
	default:
		return 0
	}
}

// Valid reports whether bt is a playable bet type.
func (bt BetType) Valid() bool {
	return bt == BetTypeTwoDigit || bt == BetTypeThreeDigit || bt == BetTypeFourDigit
}

// ParseBetType is the inverse of String, used when loading persisted rows.
func ParseBetType(s string) BetType {
	switch s {
	case "TwoDigit":
		return BetTypeTwoDigit
	case "ThreeDigit":
		return BetTypeThreeDigit
	case "FourDigit":
		return BetTypeFourDigit
	default:
		return BetTypeUnknown
	}
}

// BetStatus tracks the payment state of a bet. Losing bets stay Pending
// with Resolved=true, Won=false; the status only advances for winners.
type BetStatus int32

const (
	BetStatusPending BetStatus = iota
	BetStatusPaid
	BetStatusUnpaid
)

func (bs BetStatus) String() string {
	switch bs {
	case BetStatusPending:
		return "Pending"
	case BetStatusPaid:
		return "Paid"
	case BetStatusUnpaid:
		return "Unpaid"
	default:
		return "Unknown"
	}
}

// ParseBetStatus is the inverse of String, used when loading persisted rows.
func ParseBetStatus(s string) BetStatus {
	switch s {
	case "Paid":
		return BetStatusPaid
	case "Unpaid":
		return BetStatusUnpaid
	default:
		return BetStatusPending
	}
}

// Bet is a single pool-backed wager inside a draw.
type Bet struct {
	BetID  uuid.UUID
	UserID uuid.UUID
	DrawID uuid.UUID
	Type   BetType
	Number int64
	Amount int64 // Fixed-point: gross wager, amount scale
	Fee    int64 // Fixed-point: accrued at placement, amount scale

	Resolved bool
	Won      bool
	Payout   int64 // Fixed-point: amount scale, set when resolved
	Status   BetStatus

	PlacedAt int64 // Unix millis, from the placing command
	Position int   // Index in the draw's registry; the resolution cursor walks it
	Version  int64 // Engine sequence of last mutation
}

// NetAmount is the post-fee stake the multiplier applies to.
func (b *Bet) NetAmount() int64 {
	return b.Amount - b.Fee
}

// internal/draw/draw.go
package draw

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition     = errors.New("invalid draw status transition")
	ErrExposureLimitExceeded = errors.New("exposure limit exceeded")
)

// DrawStatus tracks a draw through its lifecycle.
type DrawStatus int32

const (
	DrawStatusScheduled DrawStatus = iota
	DrawStatusOpen
	DrawStatusClosed
	DrawStatusVrfPending
	DrawStatusVrfFulfilled
	DrawStatusCompleted
	DrawStatusCancelled
)

func (ds DrawStatus) String() string {
	switch ds {
	case DrawStatusScheduled:
		return "Scheduled"
	case DrawStatusOpen:
		return "Open"
	case DrawStatusClosed:
		return "Closed"
	case DrawStatusVrfPending:
		return "VrfPending"
	case DrawStatusVrfFulfilled:
		return "VrfFulfilled"
	case DrawStatusCompleted:
		return "Completed"
	case DrawStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ParseDrawStatus is the inverse of String, used when loading persisted rows.
func ParseDrawStatus(s string) DrawStatus {
	switch s {
	case "Open":
		return DrawStatusOpen
	case "Closed":
		return DrawStatusClosed
	case "VrfPending":
		return DrawStatusVrfPending
	case "VrfFulfilled":
		return DrawStatusVrfFulfilled
	case "Completed":
		return DrawStatusCompleted
	case "Cancelled":
		return DrawStatusCancelled
	default:
		return DrawStatusScheduled
	}
}

// Terminal reports whether no further mutation is permitted.
func (ds DrawStatus) Terminal() bool {
	return ds == DrawStatusCompleted || ds == DrawStatusCancelled
}

// CanTransitionTo validates status transitions
func (ds DrawStatus) CanTransitionTo(next DrawStatus) bool {
	validTransitions := map[DrawStatus][]DrawStatus{
		DrawStatusScheduled: {
			DrawStatusOpen,
			DrawStatusCancelled, // Scrap a mis-scheduled draw before intake; nothing to refund
		},
		DrawStatusOpen: {
			DrawStatusClosed,
			DrawStatusCancelled,
		},
		DrawStatusClosed: {
			DrawStatusVrfPending, // Same closeDraw action
			DrawStatusCancelled,
		},
		DrawStatusVrfPending: {
			DrawStatusVrfFulfilled,
			DrawStatusCancelled, // Operator or stale-timeout path
		},
		DrawStatusVrfFulfilled: {
			DrawStatusCompleted, // Randomness consumed: no cancellation from here
		},
		// Completed and Cancelled are terminal
	}

	allowed, ok := validTransitions[ds]
	if !ok {
		return false
	}

	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}

	return false
}

// ExposureKey identifies a selectable number within a draw.
type ExposureKey struct {
	Type   BetType
	Number int64
}

// Draw is a single wagering round. It exclusively owns its bets (insertion
// order preserved for the resolution cursor) and its number-exposure entries.
type Draw struct {
	DrawID      uuid.UUID
	Label       string
	ScheduledAt int64 // Unix millis
	Status      DrawStatus

	OpenedAt    int64
	ClosedAt    int64
	CompletedAt int64
	CancelledAt int64

	VrfRequestID   uuid.UUID // Zero until closeDraw issues a request
	VrfRequestedAt int64
	Randomness     []uint64 // Delivered random value(s), empty until fulfilled

	TotalBets   int64
	TotalAmount int64 // Fixed-point: sum of gross wagers
	PaidOut     int64 // Fixed-point: payouts executed so far

	Bets     []*Bet                 // Insertion order
	Exposure map[ExposureKey]int64  // Cumulative wagered amount per number
	winning  map[BetType]int64      // Derived at fulfillment

	ResolutionCursor int   // Index of next unresolved bet in Bets
	Version          int64 // Engine sequence of last mutation
}

// NewDraw returns a freshly scheduled draw.
func NewDraw(drawID uuid.UUID, label string, scheduledAt int64) *Draw {
	return &Draw{
		DrawID:      drawID,
		Label:       label,
		ScheduledAt: scheduledAt,
		Status:      DrawStatusScheduled,
		Exposure:    make(map[ExposureKey]int64),
	}
}

// TransitionTo advances the draw status, enforcing the guard table.
func (d *Draw) TransitionTo(next DrawStatus) error {
	if !d.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	d.Status = next
	return nil
}

// CheckExposure rejects a wager that would push the cumulative amount on a
// single number past the ceiling. A ceiling of zero means unlimited.
func (d *Draw) CheckExposure(betType BetType, number, amount, ceiling int64) error {
	if ceiling <= 0 {
		return nil
	}
	key := ExposureKey{Type: betType, Number: number}
	if d.Exposure[key]+amount > ceiling {
		return ErrExposureLimitExceeded
	}
	return nil
}

// AddBet records an accepted bet: insertion-order registry, aggregate stats,
// and the number-exposure entry move together.
func (d *Draw) AddBet(b *Bet) {
	b.Position = len(d.Bets)
	d.Bets = append(d.Bets, b)
	d.TotalBets++
	d.TotalAmount += b.Amount

	key := ExposureKey{Type: b.Type, Number: b.Number}
	d.Exposure[key] += b.Amount
}

// ExposureOn returns the cumulative wagered amount against a number.
func (d *Draw) ExposureOn(betType BetType, number int64) int64 {
	return d.Exposure[ExposureKey{Type: betType, Number: number}]
}

// SetRandomness stores the delivered random value(s) and derives the winning
// number for every bet type by modular reduction of the first value.
func (d *Draw) SetRandomness(values []uint64) {
	d.Randomness = values
	d.winning = make(map[BetType]int64, 3)
	if len(values) == 0 {
		return
	}
	for _, bt := range []BetType{BetTypeTwoDigit, BetTypeThreeDigit, BetTypeFourDigit} {
		d.winning[bt] = int64(values[0] % uint64(bt.Modulus()))
	}
}

// RestoreWinning reinstalls persisted winning numbers when rebuilding a
// draw from storage, where the raw random values are not kept.
func (d *Draw) RestoreWinning(two, three, four int64) {
	d.winning = map[BetType]int64{
		BetTypeTwoDigit:   two,
		BetTypeThreeDigit: three,
		BetTypeFourDigit:  four,
	}
}

// WinningNumber returns the derived winning number for a bet type. The
// second return is false until randomness has been delivered.
func (d *Draw) WinningNumber(betType BetType) (int64, bool) {
	n, ok := d.winning[betType]
	return n, ok
}

// RemainingBets returns how many bets the resolution cursor has not yet
// passed over.
func (d *Draw) RemainingBets() int {
	if d.ResolutionCursor >= len(d.Bets) {
		return 0
	}
	return len(d.Bets) - d.ResolutionCursor
}

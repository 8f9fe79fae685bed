// internal/event/bet_events.go
package event

import "github.com/google/uuid"

type BetPlaced struct {
	BetID   uuid.UUID `json:"bet_id"`
	UserID  uuid.UUID `json:"user_id"`
	DrawID  uuid.UUID `json:"draw_id"`
	BetType string    `json:"bet_type"`
	Number  int64     `json:"number"`
	Amount  int64     `json:"amount"`
	Fee     int64     `json:"fee"`
}

func (e *BetPlaced) EventType() EventType { return EventTypeBetPlaced }

// BetResolved is emitted once per bet when the resolver passes it.
type BetResolved struct {
	BetID  uuid.UUID `json:"bet_id"`
	DrawID uuid.UUID `json:"draw_id"`
	Won    bool      `json:"won"`
	Payout int64     `json:"payout"`
	Paid   bool      `json:"paid"`
}

func (e *BetResolved) EventType() EventType { return EventTypeBetResolved }

// BetUnpaid is the distinct shortfall signal: a winning bet the pool could
// not cover at resolution time.
type BetUnpaid struct {
	BetID        uuid.UUID `json:"bet_id"`
	DrawID       uuid.UUID `json:"draw_id"`
	PayoutNeeded int64     `json:"payout_needed"`
	Available    int64     `json:"available"`
}

func (e *BetUnpaid) EventType() EventType { return EventTypeBetUnpaid }

// BetPaid is emitted when a retry settles a previously unpaid bet.
type BetPaid struct {
	BetID  uuid.UUID `json:"bet_id"`
	DrawID uuid.UUID `json:"draw_id"`
	Payout int64     `json:"payout"`
}

func (e *BetPaid) EventType() EventType { return EventTypeBetPaid }

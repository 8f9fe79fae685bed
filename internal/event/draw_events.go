// internal/event/draw_events.go
package event

import "github.com/google/uuid"

type DrawCreated struct {
	DrawID      uuid.UUID `json:"draw_id"`
	Label       string    `json:"label"`
	ScheduledAt int64     `json:"scheduled_at"`
}

func (e *DrawCreated) EventType() EventType { return EventTypeDrawCreated }

type DrawOpened struct {
	DrawID uuid.UUID `json:"draw_id"`
}

func (e *DrawOpened) EventType() EventType { return EventTypeDrawOpened }

type DrawClosed struct {
	DrawID      uuid.UUID `json:"draw_id"`
	TotalBets   int64     `json:"total_bets"`
	TotalAmount int64     `json:"total_amount"`
}

func (e *DrawClosed) EventType() EventType { return EventTypeDrawClosed }

type VrfRequested struct {
	DrawID    uuid.UUID `json:"draw_id"`
	RequestID uuid.UUID `json:"request_id"`
}

func (e *VrfRequested) EventType() EventType { return EventTypeVrfRequested }

type DrawResolved struct {
	DrawID         uuid.UUID `json:"draw_id"`
	WinningNumbers []int64   `json:"winning_numbers"` // 2-digit, 3-digit, 4-digit
	ResolvedBets   int64     `json:"resolved_bets"`
	PaidOut        int64     `json:"paid_out"`
}

func (e *DrawResolved) EventType() EventType { return EventTypeDrawResolved }

type DrawCancelled struct {
	DrawID        uuid.UUID `json:"draw_id"`
	Reason        string    `json:"reason"`
	RefundedBets  int64     `json:"refunded_bets"`
	RefundedTotal int64     `json:"refunded_total"`
	ReversedFees  int64     `json:"reversed_fees"`
}

func (e *DrawCancelled) EventType() EventType { return EventTypeDrawCancelled }

package query

import "github.com/google/uuid"

// DrawResponse represents a draw for API queries.
type DrawResponse struct {
	DrawID            uuid.UUID `json:"draw_id"`
	Label             string    `json:"label"`
	ScheduledAt       int64     `json:"scheduled_at"`
	Status            string    `json:"status"`
	OpenedAt          int64     `json:"opened_at"`
	ClosedAt          int64     `json:"closed_at"`
	CompletedAt       int64     `json:"completed_at"`
	CancelledAt       int64     `json:"cancelled_at"`
	VrfRequestID      string    `json:"vrf_request_id,omitempty"`
	WinningTwoDigit   *int64    `json:"winning_two_digit,omitempty"`
	WinningThreeDigit *int64    `json:"winning_three_digit,omitempty"`
	WinningFourDigit  *int64    `json:"winning_four_digit,omitempty"`
	TotalBets         int64     `json:"total_bets"`
	TotalAmount       int64     `json:"total_amount"`
	PaidOut           int64     `json:"paid_out"`
	ResolutionCursor  int       `json:"resolution_cursor"`
	Version           int64     `json:"version"`
	AsOfSequence      int64     `json:"as_of_sequence"`
}

// BetResponse represents a bet for API queries.
type BetResponse struct {
	BetID        uuid.UUID `json:"bet_id"`
	UserID       uuid.UUID `json:"user_id"`
	DrawID       uuid.UUID `json:"draw_id"`
	BetType      string    `json:"bet_type"`
	Number       int64     `json:"number"`
	Amount       int64     `json:"amount"`
	Fee          int64     `json:"fee"`
	Resolved     bool      `json:"resolved"`
	Won          bool      `json:"won"`
	Payout       int64     `json:"payout"`
	Status       string    `json:"status"`
	PlacedAt     int64     `json:"placed_at"`
	Version      int64     `json:"version"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// PoolResponse represents the payout pool for API queries.
// available = total_balance - accrued_fees, derived at query time.
type PoolResponse struct {
	TotalBalance int64 `json:"total_balance"`
	AccruedFees  int64 `json:"accrued_fees"`
	Available    int64 `json:"available"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

// MultiplierResponse represents one committed payout multiplier.
type MultiplierResponse struct {
	BetType      string `json:"bet_type"`
	Multiplier   int64  `json:"multiplier"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// VrfRequestResponse represents a randomness request for API queries.
type VrfRequestResponse struct {
	RequestID   uuid.UUID `json:"request_id"`
	DrawID      uuid.UUID `json:"draw_id"`
	RequestedAt int64     `json:"requested_at"`
	Fulfilled   bool      `json:"fulfilled"`
	FulfilledAt int64     `json:"fulfilled_at,omitempty"`
}

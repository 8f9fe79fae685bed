// internal/engine/output.go
package engine

import (
	"DrawLedger/internal/draw"
	"DrawLedger/internal/event"
	"DrawLedger/internal/pool"
	"DrawLedger/internal/vrf"

	"github.com/google/uuid"
)

// Output is one unit of engine emission: an envelope plus the decoded event
// for downstream publishing, and the projection rows the command changed.
// Snapshots are value copies taken inside the engine loop, so the
// persistence worker never observes live mutable state.
type Output struct {
	// Sequence is the engine sequence at emission. Outputs that carry an
	// envelope repeat its sequence here; row-only outputs still get one so
	// version-guarded upserts order correctly.
	Sequence int64

	Envelope *event.Envelope
	Event    event.Event

	// Changed-row snapshots; only set on the first output of a command.
	Draw        *DrawRow
	Bets        []BetRow
	Pool        *pool.Snapshot
	Multipliers map[draw.BetType]int64
	VrfRequest  *vrf.Request
	Settings    *SettingsRow
}

// SettingsRow is a value snapshot of the runtime admin settings. Persisting
// it keeps operator adjustments (fees, limits, pause) durable across
// restarts; env values only seed the very first boot.
type SettingsRow struct {
	FeeBps              int64
	MinBetAmount        int64
	MaxBetAmount        int64
	ExposureCeiling     int64
	VrfStaleAfterMillis int64
	VrfKeyHash          string
	Paused              bool
	Version             int64
}

// DrawRow is a value snapshot of a draw for persistence, without the owned
// bet registry.
type DrawRow struct {
	DrawID           string
	Label            string
	ScheduledAt      int64
	Status           draw.DrawStatus
	OpenedAt         int64
	ClosedAt         int64
	CompletedAt      int64
	CancelledAt      int64
	VrfRequestID     string
	WinningTwoDigit  int64
	WinningThree     int64
	WinningFour      int64
	HasWinning       bool
	TotalBets        int64
	TotalAmount      int64
	PaidOut          int64
	ResolutionCursor int
	Version          int64
}

// BetRow is a value snapshot of a bet for persistence.
type BetRow struct {
	BetID    string
	UserID   string
	DrawID   string
	Type     draw.BetType
	Number   int64
	Amount   int64
	Fee      int64
	Resolved bool
	Won      bool
	Payout   int64
	Status   draw.BetStatus
	PlacedAt int64
	Position int
	Version  int64
}

func snapshotDraw(d *draw.Draw) *DrawRow {
	row := &DrawRow{
		DrawID:           d.DrawID.String(),
		Label:            d.Label,
		ScheduledAt:      d.ScheduledAt,
		Status:           d.Status,
		OpenedAt:         d.OpenedAt,
		ClosedAt:         d.ClosedAt,
		CompletedAt:      d.CompletedAt,
		CancelledAt:      d.CancelledAt,
		TotalBets:        d.TotalBets,
		TotalAmount:      d.TotalAmount,
		PaidOut:          d.PaidOut,
		ResolutionCursor: d.ResolutionCursor,
		Version:          d.Version,
	}
	if d.VrfRequestID != uuid.Nil {
		row.VrfRequestID = d.VrfRequestID.String()
	}
	if two, ok := d.WinningNumber(draw.BetTypeTwoDigit); ok {
		three, _ := d.WinningNumber(draw.BetTypeThreeDigit)
		four, _ := d.WinningNumber(draw.BetTypeFourDigit)
		row.HasWinning = true
		row.WinningTwoDigit = two
		row.WinningThree = three
		row.WinningFour = four
	}
	return row
}

func snapshotBet(b *draw.Bet) BetRow {
	return BetRow{
		BetID:    b.BetID.String(),
		UserID:   b.UserID.String(),
		DrawID:   b.DrawID.String(),
		Type:     b.Type,
		Number:   b.Number,
		Amount:   b.Amount,
		Fee:      b.Fee,
		Resolved: b.Resolved,
		Won:      b.Won,
		Payout:   b.Payout,
		Status:   b.Status,
		PlacedAt: b.PlacedAt,
		Position: b.Position,
		Version:  b.Version,
	}
}

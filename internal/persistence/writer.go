package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"DrawLedger/internal/engine"
)

// Writer persists engine outputs to Postgres. The append-only event log
// uses multi-row INSERT with ON CONFLICT DO NOTHING so replays after a
// crash are idempotent; projection rows are version-guarded upserts so a
// stale snapshot can never overwrite a newer one.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// EventRow is one row in draw_ledger.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Payload        []byte // JSON-encoded event payload
	Timestamp      int64  // Unix millis, engine-assigned
}

// WriteEventBatch appends a batch of events inside the given transaction.
func (w *Writer) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO draw_ledger.events
		(sequence, event_type, idempotency_key, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventType, e.IdempotencyKey, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // idempotent replay

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertDraw writes one draw projection row.
func (w *Writer) UpsertDraw(ctx context.Context, tx *sql.Tx, d *engine.DrawRow) error {
	var vrfRequestID interface{}
	if d.VrfRequestID != "" {
		vrfRequestID = d.VrfRequestID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO draw_ledger.draws
			(draw_id, label, scheduled_at, status, opened_at, closed_at,
			 completed_at, cancelled_at, vrf_request_id,
			 winning_two_digit, winning_three_digit, winning_four_digit, has_winning,
			 total_bets, total_amount, paid_out, resolution_cursor, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (draw_id) DO UPDATE SET
			status = EXCLUDED.status,
			opened_at = EXCLUDED.opened_at,
			closed_at = EXCLUDED.closed_at,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			vrf_request_id = EXCLUDED.vrf_request_id,
			winning_two_digit = EXCLUDED.winning_two_digit,
			winning_three_digit = EXCLUDED.winning_three_digit,
			winning_four_digit = EXCLUDED.winning_four_digit,
			has_winning = EXCLUDED.has_winning,
			total_bets = EXCLUDED.total_bets,
			total_amount = EXCLUDED.total_amount,
			paid_out = EXCLUDED.paid_out,
			resolution_cursor = EXCLUDED.resolution_cursor,
			version = EXCLUDED.version
		WHERE draw_ledger.draws.version <= EXCLUDED.version`,
		d.DrawID, d.Label, d.ScheduledAt, d.Status.String(), d.OpenedAt, d.ClosedAt,
		d.CompletedAt, d.CancelledAt, vrfRequestID,
		d.WinningTwoDigit, d.WinningThree, d.WinningFour, d.HasWinning,
		d.TotalBets, d.TotalAmount, d.PaidOut, d.ResolutionCursor, d.Version,
	)
	return err
}

// UpsertBets writes a batch of bet projection rows.
func (w *Writer) UpsertBets(ctx context.Context, tx *sql.Tx, bets []engine.BetRow) error {
	if len(bets) == 0 {
		return nil
	}

	query := `INSERT INTO draw_ledger.bets
		(bet_id, user_id, draw_id, bet_type, number, amount, fee,
		 resolved, won, payout, status, placed_at, position, version)
		VALUES `

	values := make([]string, 0, len(bets))
	args := make([]interface{}, 0, len(bets)*14)

	for i, b := range bets {
		base := i * 14
		placeholders := make([]string, 14)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			b.BetID, b.UserID, b.DrawID, b.Type.String(), b.Number, b.Amount, b.Fee,
			b.Resolved, b.Won, b.Payout, b.Status.String(), b.PlacedAt, b.Position, b.Version,
		)
	}

	query += strings.Join(values, ", ")
	query += `
		ON CONFLICT (bet_id) DO UPDATE SET
			resolved = EXCLUDED.resolved,
			won = EXCLUDED.won,
			payout = EXCLUDED.payout,
			status = EXCLUDED.status,
			version = EXCLUDED.version
		WHERE draw_ledger.bets.version <= EXCLUDED.version`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertPool writes the singleton pool row.
func (w *Writer) UpsertPool(ctx context.Context, tx *sql.Tx, totalBalance, accruedFees, atSequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draw_ledger.pool (pool_id, total_balance, accrued_fees, as_of_sequence)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (pool_id) DO UPDATE SET
			total_balance = EXCLUDED.total_balance,
			accrued_fees = EXCLUDED.accrued_fees,
			as_of_sequence = EXCLUDED.as_of_sequence
		WHERE draw_ledger.pool.as_of_sequence <= EXCLUDED.as_of_sequence`,
		totalBalance, accruedFees, atSequence,
	)
	return err
}

// UpsertMultiplier writes one committed payout multiplier row.
func (w *Writer) UpsertMultiplier(ctx context.Context, tx *sql.Tx, betType string, multiplier, atSequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draw_ledger.payout_multipliers (bet_type, multiplier, as_of_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (bet_type) DO UPDATE SET
			multiplier = EXCLUDED.multiplier,
			as_of_sequence = EXCLUDED.as_of_sequence
		WHERE draw_ledger.payout_multipliers.as_of_sequence <= EXCLUDED.as_of_sequence`,
		betType, multiplier, atSequence,
	)
	return err
}

// UpsertSettings writes the singleton runtime-settings row.
func (w *Writer) UpsertSettings(ctx context.Context, tx *sql.Tx, s *engine.SettingsRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draw_ledger.settings
			(settings_id, fee_bps, min_bet_amount, max_bet_amount,
			 exposure_ceiling, vrf_stale_after_ms, vrf_key_hash, paused, as_of_sequence)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (settings_id) DO UPDATE SET
			fee_bps = EXCLUDED.fee_bps,
			min_bet_amount = EXCLUDED.min_bet_amount,
			max_bet_amount = EXCLUDED.max_bet_amount,
			exposure_ceiling = EXCLUDED.exposure_ceiling,
			vrf_stale_after_ms = EXCLUDED.vrf_stale_after_ms,
			vrf_key_hash = EXCLUDED.vrf_key_hash,
			paused = EXCLUDED.paused,
			as_of_sequence = EXCLUDED.as_of_sequence
		WHERE draw_ledger.settings.as_of_sequence <= EXCLUDED.as_of_sequence`,
		s.FeeBps, s.MinBetAmount, s.MaxBetAmount,
		s.ExposureCeiling, s.VrfStaleAfterMillis, s.VrfKeyHash, s.Paused, s.Version,
	)
	return err
}

// UpsertVrfRequest writes one randomness request row.
func (w *Writer) UpsertVrfRequest(ctx context.Context, tx *sql.Tx, requestID, drawID string, requestedAt int64, fulfilled bool, fulfilledAt int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draw_ledger.vrf_requests (request_id, draw_id, requested_at, fulfilled, fulfilled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE SET
			fulfilled = EXCLUDED.fulfilled,
			fulfilled_at = EXCLUDED.fulfilled_at`,
		requestID, drawID, requestedAt, fulfilled, fulfilledAt,
	)
	return err
}

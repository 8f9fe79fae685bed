package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"DrawLedger/internal/draw"
	"DrawLedger/internal/engine"
	"DrawLedger/internal/vrf"

	"github.com/google/uuid"
)

// Loader rebuilds the engine's in-memory state from the projection tables
// on restart. Completed draws are reloaded only while they still hold
// unpaid winners, so retries keep working without dragging the full
// history back into memory.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

const idempotencyWarmLimit = 100_000

// LoadState assembles the full restart image.
func (l *Loader) LoadState(ctx context.Context) (*engine.RestoredState, error) {
	st := &engine.RestoredState{}

	sequence, err := l.latestSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sequence: %w", err)
	}
	st.Sequence = sequence + 1

	if err := l.loadPool(ctx, st); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if err := l.loadMultipliers(ctx, st); err != nil {
		return nil, fmt.Errorf("load multipliers: %w", err)
	}
	if err := l.loadSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := l.loadDraws(ctx, st); err != nil {
		return nil, fmt.Errorf("load draws: %w", err)
	}
	if err := l.loadPendingVrf(ctx, st); err != nil {
		return nil, fmt.Errorf("load vrf requests: %w", err)
	}

	checker := NewPostgresIdempotencyChecker(l.db)
	keys, err := checker.RecentKeys(ctx, idempotencyWarmLimit)
	if err != nil {
		return nil, fmt.Errorf("load idempotency keys: %w", err)
	}
	st.IdempotencyKeys = keys

	return st, nil
}

func (l *Loader) latestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM draw_ledger.events`,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return -1, nil // empty event log: engine starts at 0
	}
	return seq.Int64, nil
}

func (l *Loader) loadPool(ctx context.Context, st *engine.RestoredState) error {
	err := l.db.QueryRowContext(ctx,
		`SELECT total_balance, accrued_fees FROM draw_ledger.pool WHERE pool_id = 1`,
	).Scan(&st.Pool.TotalBalance, &st.Pool.AccruedFees)
	if err == sql.ErrNoRows {
		return nil // cold start: zero pool
	}
	if err != nil {
		return err
	}
	st.Pool.Available = st.Pool.TotalBalance - st.Pool.AccruedFees
	return nil
}

func (l *Loader) loadMultipliers(ctx context.Context, st *engine.RestoredState) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT bet_type, multiplier FROM draw_ledger.payout_multipliers`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	st.Multipliers = make(map[draw.BetType]int64)
	for rows.Next() {
		var betType string
		var multiplier int64
		if err := rows.Scan(&betType, &multiplier); err != nil {
			return err
		}
		if bt := draw.ParseBetType(betType); bt.Valid() {
			st.Multipliers[bt] = multiplier
		}
	}
	return rows.Err()
}

func (l *Loader) loadSettings(ctx context.Context, st *engine.RestoredState) error {
	var s engine.SettingsRow
	err := l.db.QueryRowContext(ctx, `
		SELECT fee_bps, min_bet_amount, max_bet_amount, exposure_ceiling,
		       vrf_stale_after_ms, vrf_key_hash, paused, as_of_sequence
		FROM draw_ledger.settings WHERE settings_id = 1`,
	).Scan(&s.FeeBps, &s.MinBetAmount, &s.MaxBetAmount, &s.ExposureCeiling,
		&s.VrfStaleAfterMillis, &s.VrfKeyHash, &s.Paused, &s.Version)
	if err == sql.ErrNoRows {
		return nil // no admin adjustment yet: env-seeded config stands
	}
	if err != nil {
		return err
	}
	st.Settings = &s
	return nil
}

// loadDraws loads every draw still relevant to the engine: non-terminal
// ones plus terminal ones that still carry an unpaid winner.
func (l *Loader) loadDraws(ctx context.Context, st *engine.RestoredState) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT draw_id, label, scheduled_at, status, opened_at, closed_at,
		       completed_at, cancelled_at, COALESCE(vrf_request_id::text, ''),
		       winning_two_digit, winning_three_digit, winning_four_digit, has_winning,
		       paid_out, resolution_cursor, version
		FROM draw_ledger.draws d
		WHERE status NOT IN ('Completed', 'Cancelled')
		   OR EXISTS (
		        SELECT 1 FROM draw_ledger.bets b
		        WHERE b.draw_id = d.draw_id AND b.status = 'Unpaid'
		   )`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*draw.Draw)
	for rows.Next() {
		var (
			drawID, status, vrfRequestID           string
			label                                  string
			scheduledAt, openedAt, closedAt        int64
			completedAt, cancelledAt               int64
			winTwo, winThree, winFour              int64
			hasWinning                             bool
			paidOut, version                       int64
			cursor                                 int
		)
		if err := rows.Scan(
			&drawID, &label, &scheduledAt, &status, &openedAt, &closedAt,
			&completedAt, &cancelledAt, &vrfRequestID,
			&winTwo, &winThree, &winFour, &hasWinning,
			&paidOut, &cursor, &version,
		); err != nil {
			return err
		}

		id, err := uuid.Parse(drawID)
		if err != nil {
			return fmt.Errorf("draw id %q: %w", drawID, err)
		}

		d := draw.NewDraw(id, label, scheduledAt)
		d.Status = draw.ParseDrawStatus(status)
		d.OpenedAt = openedAt
		d.ClosedAt = closedAt
		d.CompletedAt = completedAt
		d.CancelledAt = cancelledAt
		if vrfRequestID != "" {
			if reqID, err := uuid.Parse(vrfRequestID); err == nil {
				d.VrfRequestID = reqID
				d.VrfRequestedAt = closedAt
			}
		}
		if hasWinning {
			d.RestoreWinning(winTwo, winThree, winFour)
		}
		d.PaidOut = paidOut
		d.ResolutionCursor = cursor
		d.Version = version

		byID[id] = d
		st.Draws = append(st.Draws, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := l.loadBets(ctx, byID); err != nil {
		return err
	}

	// AddBet rebuilt the registries; a cursor can exceed the registry when
	// the bet projection lagged behind the draw row.
	for _, d := range st.Draws {
		if d.ResolutionCursor > len(d.Bets) {
			d.ResolutionCursor = len(d.Bets)
		}
	}
	return nil
}

// loadBets re-attaches bets in placement order so resolution cursors index
// the registry exactly as before the restart.
func (l *Loader) loadBets(ctx context.Context, draws map[uuid.UUID]*draw.Draw) error {
	if len(draws) == 0 {
		return nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT b.bet_id, b.user_id, b.draw_id, b.bet_type, b.number, b.amount, b.fee,
		       b.resolved, b.won, b.payout, b.status, b.placed_at, b.version
		FROM draw_ledger.bets b
		WHERE b.draw_id IN (SELECT d.draw_id FROM draw_ledger.draws d
		                    WHERE d.status NOT IN ('Completed', 'Cancelled')
		                       OR EXISTS (
		                            SELECT 1 FROM draw_ledger.bets u
		                            WHERE u.draw_id = d.draw_id AND u.status = 'Unpaid'
		                       ))
		ORDER BY b.draw_id, b.position ASC`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			betID, userID, drawID, betType, status string
			number, amount, fee, payout            int64
			resolved, won                          bool
			placedAt, version                      int64
		)
		if err := rows.Scan(
			&betID, &userID, &drawID, &betType, &number, &amount, &fee,
			&resolved, &won, &payout, &status, &placedAt, &version,
		); err != nil {
			return err
		}

		dID, err := uuid.Parse(drawID)
		if err != nil {
			return fmt.Errorf("bet draw id %q: %w", drawID, err)
		}
		d, ok := draws[dID]
		if !ok {
			continue
		}

		bID, err := uuid.Parse(betID)
		if err != nil {
			return fmt.Errorf("bet id %q: %w", betID, err)
		}
		uID, err := uuid.Parse(userID)
		if err != nil {
			return fmt.Errorf("bet user id %q: %w", userID, err)
		}

		b := &draw.Bet{
			BetID:    bID,
			UserID:   uID,
			DrawID:   dID,
			Type:     draw.ParseBetType(betType),
			Number:   number,
			Amount:   amount,
			Fee:      fee,
			Resolved: resolved,
			Won:      won,
			Payout:   payout,
			Status:   draw.ParseBetStatus(status),
			PlacedAt: placedAt,
			Version:  version,
		}
		d.AddBet(b)
	}
	return rows.Err()
}

func (l *Loader) loadPendingVrf(ctx context.Context, st *engine.RestoredState) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT request_id, draw_id, requested_at, fulfilled, fulfilled_at
		FROM draw_ledger.vrf_requests
		WHERE fulfilled = FALSE`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var requestID, drawID string
		var req vrf.Request
		if err := rows.Scan(&requestID, &drawID, &req.RequestedAt, &req.Fulfilled, &req.FulfilledAt); err != nil {
			return err
		}
		rID, err := uuid.Parse(requestID)
		if err != nil {
			continue
		}
		dID, err := uuid.Parse(drawID)
		if err != nil {
			continue
		}
		req.RequestID = rID
		req.DrawID = dID
		st.PendingVrf = append(st.PendingVrf, &req)
	}
	return rows.Err()
}

package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to the projection tables. All
// responses include as_of_sequence, the highest event sequence the
// persistence worker has committed, so callers can reason about freshness
// relative to the engine.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

const drawColumns = `
	draw_id, label, scheduled_at, status,
	opened_at, closed_at, completed_at, cancelled_at,
	COALESCE(vrf_request_id::text, ''),
	winning_two_digit, winning_three_digit, winning_four_digit, has_winning,
	total_bets, total_amount, paid_out, resolution_cursor, version
`

// GetDraw returns a single draw by ID, or nil if it doesn't exist.
func (qs *QueryService) GetDraw(ctx context.Context, drawID uuid.UUID) (*DrawResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row := qs.db.QueryRowContext(ctx, `
		SELECT `+drawColumns+`
		FROM draw_ledger.draws
		WHERE draw_id = $1
	`, drawID)

	d, err := scanDraw(row, asOfSeq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDraws returns draws, newest scheduled first, optionally filtered by
// status. Pagination is cursor-based on scheduled_at.
func (qs *QueryService) ListDraws(ctx context.Context, status string, limit int, beforeScheduledAt *int64) ([]DrawResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `SELECT ` + drawColumns + ` FROM draw_ledger.draws WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if beforeScheduledAt != nil {
		query += fmt.Sprintf(" AND scheduled_at < $%d", argIdx)
		args = append(args, *beforeScheduledAt)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY scheduled_at DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var draws []DrawResponse
	for rows.Next() {
		d, err := scanDraw(rows, asOfSeq)
		if err != nil {
			return nil, err
		}
		draws = append(draws, *d)
	}
	return draws, rows.Err()
}

const betColumns = `
	bet_id, user_id, draw_id, bet_type, number, amount, fee,
	resolved, won, payout, status, placed_at, version
`

// GetBet returns a single bet by ID, or nil if it doesn't exist.
func (qs *QueryService) GetBet(ctx context.Context, betID uuid.UUID) (*BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row := qs.db.QueryRowContext(ctx, `
		SELECT `+betColumns+`
		FROM draw_ledger.bets
		WHERE bet_id = $1
	`, betID)

	b, err := scanBet(row, asOfSeq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBetsByDraw returns all bets for a draw in registry order. The
// optional afterPosition cursor resumes a paged walk.
func (qs *QueryService) ListBetsByDraw(ctx context.Context, drawID uuid.UUID, limit int, afterPosition *int) ([]BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `SELECT ` + betColumns + ` FROM draw_ledger.bets WHERE draw_id = $1`
	args := []interface{}{drawID}
	argIdx := 2

	if afterPosition != nil {
		query += fmt.Sprintf(" AND position > $%d", argIdx)
		args = append(args, *afterPosition)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY position ASC LIMIT $%d", argIdx)
	args = append(args, limit)

	return qs.listBets(ctx, query, args, asOfSeq)
}

// ListBetsByUser returns a user's bets, newest placed first.
func (qs *QueryService) ListBetsByUser(ctx context.Context, userID uuid.UUID, limit int, beforePlacedAt *int64) ([]BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `SELECT ` + betColumns + ` FROM draw_ledger.bets WHERE user_id = $1`
	args := []interface{}{userID}
	argIdx := 2

	if beforePlacedAt != nil {
		query += fmt.Sprintf(" AND placed_at < $%d", argIdx)
		args = append(args, *beforePlacedAt)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY placed_at DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	return qs.listBets(ctx, query, args, asOfSeq)
}

// ListUnpaidBets returns winning bets whose payout was deferred on pool
// shortfall. Operators retry these after funding the pool.
func (qs *QueryService) ListUnpaidBets(ctx context.Context, limit int) ([]BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `
		SELECT ` + betColumns + `
		FROM draw_ledger.bets
		WHERE status = 'Unpaid'
		ORDER BY placed_at ASC
		LIMIT $1
	`
	return qs.listBets(ctx, query, []interface{}{limit}, asOfSeq)
}

// GetPool returns the payout pool state.
func (qs *QueryService) GetPool(ctx context.Context) (*PoolResponse, error) {
	var p PoolResponse
	err := qs.db.QueryRowContext(ctx, `
		SELECT total_balance, accrued_fees, as_of_sequence
		FROM draw_ledger.pool
		WHERE pool_id = 1
	`).Scan(&p.TotalBalance, &p.AccruedFees, &p.AsOfSequence)
	if err == sql.ErrNoRows {
		return &PoolResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	p.Available = p.TotalBalance - p.AccruedFees
	return &p, nil
}

// GetMultipliers returns the committed payout multipliers per bet type.
func (qs *QueryService) GetMultipliers(ctx context.Context) ([]MultiplierResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT bet_type, multiplier, as_of_sequence
		FROM draw_ledger.payout_multipliers
		ORDER BY bet_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var multipliers []MultiplierResponse
	for rows.Next() {
		var m MultiplierResponse
		if err := rows.Scan(&m.BetType, &m.Multiplier, &m.AsOfSequence); err != nil {
			return nil, err
		}
		multipliers = append(multipliers, m)
	}
	return multipliers, rows.Err()
}

// GetVrfRequest returns the randomness request for a draw, or nil if none
// has been issued.
func (qs *QueryService) GetVrfRequest(ctx context.Context, drawID uuid.UUID) (*VrfRequestResponse, error) {
	var r VrfRequestResponse
	err := qs.db.QueryRowContext(ctx, `
		SELECT request_id, draw_id, requested_at, fulfilled, fulfilled_at
		FROM draw_ledger.vrf_requests
		WHERE draw_id = $1
		ORDER BY requested_at DESC
		LIMIT 1
	`, drawID).Scan(&r.RequestID, &r.DrawID, &r.RequestedAt, &r.Fulfilled, &r.FulfilledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// --- helpers ---

func (qs *QueryService) listBets(ctx context.Context, query string, args []interface{}, asOfSeq int64) ([]BetResponse, error) {
	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []BetResponse
	for rows.Next() {
		b, err := scanBet(rows, asOfSeq)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

// getWatermark returns the highest committed event sequence. The event log
// lands in the same transaction as the projections, so it doubles as the
// projection freshness watermark.
func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM draw_ledger.events
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraw(row rowScanner, asOfSeq int64) (*DrawResponse, error) {
	var d DrawResponse
	var winTwo, winThree, winFour int64
	var hasWinning bool
	if err := row.Scan(
		&d.DrawID, &d.Label, &d.ScheduledAt, &d.Status,
		&d.OpenedAt, &d.ClosedAt, &d.CompletedAt, &d.CancelledAt,
		&d.VrfRequestID,
		&winTwo, &winThree, &winFour, &hasWinning,
		&d.TotalBets, &d.TotalAmount, &d.PaidOut, &d.ResolutionCursor, &d.Version,
	); err != nil {
		return nil, err
	}
	if hasWinning {
		d.WinningTwoDigit = &winTwo
		d.WinningThreeDigit = &winThree
		d.WinningFourDigit = &winFour
	}
	d.AsOfSequence = asOfSeq
	return &d, nil
}

func scanBet(row rowScanner, asOfSeq int64) (*BetResponse, error) {
	var b BetResponse
	if err := row.Scan(
		&b.BetID, &b.UserID, &b.DrawID, &b.BetType, &b.Number, &b.Amount, &b.Fee,
		&b.Resolved, &b.Won, &b.Payout, &b.Status, &b.PlacedAt, &b.Version,
	); err != nil {
		return nil, err
	}
	b.AsOfSequence = asOfSeq
	return &b, nil
}

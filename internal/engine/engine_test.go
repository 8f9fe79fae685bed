// internal/engine/engine_test.go
package engine_test

import (
	"errors"
	"testing"

	"DrawLedger/internal/command"
	"DrawLedger/internal/draw"
	"DrawLedger/internal/engine"
	"DrawLedger/internal/event"
	"DrawLedger/internal/vrf"

	"github.com/google/uuid"
)

const baseTime = int64(1_700_000_000_000)

// ============================================================================
// Test Harness
// ============================================================================

type harness struct {
	engine  *engine.Engine
	persist chan engine.Output
	publish chan engine.Output
}

func newHarness(t *testing.T, cfg engine.Config) *harness {
	t.Helper()
	persist := make(chan engine.Output, 4096)
	publish := make(chan engine.Output, 4096)
	return &harness{
		engine:  engine.NewEngine(0, cfg, persist, publish, nil, nil),
		persist: persist,
		publish: publish,
	}
}

func (h *harness) drain() []engine.Output {
	var outputs []engine.Output
	for {
		select {
		case out := <-h.persist:
			outputs = append(outputs, out)
		default:
			return outputs
		}
	}
}

func (h *harness) mustProcess(t *testing.T, cmd command.Command) {
	t.Helper()
	if err := h.engine.Process(cmd); err != nil {
		t.Fatalf("process %s: %v", cmd.CommandType(), err)
	}
}

func (h *harness) fund(t *testing.T, amount int64) {
	t.Helper()
	h.mustProcess(t, &command.FundPool{CommandID: uuid.New(), Amount: amount, At: baseTime})
}

func (h *harness) openDraw(t *testing.T) uuid.UUID {
	t.Helper()
	drawID := uuid.New()
	h.mustProcess(t, &command.CreateDraw{
		CommandID: uuid.New(), DrawID: drawID, Label: "evening", ScheduledAt: baseTime, At: baseTime,
	})
	h.mustProcess(t, &command.OpenDraw{CommandID: uuid.New(), DrawID: drawID, At: baseTime + 1_000})
	return drawID
}

func (h *harness) placeBet(t *testing.T, drawID uuid.UUID, betType draw.BetType, number, amount int64) uuid.UUID {
	t.Helper()
	betID := uuid.New()
	h.mustProcess(t, &command.PlaceBet{
		CommandID: uuid.New(),
		UserID:    uuid.New(),
		DrawID:    drawID,
		Bet:       command.BetEntry{BetID: betID, Type: betType, Number: number, Amount: amount},
		At:        baseTime + 2_000,
	})
	return betID
}

func (h *harness) closeDraw(t *testing.T, drawID uuid.UUID) uuid.UUID {
	t.Helper()
	requestID := uuid.New()
	h.mustProcess(t, &command.CloseDraw{
		CommandID: uuid.New(), DrawID: drawID, RequestID: requestID, At: baseTime + 10_000,
	})
	return requestID
}

func (h *harness) fulfill(t *testing.T, requestID uuid.UUID, values ...uint64) {
	t.Helper()
	h.mustProcess(t, &command.RandomnessFulfilled{
		RequestID: requestID, RandomValues: values, At: baseTime + 20_000,
	})
}

// ============================================================================
// Full Lifecycle
// ============================================================================

func TestFullLifecycle_InlineWin(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 100_000_000)
	drawID := h.openDraw(t)

	// 1_342 mod 100 = 42: the two-digit wager on 42 wins.
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 1_342)

	d, ok := h.engine.Draw(drawID)
	if !ok {
		t.Fatal("draw not found after lifecycle")
	}
	if d.Status != draw.DrawStatusCompleted {
		t.Errorf("draw status = %s, want %s", d.Status, draw.DrawStatusCompleted)
	}

	b, _ := h.engine.Bet(betID)
	if !b.Resolved || !b.Won {
		t.Fatalf("bet resolved=%v won=%v, want resolved winner", b.Resolved, b.Won)
	}
	if b.Status != draw.BetStatusPaid {
		t.Errorf("bet status = %s, want %s", b.Status, draw.BetStatusPaid)
	}
	// Net 950_000 at 65.00x = 61_750_000.
	if b.Payout != 61_750_000 {
		t.Errorf("payout = %d, want 61_750_000", b.Payout)
	}

	// Pool: 100_000_000 funded + 1_000_000 wagered - 61_750_000 paid.
	snap := h.engine.Pool()
	if snap.TotalBalance != 39_250_000 {
		t.Errorf("total balance = %d, want 39_250_000", snap.TotalBalance)
	}
	if snap.AccruedFees != 50_000 {
		t.Errorf("accrued fees = %d, want 50_000", snap.AccruedFees)
	}
	if snap.Available != 39_200_000 {
		t.Errorf("available = %d, want 39_200_000", snap.Available)
	}
}

func TestFullLifecycle_Loser(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 100_000_000)
	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 7, 1_000_000)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 1_342) // winning two-digit number is 42

	b, _ := h.engine.Bet(betID)
	if !b.Resolved || b.Won {
		t.Fatalf("bet resolved=%v won=%v, want resolved loser", b.Resolved, b.Won)
	}
	if b.Status != draw.BetStatusPending {
		t.Errorf("loser status = %s, want %s", b.Status, draw.BetStatusPending)
	}
	if b.Payout != 0 {
		t.Errorf("loser payout = %d, want 0", b.Payout)
	}

	// The pool keeps the losing wager.
	snap := h.engine.Pool()
	if snap.TotalBalance != 101_000_000 {
		t.Errorf("total balance = %d, want 101_000_000", snap.TotalBalance)
	}
}

func TestFulfillment_ZeroBetDrawCompletes(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 99)

	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusCompleted {
		t.Errorf("empty draw status = %s, want %s", d.Status, draw.DrawStatusCompleted)
	}
}

func TestFulfillment_PerTypeWinningNumbers(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 10_000_000_000)
	drawID := h.openDraw(t)

	twoID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	threeID := h.placeBet(t, drawID, draw.BetTypeThreeDigit, 342, 1_000_000)
	fourID := h.placeBet(t, drawID, draw.BetTypeFourDigit, 342, 1_000_000)

	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 1_342) // 42 / 342 / 1342

	two, _ := h.engine.Bet(twoID)
	three, _ := h.engine.Bet(threeID)
	four, _ := h.engine.Bet(fourID)

	if !two.Won {
		t.Error("two-digit bet on 42 should win")
	}
	if !three.Won {
		t.Error("three-digit bet on 342 should win")
	}
	if four.Won {
		t.Error("four-digit bet on 342 should lose against 1342")
	}
}

// ============================================================================
// Shortfall and Retry
// ============================================================================

func TestShortfall_UnpaidThenRetried(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	// Pool far too small for a 61_750_000 payout.
	h.fund(t, 1_000_000)
	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 42)

	b, _ := h.engine.Bet(betID)
	if b.Status != draw.BetStatusUnpaid {
		t.Fatalf("bet status = %s, want %s", b.Status, draw.BetStatusUnpaid)
	}
	if b.Payout != 61_750_000 {
		t.Errorf("unpaid bet retains payout %d, want 61_750_000", b.Payout)
	}

	// A shortfall never blocks draw completion.
	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusCompleted {
		t.Errorf("draw status = %s, want %s", d.Status, draw.DrawStatusCompleted)
	}

	// Retry before topping up still fails.
	err := h.engine.Process(&command.RetryUnpaidBet{CommandID: uuid.New(), BetID: betID, At: baseTime + 30_000})
	if err == nil {
		t.Fatal("retry against an empty pool should fail")
	}

	h.fund(t, 100_000_000)
	h.mustProcess(t, &command.RetryUnpaidBet{CommandID: uuid.New(), BetID: betID, At: baseTime + 31_000})

	b, _ = h.engine.Bet(betID)
	if b.Status != draw.BetStatusPaid {
		t.Errorf("bet status after retry = %s, want %s", b.Status, draw.BetStatusPaid)
	}

	// A second retry is rejected: payment is at-most-once.
	err = h.engine.Process(&command.RetryUnpaidBet{CommandID: uuid.New(), BetID: betID, At: baseTime + 32_000})
	if !errors.Is(err, engine.ErrBetNotUnpaid) {
		t.Errorf("retry on paid bet = %v, want ErrBetNotUnpaid", err)
	}
}

func TestRetry_UnknownBet(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	err := h.engine.Process(&command.RetryUnpaidBet{CommandID: uuid.New(), BetID: uuid.New(), At: baseTime})
	if !errors.Is(err, engine.ErrBetNotFound) {
		t.Errorf("got %v, want ErrBetNotFound", err)
	}
}

// ============================================================================
// Idempotency
// ============================================================================

func TestIdempotency_DuplicateCommandSkipped(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	cmd := &command.FundPool{CommandID: uuid.New(), Amount: 5_000_000, At: baseTime}
	h.mustProcess(t, cmd)
	h.mustProcess(t, cmd) // duplicate: silently dropped

	if got := h.engine.Pool().TotalBalance; got != 5_000_000 {
		t.Errorf("total balance = %d, want 5_000_000 (funded once)", got)
	}
}

func TestIdempotency_DuplicateFulfillmentRejected(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 100_000_000)
	drawID := h.openDraw(t)
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 1_342)

	snapBefore := h.engine.Pool()

	err := h.engine.Process(&command.RandomnessFulfilled{
		RequestID: requestID, RandomValues: []uint64{9_999}, At: baseTime + 25_000,
	})
	if !errors.Is(err, vrf.ErrAlreadyFulfilled) {
		t.Fatalf("duplicate fulfillment = %v, want ErrAlreadyFulfilled", err)
	}

	// No state moved on the duplicate.
	if got := h.engine.Pool(); got != snapBefore {
		t.Errorf("pool changed on duplicate fulfillment: %+v -> %+v", snapBefore, got)
	}
	d, _ := h.engine.Draw(drawID)
	if n, _ := d.WinningNumber(draw.BetTypeTwoDigit); n != 42 {
		t.Errorf("winning number = %d, want 42 from first delivery", n)
	}
}

func TestFulfillment_UnknownRequest(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	err := h.engine.Process(&command.RandomnessFulfilled{
		RequestID: uuid.New(), RandomValues: []uint64{1}, At: baseTime,
	})
	if !errors.Is(err, vrf.ErrUnknownRequest) {
		t.Errorf("got %v, want ErrUnknownRequest", err)
	}
}

// ============================================================================
// Placement Validation
// ============================================================================

func TestPlaceBet_Validation(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := uuid.New()
	h.mustProcess(t, &command.CreateDraw{
		CommandID: uuid.New(), DrawID: drawID, Label: "morning", ScheduledAt: baseTime, At: baseTime,
	})

	place := func(target uuid.UUID, betType draw.BetType, number, amount int64) error {
		return h.engine.Process(&command.PlaceBet{
			CommandID: uuid.New(), UserID: uuid.New(), DrawID: target,
			Bet: command.BetEntry{BetID: uuid.New(), Type: betType, Number: number, Amount: amount},
			At:  baseTime + 2_000,
		})
	}

	if err := place(uuid.New(), draw.BetTypeTwoDigit, 42, 1_000_000); !errors.Is(err, engine.ErrDrawNotFound) {
		t.Errorf("unknown draw: got %v, want ErrDrawNotFound", err)
	}
	if err := place(drawID, draw.BetTypeTwoDigit, 42, 1_000_000); !errors.Is(err, engine.ErrDrawNotOpen) {
		t.Errorf("scheduled draw: got %v, want ErrDrawNotOpen", err)
	}

	h.mustProcess(t, &command.OpenDraw{CommandID: uuid.New(), DrawID: drawID, At: baseTime + 1_000})

	if err := place(drawID, draw.BetTypeTwoDigit, 100, 1_000_000); !errors.Is(err, engine.ErrInvalidNumber) {
		t.Errorf("number 100 for two-digit: got %v, want ErrInvalidNumber", err)
	}
	if err := place(drawID, draw.BetTypeTwoDigit, -1, 1_000_000); !errors.Is(err, engine.ErrInvalidNumber) {
		t.Errorf("negative number: got %v, want ErrInvalidNumber", err)
	}
	if err := place(drawID, draw.BetTypeUnknown, 1, 1_000_000); !errors.Is(err, engine.ErrInvalidNumber) {
		t.Errorf("unknown bet type: got %v, want ErrInvalidNumber", err)
	}
	if err := place(drawID, draw.BetTypeTwoDigit, 42, 9_999); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Errorf("below minimum: got %v, want ErrInvalidAmount", err)
	}
	if err := place(drawID, draw.BetTypeTwoDigit, 42, 1_000_000_001); !errors.Is(err, engine.ErrInvalidAmount) {
		t.Errorf("above maximum: got %v, want ErrInvalidAmount", err)
	}

	// Nothing leaked into state from the rejections.
	d, _ := h.engine.Draw(drawID)
	if d.TotalBets != 0 {
		t.Errorf("total bets = %d, want 0 after rejected placements", d.TotalBets)
	}
	if got := h.engine.Pool().TotalBalance; got != 0 {
		t.Errorf("pool balance = %d, want 0 after rejected placements", got)
	}
}

func TestPlaceBet_DuplicateBetID(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)

	err := h.engine.Process(&command.PlaceBet{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bet: command.BetEntry{BetID: betID, Type: draw.BetTypeTwoDigit, Number: 43, Amount: 1_000_000},
		At:  baseTime + 3_000,
	})
	if !errors.Is(err, engine.ErrDuplicateBet) {
		t.Errorf("got %v, want ErrDuplicateBet", err)
	}
}

func TestPause_BlocksIntake(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)
	h.mustProcess(t, &command.Pause{CommandID: uuid.New(), At: baseTime + 2_000})

	err := h.engine.Process(&command.PlaceBet{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bet: command.BetEntry{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 42, Amount: 1_000_000},
		At:  baseTime + 3_000,
	})
	if !errors.Is(err, engine.ErrEnforcedPause) {
		t.Fatalf("got %v, want ErrEnforcedPause", err)
	}

	// Lifecycle administration is unaffected by a pause.
	h.closeDraw(t, drawID)

	h.mustProcess(t, &command.Unpause{CommandID: uuid.New(), At: baseTime + 4_000})
	if h.engine.Paused() {
		t.Error("engine still paused after unpause")
	}
}

// ============================================================================
// Exposure Ceiling
// ============================================================================

func TestExposure_CeilingEnforced(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.mustProcess(t, &command.SetExposureCeiling{CommandID: uuid.New(), Ceiling: 5_000_000, At: baseTime})
	drawID := h.openDraw(t)

	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 7, 3_000_000)

	// 3_000_000 + 2_500_000 > 5_000_000 on the same number.
	err := h.engine.Process(&command.PlaceBet{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bet: command.BetEntry{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 7, Amount: 2_500_000},
		At:  baseTime + 3_000,
	})
	if !errors.Is(err, draw.ErrExposureLimitExceeded) {
		t.Fatalf("got %v, want ErrExposureLimitExceeded", err)
	}

	// Exactly reaching the ceiling is allowed, and other numbers are
	// independent dimensions.
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 7, 2_000_000)
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 8, 5_000_000)
	h.placeBet(t, drawID, draw.BetTypeThreeDigit, 7, 5_000_000)
}

// ============================================================================
// Batch Placement
// ============================================================================

func TestBatch_AllOrNothing(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)

	err := h.engine.Process(&command.PlaceBetBatch{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bets: []command.BetEntry{
			{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 11, Amount: 1_000_000},
			{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 999, Amount: 1_000_000}, // invalid
		},
		At: baseTime + 2_000,
	})
	if !errors.Is(err, engine.ErrInvalidNumber) {
		t.Fatalf("got %v, want ErrInvalidNumber", err)
	}

	d, _ := h.engine.Draw(drawID)
	if d.TotalBets != 0 {
		t.Errorf("total bets = %d, want 0 (batch is all-or-nothing)", d.TotalBets)
	}
	if got := h.engine.Pool().TotalBalance; got != 0 {
		t.Errorf("pool balance = %d, want 0 after rejected batch", got)
	}

	h.mustProcess(t, &command.PlaceBetBatch{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bets: []command.BetEntry{
			{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 11, Amount: 1_000_000},
			{BetID: uuid.New(), Type: draw.BetTypeThreeDigit, Number: 111, Amount: 2_000_000},
			{BetID: uuid.New(), Type: draw.BetTypeFourDigit, Number: 1_111, Amount: 3_000_000},
		},
		At: baseTime + 3_000,
	})

	d, _ = h.engine.Draw(drawID)
	if d.TotalBets != 3 {
		t.Errorf("total bets = %d, want 3", d.TotalBets)
	}
	if d.TotalAmount != 6_000_000 {
		t.Errorf("total amount = %d, want 6_000_000", d.TotalAmount)
	}
}

func TestBatch_EmptyRejected(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())
	drawID := h.openDraw(t)

	err := h.engine.Process(&command.PlaceBetBatch{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID, At: baseTime + 2_000,
	})
	if !errors.Is(err, engine.ErrBatchEmpty) {
		t.Errorf("got %v, want ErrBatchEmpty", err)
	}
}

func TestBatch_IntraBatchExposure(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.mustProcess(t, &command.SetExposureCeiling{CommandID: uuid.New(), Ceiling: 5_000_000, At: baseTime})
	drawID := h.openDraw(t)

	// Two entries in one batch together exceed the ceiling on the same
	// number even though each one alone would pass.
	err := h.engine.Process(&command.PlaceBetBatch{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bets: []command.BetEntry{
			{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 7, Amount: 3_000_000},
			{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 7, Amount: 3_000_000},
		},
		At: baseTime + 2_000,
	})
	if !errors.Is(err, draw.ErrExposureLimitExceeded) {
		t.Fatalf("got %v, want ErrExposureLimitExceeded", err)
	}

	d, _ := h.engine.Draw(drawID)
	if d.TotalBets != 0 {
		t.Errorf("total bets = %d, want 0", d.TotalBets)
	}
}

// ============================================================================
// Paged Resolution
// ============================================================================

func TestPagedResolution_ConvergesToCompleted(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.InlineResolveLimit = 2
	h := newHarness(t, cfg)

	h.fund(t, 1_000_000_000)
	drawID := h.openDraw(t)

	winnerID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 7, 1_000_000)
	for _, n := range []int64{8, 9, 10, 11} {
		h.placeBet(t, drawID, draw.BetTypeTwoDigit, n, 1_000_000)
	}

	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 7)

	// Five bets against a limit of two: fulfillment parks the draw.
	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusVrfFulfilled {
		t.Fatalf("draw status = %s, want %s", d.Status, draw.DrawStatusVrfFulfilled)
	}
	if d.ResolutionCursor != 0 {
		t.Fatalf("cursor = %d, want 0 before paging", d.ResolutionCursor)
	}

	resolve := func() error {
		return h.engine.Process(&command.ResolveDrawBatch{
			CommandID: uuid.New(), DrawID: drawID, PageSize: 2, At: baseTime + 30_000,
		})
	}

	for i, wantCursor := range []int{2, 4, 5} {
		if err := resolve(); err != nil {
			t.Fatalf("page %d: %v", i+1, err)
		}
		d, _ = h.engine.Draw(drawID)
		if d.ResolutionCursor != wantCursor {
			t.Fatalf("page %d: cursor = %d, want %d", i+1, d.ResolutionCursor, wantCursor)
		}
	}

	if d.Status != draw.DrawStatusCompleted {
		t.Errorf("draw status = %s, want %s after final page", d.Status, draw.DrawStatusCompleted)
	}

	b, _ := h.engine.Bet(winnerID)
	if b.Status != draw.BetStatusPaid || b.Payout != 61_750_000 {
		t.Errorf("winner status=%s payout=%d, want paid 61_750_000", b.Status, b.Payout)
	}

	// Resolving past completion is rejected.
	if err := resolve(); !errors.Is(err, engine.ErrDrawNotVrfFulfilled) {
		t.Errorf("resolve after completion = %v, want ErrDrawNotVrfFulfilled", err)
	}
}

func TestPagedResolution_RequiresFulfillment(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())
	drawID := h.openDraw(t)

	err := h.engine.Process(&command.ResolveDrawBatch{
		CommandID: uuid.New(), DrawID: drawID, PageSize: 10, At: baseTime + 5_000,
	})
	if !errors.Is(err, engine.ErrDrawNotVrfFulfilled) {
		t.Errorf("got %v, want ErrDrawNotVrfFulfilled", err)
	}
}

// ============================================================================
// Cancellation and Refunds
// ============================================================================

func TestCancelDraw_RefundsWagersAndFees(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 10_000_000)
	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	h.placeBet(t, drawID, draw.BetTypeThreeDigit, 123, 2_000_000)

	h.mustProcess(t, &command.CancelDraw{
		CommandID: uuid.New(), DrawID: drawID, Reason: "operator abort", At: baseTime + 5_000,
	})

	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusCancelled {
		t.Fatalf("draw status = %s, want %s", d.Status, draw.DrawStatusCancelled)
	}

	// Pool unwinds to exactly the funding amount, fee accrual reversed.
	snap := h.engine.Pool()
	if snap.TotalBalance != 10_000_000 {
		t.Errorf("total balance = %d, want 10_000_000", snap.TotalBalance)
	}
	if snap.AccruedFees != 0 {
		t.Errorf("accrued fees = %d, want 0", snap.AccruedFees)
	}

	b, _ := h.engine.Bet(betID)
	if b.Resolved || b.Status != draw.BetStatusPending {
		t.Errorf("cancelled-draw bet resolved=%v status=%s, want untouched pending", b.Resolved, b.Status)
	}
}

func TestCancelDraw_TerminalDrawRejected(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 5) // zero bets: completes immediately

	err := h.engine.Process(&command.CancelDraw{
		CommandID: uuid.New(), DrawID: drawID, At: baseTime + 30_000,
	})
	if !errors.Is(err, draw.ErrInvalidTransition) {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
}

func TestCancelStaleDraw_TimeoutGate(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 10_000_000)
	drawID := h.openDraw(t)
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	requestID := h.closeDraw(t, drawID)

	requestedAt := baseTime + 10_000
	stale := requestedAt + vrf.DefaultStaleAfterMillis

	err := h.engine.Process(&command.CancelStaleDraw{
		CommandID: uuid.New(), DrawID: drawID, At: stale - 1,
	})
	if !errors.Is(err, engine.ErrVrfNotTimedOut) {
		t.Fatalf("one millisecond early: got %v, want ErrVrfNotTimedOut", err)
	}

	h.mustProcess(t, &command.CancelStaleDraw{CommandID: uuid.New(), DrawID: drawID, At: stale})

	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusCancelled {
		t.Fatalf("draw status = %s, want %s", d.Status, draw.DrawStatusCancelled)
	}
	if got := h.engine.Pool().TotalBalance; got != 10_000_000 {
		t.Errorf("total balance = %d, want 10_000_000 after refunds", got)
	}

	// The abandoned request no longer accepts a late fulfillment.
	err = h.engine.Process(&command.RandomnessFulfilled{
		RequestID: requestID, RandomValues: []uint64{42}, At: stale + 1_000,
	})
	if !errors.Is(err, vrf.ErrUnknownRequest) {
		t.Errorf("late fulfillment = %v, want ErrUnknownRequest", err)
	}
}

func TestCancelStaleDraw_WrongPhase(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())
	drawID := h.openDraw(t)

	err := h.engine.Process(&command.CancelStaleDraw{
		CommandID: uuid.New(), DrawID: drawID, At: baseTime + vrf.DefaultStaleAfterMillis * 2,
	})
	if !errors.Is(err, engine.ErrVrfNotTimedOut) {
		t.Errorf("open draw: got %v, want ErrVrfNotTimedOut", err)
	}
}

// ============================================================================
// Admin Configuration
// ============================================================================

func TestMultipliers_StageCommitTakesEffect(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 1_000_000_000)
	h.mustProcess(t, &command.StageMultiplier{
		CommandID: uuid.New(), Type: draw.BetTypeTwoDigit, Multiplier: 7_000, At: baseTime,
	})
	h.mustProcess(t, &command.CommitMultipliers{CommandID: uuid.New(), At: baseTime})

	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	requestID := h.closeDraw(t, drawID)
	h.fulfill(t, requestID, 42)

	// Net 950_000 at the committed 70.00x = 66_500_000.
	b, _ := h.engine.Bet(betID)
	if b.Payout != 66_500_000 {
		t.Errorf("payout = %d, want 66_500_000", b.Payout)
	}
}

func TestSetFeeBps_BoundsAndEffect(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	if err := h.engine.Process(&command.SetFeeBps{CommandID: uuid.New(), FeeBps: 2_001, At: baseTime}); err == nil {
		t.Error("fee bps above cap should be rejected")
	}
	if err := h.engine.Process(&command.SetFeeBps{CommandID: uuid.New(), FeeBps: -1, At: baseTime}); err == nil {
		t.Error("negative fee bps should be rejected")
	}

	h.mustProcess(t, &command.SetFeeBps{CommandID: uuid.New(), FeeBps: 0, At: baseTime})

	drawID := h.openDraw(t)
	betID := h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)

	b, _ := h.engine.Bet(betID)
	if b.Fee != 0 {
		t.Errorf("fee = %d, want 0 at zero bps", b.Fee)
	}
	if got := h.engine.Pool().AccruedFees; got != 0 {
		t.Errorf("accrued fees = %d, want 0", got)
	}
}

func TestSetBetLimits_Validation(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	if err := h.engine.Process(&command.SetBetLimits{
		CommandID: uuid.New(), MinAmount: 5_000_000, MaxAmount: 1_000_000, At: baseTime,
	}); err == nil {
		t.Error("max below min should be rejected")
	}

	h.mustProcess(t, &command.SetBetLimits{
		CommandID: uuid.New(), MinAmount: 2_000_000, MaxAmount: 10_000_000, At: baseTime,
	})

	drawID := h.openDraw(t)
	err := h.engine.Process(&command.PlaceBet{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: drawID,
		Bet: command.BetEntry{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 42, Amount: 1_000_000},
		At:  baseTime + 2_000,
	})
	if !errors.Is(err, engine.ErrInvalidAmount) {
		t.Errorf("below new minimum: got %v, want ErrInvalidAmount", err)
	}
}

func TestWithdrawFees_OnlyFromAccrued(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := h.openDraw(t)
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000) // accrues 50_000

	if err := h.engine.Process(&command.WithdrawFees{
		CommandID: uuid.New(), Amount: 50_001, At: baseTime + 3_000,
	}); err == nil {
		t.Error("withdrawal above accrued fees should be rejected")
	}

	h.mustProcess(t, &command.WithdrawFees{CommandID: uuid.New(), Amount: 50_000, At: baseTime + 3_000})

	snap := h.engine.Pool()
	if snap.AccruedFees != 0 {
		t.Errorf("accrued fees = %d, want 0 after withdrawal", snap.AccruedFees)
	}
	if snap.TotalBalance != 950_000 {
		t.Errorf("total balance = %d, want 950_000", snap.TotalBalance)
	}
}

func TestAdminSettings_SnapshotEmitted(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.mustProcess(t, &command.SetFeeBps{CommandID: uuid.New(), FeeBps: 1_000, At: baseTime})
	outputs := h.drain()
	if len(outputs) != 1 {
		t.Fatalf("set fee bps emitted %d outputs, want 1", len(outputs))
	}
	if outputs[0].Envelope != nil {
		t.Error("settings change should be a row-only output")
	}
	if outputs[0].Settings == nil || outputs[0].Settings.FeeBps != 1_000 {
		t.Fatalf("settings snapshot = %+v, want fee bps 1_000", outputs[0].Settings)
	}

	h.mustProcess(t, &command.Pause{CommandID: uuid.New(), At: baseTime + 1_000})
	outputs = h.drain()
	if len(outputs) != 1 {
		t.Fatalf("pause emitted %d outputs, want 1", len(outputs))
	}
	if _, ok := outputs[0].Event.(*event.IntakePaused); !ok {
		t.Errorf("pause event = %T, want IntakePaused", outputs[0].Event)
	}
	if outputs[0].Settings == nil || !outputs[0].Settings.Paused {
		t.Fatalf("settings snapshot = %+v, want paused", outputs[0].Settings)
	}
	// The fee adjustment carries through to the pause-time snapshot.
	if outputs[0].Settings.FeeBps != 1_000 {
		t.Errorf("paused snapshot fee bps = %d, want 1_000", outputs[0].Settings.FeeBps)
	}
}

func TestAdminSettings_SurviveRestore(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())
	h.mustProcess(t, &command.SetFeeBps{CommandID: uuid.New(), FeeBps: 1_000, At: baseTime})
	h.mustProcess(t, &command.SetBetLimits{
		CommandID: uuid.New(), MinAmount: 2_000_000, MaxAmount: 10_000_000, At: baseTime,
	})
	h.mustProcess(t, &command.Pause{CommandID: uuid.New(), At: baseTime})

	outputs := h.drain()
	settings := outputs[len(outputs)-1].Settings
	if settings == nil {
		t.Fatal("last output carries no settings snapshot")
	}

	h2 := newHarness(t, engine.DefaultConfig())
	h2.engine.Restore(&engine.RestoredState{
		Sequence: h.engine.Sequence(),
		Settings: settings,
	})

	cfg := h2.engine.Config()
	if cfg.FeeBps != 1_000 {
		t.Errorf("restored fee bps = %d, want 1_000", cfg.FeeBps)
	}
	if cfg.MinBetAmount != 2_000_000 || cfg.MaxBetAmount != 10_000_000 {
		t.Errorf("restored limits = [%d, %d], want [2_000_000, 10_000_000]",
			cfg.MinBetAmount, cfg.MaxBetAmount)
	}
	if !h2.engine.Paused() {
		t.Error("pause flag lost across restore")
	}

	// The restored pause still blocks intake.
	err := h2.engine.Process(&command.PlaceBet{
		CommandID: uuid.New(), UserID: uuid.New(), DrawID: uuid.New(),
		Bet: command.BetEntry{BetID: uuid.New(), Type: draw.BetTypeTwoDigit, Number: 42, Amount: 2_000_000},
		At:  baseTime + 1_000,
	})
	if !errors.Is(err, engine.ErrEnforcedPause) {
		t.Errorf("intake after restore: got %v, want ErrEnforcedPause", err)
	}
}

func TestCancelDraw_ScheduledBeforeOpen(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	drawID := uuid.New()
	h.mustProcess(t, &command.CreateDraw{
		CommandID: uuid.New(), DrawID: drawID, Label: "mislabeled", ScheduledAt: baseTime, At: baseTime,
	})
	h.mustProcess(t, &command.CancelDraw{
		CommandID: uuid.New(), DrawID: drawID, Reason: "scheduling mistake", At: baseTime + 1_000,
	})

	d, _ := h.engine.Draw(drawID)
	if d.Status != draw.DrawStatusCancelled {
		t.Errorf("draw status = %s, want %s", d.Status, draw.DrawStatusCancelled)
	}
	// No bets exist before open: cancellation moves nothing in the pool.
	snap := h.engine.Pool()
	if snap.TotalBalance != 0 || snap.AccruedFees != 0 {
		t.Errorf("pool = %+v, want untouched", snap)
	}
}

// ============================================================================
// Output Stream
// ============================================================================

func TestOutputs_SequenceAndSnapshots(t *testing.T) {
	h := newHarness(t, engine.DefaultConfig())

	h.fund(t, 100_000_000)
	drawID := h.openDraw(t)
	h.placeBet(t, drawID, draw.BetTypeTwoDigit, 42, 1_000_000)
	h.drain()

	requestID := h.closeDraw(t, drawID)
	outputs := h.drain()

	// CloseDraw emits DrawClosed then VrfRequested with ascending sequences.
	if len(outputs) != 2 {
		t.Fatalf("close draw emitted %d outputs, want 2", len(outputs))
	}
	if outputs[0].Envelope.EventType != event.EventTypeDrawClosed {
		t.Errorf("first event = %s, want %s", outputs[0].Envelope.EventType, event.EventTypeDrawClosed)
	}
	if outputs[1].Envelope.EventType != event.EventTypeVrfRequested {
		t.Errorf("second event = %s, want %s", outputs[1].Envelope.EventType, event.EventTypeVrfRequested)
	}
	if outputs[1].Envelope.Sequence != outputs[0].Envelope.Sequence+1 {
		t.Errorf("sequences %d, %d: want consecutive", outputs[0].Envelope.Sequence, outputs[1].Envelope.Sequence)
	}

	// Row snapshots ride the first output of the command only.
	if outputs[0].Draw == nil || outputs[0].VrfRequest == nil {
		t.Error("first output should carry draw and vrf request snapshots")
	}
	if outputs[1].Draw != nil {
		t.Error("second output should carry no row snapshots")
	}

	h.fulfill(t, requestID, 1_342)
	outputs = h.drain()
	last := outputs[len(outputs)-1]
	if last.Envelope.EventType != event.EventTypeDrawResolved {
		t.Errorf("final event = %s, want %s", last.Envelope.EventType, event.EventTypeDrawResolved)
	}
}

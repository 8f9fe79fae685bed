package fixedpoint_test

import (
	"DrawLedger/internal/fixedpoint"
	"testing"
)

// ============================================================================
// Test: MulDiv rounding
// ============================================================================

func TestMulDiv_RoundDown_Truncates(t *testing.T) {
	// 7 * 3 / 2 = 10.5 -> 10
	got := fixedpoint.MulDiv(7, 3, 2, fixedpoint.RoundDown)
	if got != 10 {
		t.Errorf("got %d, want 10", got)
	}
}

func TestMulDiv_RoundUp(t *testing.T) {
	got := fixedpoint.MulDiv(7, 3, 2, fixedpoint.RoundUp)
	if got != 11 {
		t.Errorf("got %d, want 11", got)
	}
}

func TestMulDiv_RoundHalfEven(t *testing.T) {
	// 5 * 1 / 2 = 2.5 -> rounds to even 2
	got := fixedpoint.MulDiv(5, 1, 2, fixedpoint.RoundHalfEven)
	if got != 2 {
		t.Errorf("got %d, want 2", got)
	}

	// 7 * 1 / 2 = 3.5 -> rounds to even 4
	got = fixedpoint.MulDiv(7, 1, 2, fixedpoint.RoundHalfEven)
	if got != 4 {
		t.Errorf("got %d, want 4", got)
	}
}

func TestMulDiv_NoOverflow(t *testing.T) {
	// Product exceeds int64 but quotient fits.
	a := int64(5_000_000_000_000)
	b := int64(4_000_000)
	got := fixedpoint.MulDiv(a, b, 1_000_000, fixedpoint.RoundDown)
	want := int64(20_000_000_000_000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

// ============================================================================
// Test: Fee computation
// ============================================================================

func TestComputeFee_FiveHundredBps(t *testing.T) {
	// 1.00 stake at 500 bps (5%) -> 0.05 fee
	got := fixedpoint.ComputeFee(1_000_000, 500)
	if got != 50_000 {
		t.Errorf("got %d, want 50_000", got)
	}
}

func TestComputeFee_RoundsDown(t *testing.T) {
	// 999 * 500 / 10000 = 49.95 -> 49
	got := fixedpoint.ComputeFee(999, 500)
	if got != 49 {
		t.Errorf("got %d, want 49", got)
	}
}

func TestComputeFee_ZeroBps(t *testing.T) {
	if got := fixedpoint.ComputeFee(1_000_000, 0); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

// ============================================================================
// Test: Payout computation
// ============================================================================

func TestComputePayout_TwoDigitCanonical(t *testing.T) {
	// net 0.95, multiplier 65.00x -> 61.75
	got := fixedpoint.ComputePayout(950_000, 6_500)
	if got != 61_750_000 {
		t.Errorf("got %d, want 61_750_000", got)
	}
}

func TestComputePayout_TruncatesTowardZero(t *testing.T) {
	// 333 * 150 / 100 = 499.5 -> 499
	got := fixedpoint.ComputePayout(333, 150)
	if got != 499 {
		t.Errorf("got %d, want 499", got)
	}
}

func TestComputePayout_FullMultiplier(t *testing.T) {
	// 0.95 net at 900.00x (4-digit) -> 855.00
	got := fixedpoint.ComputePayout(950_000, 90_000)
	if got != 855_000_000 {
		t.Errorf("got %d, want 855_000_000", got)
	}
}

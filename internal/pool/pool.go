// internal/pool/pool.go
package pool

import (
	"errors"
	"fmt"
)

// ErrInsufficientPool is returned when a payout or withdrawal would exceed
// the available (payable) portion of the pool.
var ErrInsufficientPool = errors.New("insufficient pool")

// Ledger maintains the shared liquidity pool. All amounts are fixed-point
// int64 in the amount scale.
//
// Invariant: available = totalBalance - accruedFees >= 0 after every
// operation. Operations that would break it either return
// ErrInsufficientPool (payouts, withdrawals) or panic (bookkeeping
// violations that the state guards should have made unreachable).
type Ledger struct {
	totalBalance int64
	accruedFees  int64
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// TotalBalance returns everything the pool holds, fees included.
func (l *Ledger) TotalBalance() int64 {
	return l.totalBalance
}

// AccruedFees returns the fee portion reserved for operator withdrawal.
func (l *Ledger) AccruedFees() int64 {
	return l.accruedFees
}

// Available returns the payable portion of the pool.
func (l *Ledger) Available() int64 {
	return l.totalBalance - l.accruedFees
}

// Fund adds operator liquidity to the pool.
func (l *Ledger) Fund(amount int64) {
	if amount <= 0 {
		panic(fmt.Sprintf("pool: fund amount must be positive, got %d", amount))
	}
	l.totalBalance += amount
}

// AcceptWager moves a bettor's gross wager into the pool and reserves the
// fee portion. Called exactly once per accepted bet.
func (l *Ledger) AcceptWager(amount, fee int64) {
	if amount <= 0 || fee < 0 || fee > amount {
		panic(fmt.Sprintf("pool: invalid wager amount=%d fee=%d", amount, fee))
	}
	l.totalBalance += amount
	l.accruedFees += fee
}

// RefundWager reverses AcceptWager for a cancelled draw: the bettor gets the
// exact original wager back and the fee accrual is unwound. The state guards
// make this unreachable after any payout has consumed the wager, so a
// violation here is a bookkeeping fault.
func (l *Ledger) RefundWager(amount, fee int64) {
	if l.totalBalance-amount < 0 {
		panic(fmt.Sprintf("pool: refund %d exceeds total balance %d", amount, l.totalBalance))
	}
	if l.accruedFees-fee < 0 {
		panic(fmt.Sprintf("pool: fee reversal %d exceeds accrued fees %d", fee, l.accruedFees))
	}
	l.totalBalance -= amount
	l.accruedFees -= fee
}

// Pay removes a winning payout from the pool. Returns ErrInsufficientPool
// without mutating anything when the available portion cannot cover it.
func (l *Ledger) Pay(payout int64) error {
	if payout <= 0 {
		panic(fmt.Sprintf("pool: payout must be positive, got %d", payout))
	}
	if payout > l.Available() {
		return fmt.Errorf("payout %d exceeds available %d: %w", payout, l.Available(), ErrInsufficientPool)
	}
	l.totalBalance -= payout
	return nil
}

// WithdrawFees moves accrued fees out of the pool to the operator.
func (l *Ledger) WithdrawFees(amount int64) error {
	if amount <= 0 {
		panic(fmt.Sprintf("pool: fee withdrawal must be positive, got %d", amount))
	}
	if amount > l.accruedFees {
		return fmt.Errorf("fee withdrawal %d exceeds accrued %d: %w", amount, l.accruedFees, ErrInsufficientPool)
	}
	l.totalBalance -= amount
	l.accruedFees -= amount
	return nil
}

// ValidateSolvent checks the pool invariant. The engine calls this after
// every applied command; a failure is fatal.
func (l *Ledger) ValidateSolvent() error {
	if l.Available() < 0 {
		return fmt.Errorf("pool insolvent: total=%d fees=%d available=%d",
			l.totalBalance, l.accruedFees, l.Available())
	}
	if l.accruedFees < 0 {
		return fmt.Errorf("negative accrued fees: %d", l.accruedFees)
	}
	return nil
}

// Snapshot returns the pool balances for persistence.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		TotalBalance: l.totalBalance,
		AccruedFees:  l.accruedFees,
		Available:    l.Available(),
	}
}

// Restore resets the ledger to a persisted snapshot (replay bootstrap).
func (l *Ledger) Restore(s Snapshot) {
	l.totalBalance = s.TotalBalance
	l.accruedFees = s.AccruedFees
}

// Snapshot is a point-in-time copy of the pool balances.
type Snapshot struct {
	TotalBalance int64
	AccruedFees  int64
	Available    int64
}

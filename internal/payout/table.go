// internal/payout/table.go
package payout

import (
	"fmt"

	"DrawLedger/internal/draw"
)

// Multiplier is a payout multiplier row for a bet type, in hundredths of
// 1.00x (6_500 = 65.00x).
type Multiplier struct {
	Type       draw.BetType
	Multiplier int64
}

// Default multipliers for a fresh deployment.
var DefaultMultipliers = map[draw.BetType]int64{
	draw.BetTypeTwoDigit:   6_500,   // 65.00x
	draw.BetTypeThreeDigit: 65_000,  // 650.00x
	draw.BetTypeFourDigit:  650_000, // 6500.00x
}

// Table holds the live multiplier rows plus a staging area. Staged rows only
// become visible to resolution after an explicit commit, so a partially
// written table is never live.
type Table struct {
	live   map[draw.BetType]int64
	staged map[draw.BetType]int64
}

func NewTable() *Table {
	live := make(map[draw.BetType]int64, len(DefaultMultipliers))
	for k, v := range DefaultMultipliers {
		live[k] = v
	}
	return &Table{
		live:   live,
		staged: make(map[draw.BetType]int64),
	}
}

// Get returns the live multiplier for a bet type.
func (t *Table) Get(betType draw.BetType) (int64, bool) {
	m, ok := t.live[betType]
	return m, ok
}

// ValidateMultiplier checks that a staged row is usable: known bet type and
// a strictly positive multiplier.
func ValidateMultiplier(row Multiplier) error {
	if !row.Type.Valid() {
		return fmt.Errorf("unknown bet type %d", row.Type)
	}
	if row.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be > 0, got %d", row.Multiplier)
	}
	return nil
}

// Stage records a row in the staging area without touching the live table.
func (t *Table) Stage(row Multiplier) error {
	if err := ValidateMultiplier(row); err != nil {
		return fmt.Errorf("invalid multiplier for %s: %w", row.Type, err)
	}
	t.staged[row.Type] = row.Multiplier
	return nil
}

// StagedCount returns how many rows await commit.
func (t *Table) StagedCount() int {
	return len(t.staged)
}

// Commit atomically promotes every staged row into the live table and
// clears the staging area. Committing an empty stage is an error so an
// operator cannot silently commit nothing.
func (t *Table) Commit() error {
	if len(t.staged) == 0 {
		return fmt.Errorf("no staged multipliers to commit")
	}
	for k, v := range t.staged {
		t.live[k] = v
	}
	t.staged = make(map[draw.BetType]int64)
	return nil
}

// DiscardStaged drops any uncommitted rows.
func (t *Table) DiscardStaged() {
	t.staged = make(map[draw.BetType]int64)
}

// Restore replaces the live table with persisted rows on restart. Staged
// rows are not durable and start empty.
func (t *Table) Restore(live map[draw.BetType]int64) {
	for k, v := range live {
		t.live[k] = v
	}
	t.staged = make(map[draw.BetType]int64)
}

// Snapshot returns a copy of the live table for persistence.
func (t *Table) Snapshot() map[draw.BetType]int64 {
	snap := make(map[draw.BetType]int64, len(t.live))
	for k, v := range t.live {
		snap[k] = v
	}
	return snap
}

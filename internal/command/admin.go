// internal/command/admin.go
package command

import (
	"DrawLedger/internal/draw"

	"github.com/google/uuid"
)

// FundPool adds operator liquidity to the shared pool.
type FundPool struct {
	CommandID uuid.UUID
	Amount    int64 // Fixed-point: amount scale
	At        int64
}

func (c *FundPool) IdempotencyKey() string   { return c.CommandID.String() }
func (c *FundPool) CommandType() CommandType { return CommandTypeFundPool }
func (c *FundPool) Timestamp() int64         { return c.At }

// WithdrawFees moves accrued fees out of the pool to the operator.
type WithdrawFees struct {
	CommandID uuid.UUID
	Amount    int64
	At        int64
}

func (c *WithdrawFees) IdempotencyKey() string   { return c.CommandID.String() }
func (c *WithdrawFees) CommandType() CommandType { return CommandTypeWithdrawFees }
func (c *WithdrawFees) Timestamp() int64         { return c.At }

// SetFeeBps sets the placement fee rate in basis points (bounded at 2000).
type SetFeeBps struct {
	CommandID uuid.UUID
	FeeBps    int64
	At        int64
}

func (c *SetFeeBps) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SetFeeBps) CommandType() CommandType { return CommandTypeSetFeeBps }
func (c *SetFeeBps) Timestamp() int64         { return c.At }

// SetBetLimits sets the accepted wager amount range.
type SetBetLimits struct {
	CommandID uuid.UUID
	MinAmount int64
	MaxAmount int64
	At        int64
}

func (c *SetBetLimits) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SetBetLimits) CommandType() CommandType { return CommandTypeSetBetLimits }
func (c *SetBetLimits) Timestamp() int64         { return c.At }

// SetExposureCeiling sets the per-number cumulative wager ceiling
// (zero = unlimited).
type SetExposureCeiling struct {
	CommandID uuid.UUID
	Ceiling   int64
	At        int64
}

func (c *SetExposureCeiling) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SetExposureCeiling) CommandType() CommandType { return CommandTypeSetExposureCeiling }
func (c *SetExposureCeiling) Timestamp() int64         { return c.At }

// StageMultiplier stages one payout-table row; nothing changes until a
// CommitMultipliers lands.
type StageMultiplier struct {
	CommandID  uuid.UUID
	Type       draw.BetType
	Multiplier int64 // Hundredths of 1.00x
	At         int64
}

func (c *StageMultiplier) IdempotencyKey() string   { return c.CommandID.String() }
func (c *StageMultiplier) CommandType() CommandType { return CommandTypeStageMultiplier }
func (c *StageMultiplier) Timestamp() int64         { return c.At }

// CommitMultipliers atomically promotes every staged row to the live table.
type CommitMultipliers struct {
	CommandID uuid.UUID
	At        int64
}

func (c *CommitMultipliers) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CommitMultipliers) CommandType() CommandType { return CommandTypeCommitMultipliers }
func (c *CommitMultipliers) Timestamp() int64         { return c.At }

// SetVrfConfig adjusts the randomness-adapter configuration.
type SetVrfConfig struct {
	CommandID        uuid.UUID
	StaleAfterMillis int64
	KeyHash          string
	At               int64
}

func (c *SetVrfConfig) IdempotencyKey() string   { return c.CommandID.String() }
func (c *SetVrfConfig) CommandType() CommandType { return CommandTypeSetVrfConfig }
func (c *SetVrfConfig) Timestamp() int64         { return c.At }

// Pause suspends new bet intake. In-flight resolution and refunds are
// unaffected.
type Pause struct {
	CommandID uuid.UUID
	At        int64
}

func (c *Pause) IdempotencyKey() string   { return c.CommandID.String() }
func (c *Pause) CommandType() CommandType { return CommandTypePause }
func (c *Pause) Timestamp() int64         { return c.At }

// Unpause resumes bet intake.
type Unpause struct {
	CommandID uuid.UUID
	At        int64
}

func (c *Unpause) IdempotencyKey() string   { return c.CommandID.String() }
func (c *Unpause) CommandType() CommandType { return CommandTypeUnpause }
func (c *Unpause) Timestamp() int64         { return c.At }

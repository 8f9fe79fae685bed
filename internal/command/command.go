// internal/command/command.go
package command

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeCreateDraw
	CommandTypeOpenDraw
	CommandTypeCloseDraw
	CommandTypeCancelDraw
	CommandTypeCancelStaleDraw
	CommandTypeFundPool
	CommandTypeWithdrawFees
	CommandTypeSetFeeBps
	CommandTypeSetBetLimits
	CommandTypeSetExposureCeiling
	CommandTypeStageMultiplier
	CommandTypeCommitMultipliers
	CommandTypeSetVrfConfig
	CommandTypePause
	CommandTypeUnpause
	CommandTypePlaceBet
	CommandTypePlaceBetBatch
	CommandTypeResolveDrawBatch
	CommandTypeRetryUnpaidBet
	CommandTypeRandomnessFulfilled
)

// Command is the interface all engine inputs implement. Timestamps are
// versioned inputs carried on the command; the engine never reads the wall
// clock.
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Timestamp returns the command's versioned time in unix millis
	Timestamp() int64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeCreateDraw:
		return "CreateDraw"
	case CommandTypeOpenDraw:
		return "OpenDraw"
	case CommandTypeCloseDraw:
		return "CloseDraw"
	case CommandTypeCancelDraw:
		return "CancelDraw"
	case CommandTypeCancelStaleDraw:
		return "CancelStaleDraw"
	case CommandTypeFundPool:
		return "FundPool"
	case CommandTypeWithdrawFees:
		return "WithdrawFees"
	case CommandTypeSetFeeBps:
		return "SetFeeBps"
	case CommandTypeSetBetLimits:
		return "SetBetLimits"
	case CommandTypeSetExposureCeiling:
		return "SetExposureCeiling"
	case CommandTypeStageMultiplier:
		return "StageMultiplier"
	case CommandTypeCommitMultipliers:
		return "CommitMultipliers"
	case CommandTypeSetVrfConfig:
		return "SetVrfConfig"
	case CommandTypePause:
		return "Pause"
	case CommandTypeUnpause:
		return "Unpause"
	case CommandTypePlaceBet:
		return "PlaceBet"
	case CommandTypePlaceBetBatch:
		return "PlaceBetBatch"
	case CommandTypeResolveDrawBatch:
		return "ResolveDrawBatch"
	case CommandTypeRetryUnpaidBet:
		return "RetryUnpaidBet"
	case CommandTypeRandomnessFulfilled:
		return "RandomnessFulfilled"
	default:
		return "Unknown"
	}
}

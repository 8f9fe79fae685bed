// internal/command/draw.go
package command

import "github.com/google/uuid"

// CreateDraw schedules a new draw.
type CreateDraw struct {
	CommandID   uuid.UUID
	DrawID      uuid.UUID
	Label       string
	ScheduledAt int64 // Unix millis
	At          int64
}

func (c *CreateDraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CreateDraw) CommandType() CommandType { return CommandTypeCreateDraw }
func (c *CreateDraw) Timestamp() int64         { return c.At }

// OpenDraw opens a scheduled draw for bet intake.
type OpenDraw struct {
	CommandID uuid.UUID
	DrawID    uuid.UUID
	At        int64
}

func (c *OpenDraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *OpenDraw) CommandType() CommandType { return CommandTypeOpenDraw }
func (c *OpenDraw) Timestamp() int64         { return c.At }

// CloseDraw closes intake and issues the randomness request in the same
// atomic step. RequestID is the caller-supplied handle for the oracle.
type CloseDraw struct {
	CommandID uuid.UUID
	DrawID    uuid.UUID
	RequestID uuid.UUID
	At        int64
}

func (c *CloseDraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CloseDraw) CommandType() CommandType { return CommandTypeCloseDraw }
func (c *CloseDraw) Timestamp() int64         { return c.At }

// CancelDraw is the operator cancellation path: refunds every bet and
// reverses fee accrual.
type CancelDraw struct {
	CommandID uuid.UUID
	DrawID    uuid.UUID
	Reason    string
	At        int64
}

func (c *CancelDraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CancelDraw) CommandType() CommandType { return CommandTypeCancelDraw }
func (c *CancelDraw) Timestamp() int64         { return c.At }

// CancelStaleDraw is the timeout cancellation path, callable by anyone once
// the randomness request has aged past the configured timeout.
type CancelStaleDraw struct {
	CommandID uuid.UUID
	DrawID    uuid.UUID
	At        int64
}

func (c *CancelStaleDraw) IdempotencyKey() string   { return c.CommandID.String() }
func (c *CancelStaleDraw) CommandType() CommandType { return CommandTypeCancelStaleDraw }
func (c *CancelStaleDraw) Timestamp() int64         { return c.At }

// ResolveDrawBatch advances paginated resolution by up to PageSize bets.
type ResolveDrawBatch struct {
	CommandID uuid.UUID
	DrawID    uuid.UUID
	PageSize  int
	At        int64
}

func (c *ResolveDrawBatch) IdempotencyKey() string   { return c.CommandID.String() }
func (c *ResolveDrawBatch) CommandType() CommandType { return CommandTypeResolveDrawBatch }
func (c *ResolveDrawBatch) Timestamp() int64         { return c.At }

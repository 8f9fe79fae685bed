// internal/command/vrf.go
package command

import "github.com/google/uuid"

// RandomnessFulfilled is the oracle callback, delivered as a command on the
// same stream as everything else. The idempotency key is derived from the
// request handle, not a caller-chosen command ID, so duplicate deliveries
// collapse regardless of who relays them.
type RandomnessFulfilled struct {
	RequestID    uuid.UUID
	RandomValues []uint64
	At           int64
}

func (c *RandomnessFulfilled) IdempotencyKey() string {
	return "vrf:" + c.RequestID.String()
}

func (c *RandomnessFulfilled) CommandType() CommandType {
	return CommandTypeRandomnessFulfilled
}

func (c *RandomnessFulfilled) Timestamp() int64 { return c.At }

// internal/vrf/pending.go
package vrf

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownRequest   = errors.New("unknown vrf request")
	ErrAlreadyFulfilled = errors.New("vrf request already fulfilled")
)

// DefaultStaleAfterMillis is how long a request may sit unfulfilled before
// the stale-cancel path opens (2 hours).
const DefaultStaleAfterMillis int64 = 2 * 60 * 60 * 1000

// Config is the randomness-adapter configuration an operator can adjust.
type Config struct {
	StaleAfterMillis int64  // Timeout before cancelStaleDraw becomes callable
	KeyHash          string // Oracle key identity, opaque to the engine
}

func DefaultConfig() Config {
	return Config{StaleAfterMillis: DefaultStaleAfterMillis}
}

// Request is one outstanding randomness request. The stored request-handle →
// draw mapping is what connects the two disjoint transactions (close-time
// request, callback-time fulfillment).
type Request struct {
	RequestID   uuid.UUID
	DrawID      uuid.UUID
	RequestedAt int64 // Unix millis, from the closing command's timestamp
	Fulfilled   bool
	FulfilledAt int64
}

// PendingTable tracks outstanding randomness requests. Fulfillment is
// exactly-once: a second delivery for the same handle is rejected.
type PendingTable struct {
	requests map[uuid.UUID]*Request
}

func NewPendingTable() *PendingTable {
	return &PendingTable{
		requests: make(map[uuid.UUID]*Request),
	}
}

// Issue records a new request at close time and returns its handle.
func (pt *PendingTable) Issue(requestID, drawID uuid.UUID, requestedAt int64) *Request {
	req := &Request{
		RequestID:   requestID,
		DrawID:      drawID,
		RequestedAt: requestedAt,
	}
	pt.requests[requestID] = req
	return req
}

// Get returns a request by handle.
func (pt *PendingTable) Get(requestID uuid.UUID) (*Request, bool) {
	req, ok := pt.requests[requestID]
	return req, ok
}

// Fulfill marks a request delivered and returns the draw it belongs to.
func (pt *PendingTable) Fulfill(requestID uuid.UUID, fulfilledAt int64) (uuid.UUID, error) {
	req, ok := pt.requests[requestID]
	if !ok {
		return uuid.Nil, ErrUnknownRequest
	}
	if req.Fulfilled {
		return uuid.Nil, ErrAlreadyFulfilled
	}
	req.Fulfilled = true
	req.FulfilledAt = fulfilledAt
	return req.DrawID, nil
}

// IsStale reports whether an unfulfilled request has aged past the timeout,
// measured against the caller-supplied timestamp (the engine never reads
// wall clock).
func (pt *PendingTable) IsStale(requestID uuid.UUID, now, staleAfterMillis int64) (bool, error) {
	req, ok := pt.requests[requestID]
	if !ok {
		return false, ErrUnknownRequest
	}
	if req.Fulfilled {
		return false, nil
	}
	return now-req.RequestedAt >= staleAfterMillis, nil
}

// Abandon drops a request whose draw was cancelled; a late callback for it
// then fails with ErrUnknownRequest.
func (pt *PendingTable) Abandon(requestID uuid.UUID) {
	delete(pt.requests, requestID)
}

// internal/engine/errors.go
package engine

import "errors"

// Rejection taxonomy. Every rejected command fails with exactly one of
// these (or a sentinel from pool/draw/vrf), wrapped with context.
var (
	ErrDrawNotFound        = errors.New("draw not found")
	ErrDrawNotOpen         = errors.New("draw not open")
	ErrDrawNotVrfFulfilled = errors.New("draw not vrf-fulfilled")
	ErrVrfNotTimedOut      = errors.New("vrf request not timed out")
	ErrInvalidNumber       = errors.New("invalid number for bet type")
	ErrInvalidAmount       = errors.New("invalid wager amount")
	ErrBatchEmpty          = errors.New("empty bet batch")
	ErrEnforcedPause       = errors.New("bet intake paused")
	ErrBetNotFound         = errors.New("bet not found")
	ErrBetNotUnpaid        = errors.New("bet not unpaid")
	ErrDuplicateDraw       = errors.New("draw already exists")
	ErrDuplicateBet        = errors.New("bet already exists")
)

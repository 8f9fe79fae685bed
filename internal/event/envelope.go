package event

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDrawCreated
	EventTypeDrawOpened
	EventTypeDrawClosed
	EventTypeVrfRequested
	EventTypeDrawResolved
	EventTypeDrawCancelled
	EventTypeBetPlaced
	EventTypeBetResolved
	EventTypeBetUnpaid
	EventTypeBetPaid
	EventTypePoolFunded
	EventTypeFeesAccrued
	EventTypeFeesWithdrawn
	EventTypeIntakePaused
	EventTypeIntakeResumed
)

// Envelope wraps every event in the log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64 `json:"sequence"`

	// Stable idempotency key of the originating command
	IdempotencyKey string `json:"idempotency_key"`

	// Event type discriminator
	EventType EventType `json:"event_type"`

	// Versioned command timestamp in unix millis (NOT wall-clock)
	Timestamp int64 `json:"timestamp"`

	// JSON-encoded event-specific data
	Payload []byte `json:"payload"`
}

// Event is the interface all outbound payloads implement.
type Event interface {
	EventType() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypeDrawCreated:
		return "DrawCreated"
	case EventTypeDrawOpened:
		return "DrawOpened"
	case EventTypeDrawClosed:
		return "DrawClosed"
	case EventTypeVrfRequested:
		return "VrfRequested"
	case EventTypeDrawResolved:
		return "DrawResolved"
	case EventTypeDrawCancelled:
		return "DrawCancelled"
	case EventTypeBetPlaced:
		return "BetPlaced"
	case EventTypeBetResolved:
		return "BetResolved"
	case EventTypeBetUnpaid:
		return "BetUnpaid"
	case EventTypeBetPaid:
		return "BetPaid"
	case EventTypePoolFunded:
		return "PoolFunded"
	case EventTypeFeesAccrued:
		return "FeesAccrued"
	case EventTypeFeesWithdrawn:
		return "FeesWithdrawn"
	case EventTypeIntakePaused:
		return "IntakePaused"
	case EventTypeIntakeResumed:
		return "IntakeResumed"
	default:
		return "Unknown"
	}
}

// Subject returns the snake_case NATS subject suffix for this type.
func (et EventType) Subject() string {
	switch et {
	case EventTypeDrawCreated:
		return "draw_created"
	case EventTypeDrawOpened:
		return "draw_opened"
	case EventTypeDrawClosed:
		return "draw_closed"
	case EventTypeVrfRequested:
		return "vrf_requested"
	case EventTypeDrawResolved:
		return "draw_resolved"
	case EventTypeDrawCancelled:
		return "draw_cancelled"
	case EventTypeBetPlaced:
		return "bet_placed"
	case EventTypeBetResolved:
		return "bet_resolved"
	case EventTypeBetUnpaid:
		return "bet_unpaid"
	case EventTypeBetPaid:
		return "bet_paid"
	case EventTypePoolFunded:
		return "pool_funded"
	case EventTypeFeesAccrued:
		return "fees_accrued"
	case EventTypeFeesWithdrawn:
		return "fees_withdrawn"
	case EventTypeIntakePaused:
		return "intake_paused"
	case EventTypeIntakeResumed:
		return "intake_resumed"
	default:
		return "unknown"
	}
}

// internal/event/pool_events.go
package event

type PoolFunded struct {
	Amount       int64 `json:"amount"`
	TotalBalance int64 `json:"total_balance"`
}

func (e *PoolFunded) EventType() EventType { return EventTypePoolFunded }

type FeesAccrued struct {
	Amount      int64 `json:"amount"`
	AccruedFees int64 `json:"accrued_fees"`
}

func (e *FeesAccrued) EventType() EventType { return EventTypeFeesAccrued }

type FeesWithdrawn struct {
	Amount      int64 `json:"amount"`
	AccruedFees int64 `json:"accrued_fees"`
}

func (e *FeesWithdrawn) EventType() EventType { return EventTypeFeesWithdrawn }

type IntakePaused struct{}

func (e *IntakePaused) EventType() EventType { return EventTypeIntakePaused }

type IntakeResumed struct{}

func (e *IntakeResumed) EventType() EventType { return EventTypeIntakeResumed }

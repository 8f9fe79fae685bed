package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"DrawLedger/internal/engine"
	"DrawLedger/internal/observability"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes processed events to NATS for downstream
// consumers (settlement UIs, alerting, analytics). The engine's publish
// channel is drop-on-full, so a slow publisher never stalls command
// processing; consumers that need completeness read the event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	logger    zerolog.Logger
}

// PublishableEvent is the outbound wire envelope.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      int64           `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		logger:    observability.NewLogger("publisher"),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if out.Envelope == nil {
				continue // row-only output, nothing to announce
			}

			if err := op.publish(ctx, out); err != nil {
				op.logger.Warn().
					Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope

	data, err := json.Marshal(PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Payload:        json.RawMessage(env.Payload),
		Timestamp:      env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("draw.ledger.events.%s", env.EventType.Subject())
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "DRAW_LEDGER_EVENTS",
		Subjects:  []string{"draw.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger := observability.NewLogger("publisher")
	logger.Info().Msg("ensured outbound stream DRAW_LEDGER_EVENTS")
	return nil
}

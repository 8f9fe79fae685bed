package ingestion

import (
	"context"
	"strings"

	"DrawLedger/internal/engine"
	"DrawLedger/internal/observability"

	"github.com/rs/zerolog"
)

// Dispatcher drains the raw-message channel, resolves each message's
// command type from its subject, parses it, and submits it to the engine
// loop. The engine is deterministic, so any reply (success or rejection)
// means the message is consumed: the dispatcher ACKs it either way and
// NAKs only when shutdown interrupts the handoff.
type Dispatcher struct {
	messages <-chan RawMessage
	requests chan<- engine.Request
	routes   []route
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

type route struct {
	prefix      string
	commandType string
}

func NewDispatcher(messages <-chan RawMessage, requests chan<- engine.Request, subjects []SubjectConfig, metrics *observability.Metrics) *Dispatcher {
	routes := make([]route, 0, len(subjects))
	for _, cfg := range subjects {
		routes = append(routes, route{
			prefix:      strings.TrimSuffix(cfg.Subject, ">"),
			commandType: cfg.CommandType,
		})
	}
	return &Dispatcher{
		messages: messages,
		requests: requests,
		routes:   routes,
		metrics:  metrics,
		logger:   observability.NewLogger("dispatcher"),
	}
}

// Run processes messages until the context is cancelled or the message
// channel closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopping")
			return
		case raw, ok := <-d.messages:
			if !ok {
				d.logger.Info().Msg("message channel closed")
				return
			}
			d.handle(ctx, raw)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, raw RawMessage) {
	commandType, ok := d.resolve(raw.Subject)
	if !ok {
		d.logger.Error().Str("subject", raw.Subject).Msg("no route for subject")
		d.reject("unknown", "no_route")
		raw.AckFunc()
		return
	}

	cmd, err := ParseRawMessage(raw, commandType)
	if err != nil {
		// Malformed payloads never parse on redelivery either.
		d.logger.Error().Err(err).
			Str("subject", raw.Subject).
			Str("command_type", commandType).
			Msg("parse failed")
		d.reject(commandType, "parse")
		raw.AckFunc()
		return
	}

	reply := make(chan error, 1)
	select {
	case d.requests <- engine.Request{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		raw.NakFunc()
		return
	}

	select {
	case err := <-reply:
		if err != nil {
			d.logger.Warn().Err(err).
				Str("command_type", commandType).
				Str("idempotency_key", cmd.IdempotencyKey()).
				Msg("command rejected")
			d.reject(commandType, "engine")
		}
		raw.AckFunc()
	case <-ctx.Done():
		raw.NakFunc()
	}
}

func (d *Dispatcher) reject(commandType, reason string) {
	if d.metrics != nil {
		d.metrics.CommandsRejected.WithLabelValues(commandType, reason).Inc()
	}
}

func (d *Dispatcher) resolve(subject string) (string, bool) {
	for _, r := range d.routes {
		if strings.HasPrefix(subject, r.prefix) {
			return r.commandType, true
		}
	}
	return "", false
}

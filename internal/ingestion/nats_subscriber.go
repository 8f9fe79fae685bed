package ingestion

import (
	"context"
	"fmt"
	"time"

	"DrawLedger/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds commands
// into the single-threaded engine via messageChan. Each subject maps to
// one command type.
type NATSSubscriber struct {
	js          jetstream.JetStream
	messageChan chan<- RawMessage
	consumers   []jetstream.ConsumeContext
	logger      zerolog.Logger
}

// RawMessage is a parsed-but-untyped command off NATS, ready for the shell
// to validate and convert into a command.Command before the engine sees it.
type RawMessage struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // ACK after successful processing
	NakFunc   func() // NAK on failure (redelivered)
}

// SubjectConfig maps a NATS subject to a command type.
type SubjectConfig struct {
	Subject      string
	CommandType  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Bet intake,
// the oracle relay, and the draw scheduler each get their own stream so
// they scale and retry independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "draw.bets.place.>", CommandType: "PlaceBet", ConsumerName: "ledger-bets-place", StreamName: "DRAW_BETS"},
		{Subject: "draw.bets.batch.>", CommandType: "PlaceBetBatch", ConsumerName: "ledger-bets-batch", StreamName: "DRAW_BETS"},
		{Subject: "draw.vrf.fulfilled.>", CommandType: "RandomnessFulfilled", ConsumerName: "ledger-vrf-fulfilled", StreamName: "DRAW_VRF"},
		{Subject: "draw.lifecycle.create.>", CommandType: "CreateDraw", ConsumerName: "ledger-draw-create", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.open.>", CommandType: "OpenDraw", ConsumerName: "ledger-draw-open", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.close.>", CommandType: "CloseDraw", ConsumerName: "ledger-draw-close", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.cancel.>", CommandType: "CancelDraw", ConsumerName: "ledger-draw-cancel", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.cancel_stale.>", CommandType: "CancelStaleDraw", ConsumerName: "ledger-draw-cancel-stale", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.resolve.>", CommandType: "ResolveDrawBatch", ConsumerName: "ledger-draw-resolve", StreamName: "DRAW_LIFECYCLE"},
		{Subject: "draw.lifecycle.retry_unpaid.>", CommandType: "RetryUnpaidBet", ConsumerName: "ledger-retry-unpaid", StreamName: "DRAW_LIFECYCLE"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, messageChan chan<- RawMessage) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		messageChan: messageChan,
		logger:      observability.NewLogger("ingestion"),
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawMessage{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.messageChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.logger.Info().
			Str("subject", cfg.Subject).
			Str("consumer", cfg.ConsumerName).
			Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	logger := observability.NewLogger("ingestion")

	streams := []jetstream.StreamConfig{
		{
			Name:      "DRAW_BETS",
			Subjects:  []string{"draw.bets.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "DRAW_VRF",
			Subjects:  []string{"draw.vrf.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "DRAW_LIFECYCLE",
			Subjects:  []string{"draw.lifecycle.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

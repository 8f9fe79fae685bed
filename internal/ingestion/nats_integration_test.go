package ingestion_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"DrawLedger/internal/command"
	"DrawLedger/internal/draw"
	"DrawLedger/internal/engine"
	"DrawLedger/internal/event"
	"DrawLedger/internal/ingestion"
	"DrawLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func connectTestNATS(t *testing.T) (*nats.Conn, jetstream.JetStream) {
	t.Helper()

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test nats not available: %v (start with: docker compose -f docker-compose.test.yml up -d)", err)
	}
	t.Cleanup(nc.Close)
	return nc, js
}

// purgeStream drops leftover messages so durable consumers from earlier
// runs cannot replay into the test.
func purgeStream(t *testing.T, js jetstream.JetStream, name string) {
	t.Helper()

	stream, err := js.Stream(context.Background(), name)
	if err != nil {
		t.Fatalf("lookup stream %s: %v", name, err)
	}
	if err := stream.Purge(context.Background()); err != nil {
		t.Fatalf("purge stream %s: %v", name, err)
	}
}

func TestNATSSubscriber_DeliversPlaceBet(t *testing.T) {
	testutil.RequireIntegration(t)
	_, js := connectTestNATS(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}
	purgeStream(t, js, "DRAW_BETS")

	messageChan := make(chan ingestion.RawMessage, 16)
	sub := ingestion.NewNATSSubscriber(js, messageChan)
	if err := sub.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Stop()

	commandID := uuid.New()
	drawID := uuid.New()
	userID := uuid.New()
	payload, err := json.Marshal(map[string]interface{}{
		"command_id": commandID.String(),
		"user_id":    userID.String(),
		"draw_id":    drawID.String(),
		"bet": map[string]interface{}{
			"bet_type": "two_digit",
			"number":   42,
			"amount":   1_000_000,
		},
		"timestamp_ms": 1_700_000_000_000,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	if _, err := js.Publish(ctx, "draw.bets.place.user-1", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var raw ingestion.RawMessage
	select {
	case raw = <-messageChan:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message off DRAW_BETS")
	}

	if raw.Subject != "draw.bets.place.user-1" {
		t.Errorf("subject = %q, want draw.bets.place.user-1", raw.Subject)
	}

	cmd, err := ingestion.ParseRawMessage(raw, "PlaceBet")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	placeBet, ok := cmd.(*command.PlaceBet)
	if !ok {
		t.Fatalf("expected *command.PlaceBet, got %T", cmd)
	}

	if placeBet.CommandID != commandID {
		t.Errorf("command ID = %s, want %s", placeBet.CommandID, commandID)
	}
	if placeBet.DrawID != drawID {
		t.Errorf("draw ID = %s, want %s", placeBet.DrawID, drawID)
	}
	if placeBet.UserID != userID {
		t.Errorf("user ID = %s, want %s", placeBet.UserID, userID)
	}
	if placeBet.Bet.Type != draw.BetTypeTwoDigit {
		t.Errorf("bet type = %v, want two-digit", placeBet.Bet.Type)
	}
	if placeBet.Bet.Number != 42 {
		t.Errorf("number = %d, want 42", placeBet.Bet.Number)
	}
	if placeBet.Bet.Amount != 1_000_000 {
		t.Errorf("amount = %d, want 1000000", placeBet.Bet.Amount)
	}
	if placeBet.At != 1_700_000_000_000 {
		t.Errorf("timestamp = %d, want 1700000000000", placeBet.At)
	}

	raw.AckFunc()
}

func TestOutboundPublisher_RoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	nc, js := connectTestNATS(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		t.Fatalf("ensure outbound stream: %v", err)
	}
	purgeStream(t, js, "DRAW_LEDGER_EVENTS")

	// Core subscription on the exact outbound subject; JetStream publishes
	// are plain NATS publishes underneath.
	coreSub, err := nc.SubscribeSync("draw.ledger.events.bet_placed")
	if err != nil {
		t.Fatalf("core subscribe: %v", err)
	}
	defer coreSub.Unsubscribe()

	outputChan := make(chan engine.Output, 4)
	publisher := ingestion.NewOutboundPublisher(js, outputChan)

	done := make(chan struct{})
	go func() {
		defer close(done)
		publisher.Run(ctx)
	}()

	betPayload, err := json.Marshal(map[string]interface{}{
		"bet_id": uuid.New().String(),
		"amount": 1_000_000,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	outputChan <- engine.Output{
		Sequence: 7,
		Envelope: &event.Envelope{
			Sequence:       7,
			IdempotencyKey: "cmd:place-bet:7",
			EventType:      event.EventTypeBetPlaced,
			Timestamp:      1_700_000_000_000,
			Payload:        betPayload,
		},
	}
	// A row-only output must not reach the wire.
	outputChan <- engine.Output{Sequence: 8}

	msg, err := coreSub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}

	var published ingestion.PublishableEvent
	if err := json.Unmarshal(msg.Data, &published); err != nil {
		t.Fatalf("unmarshal published event: %v", err)
	}
	if published.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", published.Sequence)
	}
	if published.EventType != "BetPlaced" {
		t.Errorf("event type = %q, want BetPlaced", published.EventType)
	}
	if published.IdempotencyKey != "cmd:place-bet:7" {
		t.Errorf("idempotency key = %q", published.IdempotencyKey)
	}
	if published.Timestamp != 1_700_000_000_000 {
		t.Errorf("timestamp = %d, want 1700000000000", published.Timestamp)
	}
	if !bytes.Equal(published.Payload, betPayload) {
		t.Errorf("payload = %s, want %s", published.Payload, betPayload)
	}

	// Nothing else should arrive: sequence 8 carried no envelope.
	if _, err := coreSub.NextMsg(300 * time.Millisecond); !errors.Is(err, nats.ErrTimeout) {
		t.Errorf("expected timeout waiting for second message, got %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop on context cancel")
	}
}

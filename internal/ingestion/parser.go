package ingestion

import (
	"encoding/json"
	"fmt"

	"DrawLedger/internal/command"
	"DrawLedger/internal/draw"

	"github.com/google/uuid"
)

// ParseRawMessage converts a RawMessage (JSON bytes + command type string)
// into a typed command. The ingestion shell validates and parses before
// anything reaches the engine loop.
func ParseRawMessage(raw RawMessage, commandType string) (command.Command, error) {
	switch commandType {
	case "PlaceBet":
		return parsePlaceBet(raw.Data)
	case "PlaceBetBatch":
		return parsePlaceBetBatch(raw.Data)
	case "RandomnessFulfilled":
		return parseRandomnessFulfilled(raw.Data)
	case "CreateDraw":
		return parseCreateDraw(raw.Data)
	case "OpenDraw":
		return parseOpenDraw(raw.Data)
	case "CloseDraw":
		return parseCloseDraw(raw.Data)
	case "CancelDraw":
		return parseCancelDraw(raw.Data)
	case "CancelStaleDraw":
		return parseCancelStaleDraw(raw.Data)
	case "ResolveDrawBatch":
		return parseResolveDrawBatch(raw.Data)
	case "RetryUnpaidBet":
		return parseRetryUnpaidBet(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Bet types travel
// as "two_digit" / "three_digit" / "four_digit".

func parseWireBetType(s string) (draw.BetType, error) {
	switch s {
	case "two_digit":
		return draw.BetTypeTwoDigit, nil
	case "three_digit":
		return draw.BetTypeThreeDigit, nil
	case "four_digit":
		return draw.BetTypeFourDigit, nil
	default:
		return draw.BetTypeUnknown, fmt.Errorf("unknown bet type: %q", s)
	}
}

type betEntryJSON struct {
	BetID   string `json:"bet_id"`
	BetType string `json:"bet_type"`
	Number  int64  `json:"number"`
	Amount  int64  `json:"amount"`
}

func parseBetEntry(j betEntryJSON) (command.BetEntry, error) {
	var entry command.BetEntry

	if j.BetID != "" {
		betID, err := uuid.Parse(j.BetID)
		if err != nil {
			return entry, fmt.Errorf("parse bet_id: %w", err)
		}
		entry.BetID = betID
	}

	betType, err := parseWireBetType(j.BetType)
	if err != nil {
		return entry, err
	}

	entry.Type = betType
	entry.Number = j.Number
	entry.Amount = j.Amount
	return entry, nil
}

type placeBetJSON struct {
	CommandID   string       `json:"command_id"`
	UserID      string       `json:"user_id"`
	DrawID      string       `json:"draw_id"`
	Bet         betEntryJSON `json:"bet"`
	TimestampMs int64        `json:"timestamp_ms"`
}

func parsePlaceBet(data []byte) (*command.PlaceBet, error) {
	var j placeBetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PlaceBet: %w", err)
	}

	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	drawID, err := uuid.Parse(j.DrawID)
	if err != nil {
		return nil, fmt.Errorf("parse draw_id: %w", err)
	}
	entry, err := parseBetEntry(j.Bet)
	if err != nil {
		return nil, err
	}

	return &command.PlaceBet{
		CommandID: commandID,
		UserID:    userID,
		DrawID:    drawID,
		Bet:       entry,
		At:        j.TimestampMs,
	}, nil
}

type placeBetBatchJSON struct {
	CommandID   string         `json:"command_id"`
	UserID      string         `json:"user_id"`
	DrawID      string         `json:"draw_id"`
	Bets        []betEntryJSON `json:"bets"`
	TimestampMs int64          `json:"timestamp_ms"`
}

func parsePlaceBetBatch(data []byte) (*command.PlaceBetBatch, error) {
	var j placeBetBatchJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PlaceBetBatch: %w", err)
	}

	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	drawID, err := uuid.Parse(j.DrawID)
	if err != nil {
		return nil, fmt.Errorf("parse draw_id: %w", err)
	}

	entries := make([]command.BetEntry, 0, len(j.Bets))
	for i, b := range j.Bets {
		entry, err := parseBetEntry(b)
		if err != nil {
			return nil, fmt.Errorf("bet %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	return &command.PlaceBetBatch{
		CommandID: commandID,
		UserID:    userID,
		DrawID:    drawID,
		Bets:      entries,
		At:        j.TimestampMs,
	}, nil
}

type randomnessFulfilledJSON struct {
	RequestID    string   `json:"request_id"`
	RandomValues []uint64 `json:"random_values"`
	TimestampMs  int64    `json:"timestamp_ms"`
}

func parseRandomnessFulfilled(data []byte) (*command.RandomnessFulfilled, error) {
	var j randomnessFulfilledJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RandomnessFulfilled: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &command.RandomnessFulfilled{
		RequestID:    requestID,
		RandomValues: j.RandomValues,
		At:           j.TimestampMs,
	}, nil
}

type createDrawJSON struct {
	CommandID     string `json:"command_id"`
	DrawID        string `json:"draw_id"`
	Label         string `json:"label"`
	ScheduledAtMs int64  `json:"scheduled_at_ms"`
	TimestampMs   int64  `json:"timestamp_ms"`
}

func parseCreateDraw(data []byte) (*command.CreateDraw, error) {
	var j createDrawJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CreateDraw: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	drawID, err := uuid.Parse(j.DrawID)
	if err != nil {
		return nil, fmt.Errorf("parse draw_id: %w", err)
	}
	return &command.CreateDraw{
		CommandID:   commandID,
		DrawID:      drawID,
		Label:       j.Label,
		ScheduledAt: j.ScheduledAtMs,
		At:          j.TimestampMs,
	}, nil
}

type drawLifecycleJSON struct {
	CommandID   string `json:"command_id"`
	DrawID      string `json:"draw_id"`
	RequestID   string `json:"request_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
}

func parseLifecycleIDs(j drawLifecycleJSON) (uuid.UUID, uuid.UUID, error) {
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse command_id: %w", err)
	}
	drawID, err := uuid.Parse(j.DrawID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse draw_id: %w", err)
	}
	return commandID, drawID, nil
}

func parseOpenDraw(data []byte) (*command.OpenDraw, error) {
	var j drawLifecycleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OpenDraw: %w", err)
	}
	commandID, drawID, err := parseLifecycleIDs(j)
	if err != nil {
		return nil, err
	}
	return &command.OpenDraw{CommandID: commandID, DrawID: drawID, At: j.TimestampMs}, nil
}

func parseCloseDraw(data []byte) (*command.CloseDraw, error) {
	var j drawLifecycleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CloseDraw: %w", err)
	}
	commandID, drawID, err := parseLifecycleIDs(j)
	if err != nil {
		return nil, err
	}

	requestID := uuid.Nil
	if j.RequestID != "" {
		requestID, err = uuid.Parse(j.RequestID)
		if err != nil {
			return nil, fmt.Errorf("parse request_id: %w", err)
		}
	}

	return &command.CloseDraw{
		CommandID: commandID,
		DrawID:    drawID,
		RequestID: requestID,
		At:        j.TimestampMs,
	}, nil
}

func parseCancelDraw(data []byte) (*command.CancelDraw, error) {
	var j drawLifecycleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CancelDraw: %w", err)
	}
	commandID, drawID, err := parseLifecycleIDs(j)
	if err != nil {
		return nil, err
	}
	return &command.CancelDraw{
		CommandID: commandID,
		DrawID:    drawID,
		Reason:    j.Reason,
		At:        j.TimestampMs,
	}, nil
}

func parseCancelStaleDraw(data []byte) (*command.CancelStaleDraw, error) {
	var j drawLifecycleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CancelStaleDraw: %w", err)
	}
	commandID, drawID, err := parseLifecycleIDs(j)
	if err != nil {
		return nil, err
	}
	return &command.CancelStaleDraw{CommandID: commandID, DrawID: drawID, At: j.TimestampMs}, nil
}

func parseResolveDrawBatch(data []byte) (*command.ResolveDrawBatch, error) {
	var j drawLifecycleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ResolveDrawBatch: %w", err)
	}
	commandID, drawID, err := parseLifecycleIDs(j)
	if err != nil {
		return nil, err
	}
	return &command.ResolveDrawBatch{
		CommandID: commandID,
		DrawID:    drawID,
		PageSize:  j.PageSize,
		At:        j.TimestampMs,
	}, nil
}

type retryUnpaidBetJSON struct {
	CommandID   string `json:"command_id"`
	BetID       string `json:"bet_id"`
	TimestampMs int64  `json:"timestamp_ms"`
}

func parseRetryUnpaidBet(data []byte) (*command.RetryUnpaidBet, error) {
	var j retryUnpaidBetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RetryUnpaidBet: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	betID, err := uuid.Parse(j.BetID)
	if err != nil {
		return nil, fmt.Errorf("parse bet_id: %w", err)
	}
	return &command.RetryUnpaidBet{CommandID: commandID, BetID: betID, At: j.TimestampMs}, nil
}

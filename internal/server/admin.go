package server

import (
	"net/http"

	"DrawLedger/internal/command"
)

// Admin and lifecycle handlers. Bodies carry optional command_id and
// timestamp_ms: the server mints a fresh UUID and stamps the wall clock
// when they are absent. Callers that need idempotent retries supply their
// own command_id.

type commandEnvelopeJSON struct {
	CommandID   string `json:"command_id"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// --- draw lifecycle ---

func (s *Server) handleCreateDraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		DrawID        string `json:"draw_id"`
		Label         string `json:"label"`
		ScheduledAtMs int64  `json:"scheduled_at_ms"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}
	drawID, ok := parseOptionalUUID(w, body.DrawID, "draw_id")
	if !ok {
		return
	}

	cmd := &command.CreateDraw{
		CommandID:   commandID,
		DrawID:      drawID,
		Label:       body.Label,
		ScheduledAt: body.ScheduledAtMs,
		At:          stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleOpenDraw(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.OpenDraw{
		CommandID: commandID,
		DrawID:    drawID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleCloseDraw(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		commandEnvelopeJSON
		RequestID string `json:"request_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.CloseDraw{
		CommandID: commandID,
		DrawID:    drawID,
		At:        stampTimestamp(body.TimestampMs),
	}
	if body.RequestID != "" {
		requestID, ok := parseOptionalUUID(w, body.RequestID, "request_id")
		if !ok {
			return
		}
		cmd.RequestID = requestID
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleCancelDraw(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		commandEnvelopeJSON
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.CancelDraw{
		CommandID: commandID,
		DrawID:    drawID,
		Reason:    body.Reason,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleCancelStaleDraw(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.CancelStaleDraw{
		CommandID: commandID,
		DrawID:    drawID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleResolveDrawBatch(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		commandEnvelopeJSON
		PageSize int `json:"page_size"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.ResolveDrawBatch{
		CommandID: commandID,
		DrawID:    drawID,
		PageSize:  body.PageSize,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleRetryUnpaidBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.RetryUnpaidBet{
		CommandID: commandID,
		BetID:     betID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

// --- pool and fee administration ---

func (s *Server) handleFundPool(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		Amount int64 `json:"amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.FundPool{
		CommandID: commandID,
		Amount:    body.Amount,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		Amount int64 `json:"amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.WithdrawFees{
		CommandID: commandID,
		Amount:    body.Amount,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleSetFeeBps(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		FeeBps int64 `json:"fee_bps"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.SetFeeBps{
		CommandID: commandID,
		FeeBps:    body.FeeBps,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleSetBetLimits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		MinAmount int64 `json:"min_amount"`
		MaxAmount int64 `json:"max_amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.SetBetLimits{
		CommandID: commandID,
		MinAmount: body.MinAmount,
		MaxAmount: body.MaxAmount,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleSetExposureCeiling(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		Ceiling int64 `json:"ceiling"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.SetExposureCeiling{
		CommandID: commandID,
		Ceiling:   body.Ceiling,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleStageMultiplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		BetType    string `json:"bet_type"`
		Multiplier int64  `json:"multiplier"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	betType, ok := parseBetTypeParam(w, body.BetType)
	if !ok {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.StageMultiplier{
		CommandID:  commandID,
		Type:       betType,
		Multiplier: body.Multiplier,
		At:         stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleCommitMultipliers(w http.ResponseWriter, r *http.Request) {
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.CommitMultipliers{
		CommandID: commandID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleSetVrfConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		commandEnvelopeJSON
		StaleAfterMs int64  `json:"stale_after_ms"`
		KeyHash      string `json:"key_hash"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.SetVrfConfig{
		CommandID:        commandID,
		StaleAfterMillis: body.StaleAfterMs,
		KeyHash:          body.KeyHash,
		At:               stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.Pause{
		CommandID: commandID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var body commandEnvelopeJSON
	if !decodeBody(w, r, &body) {
		return
	}
	commandID, ok := parseOptionalUUID(w, body.CommandID, "command_id")
	if !ok {
		return
	}

	cmd := &command.Unpause{
		CommandID: commandID,
		At:        stampTimestamp(body.TimestampMs),
	}
	s.respondCommand(w, cmd, s.submit(r.Context(), cmd))
}

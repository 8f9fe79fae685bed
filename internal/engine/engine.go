// internal/engine/engine.go
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"DrawLedger/internal/command"
	"DrawLedger/internal/draw"
	"DrawLedger/internal/event"
	"DrawLedger/internal/fixedpoint"
	"DrawLedger/internal/observability"
	"DrawLedger/internal/payout"
	"DrawLedger/internal/pool"
	"DrawLedger/internal/vrf"

	"github.com/google/uuid"
)

const (
	// MaxFeeBps bounds the placement fee at 20%.
	MaxFeeBps int64 = 2_000

	// DefaultInlineResolveLimit is the bet count under which fulfillment
	// resolves the whole draw inline.
	DefaultInlineResolveLimit = 500
)

// Config holds the operator-adjustable engine parameters.
type Config struct {
	FeeBps             int64
	MinBetAmount       int64 // Fixed-point: amount scale
	MaxBetAmount       int64
	ExposureCeiling    int64 // Per-number cumulative wager ceiling, 0 = unlimited
	InlineResolveLimit int
	Vrf                vrf.Config
}

func DefaultConfig() Config {
	return Config{
		FeeBps:             500, // 5%
		MinBetAmount:       10_000,
		MaxBetAmount:       1_000_000_000,
		ExposureCeiling:    0,
		InlineResolveLimit: DefaultInlineResolveLimit,
		Vrf:                vrf.DefaultConfig(),
	}
}

// Engine is the single-threaded command processor. Each command is one
// atomic transaction: it either fully applies or leaves no trace. The
// engine never reads the wall clock — all timestamps are versioned inputs
// carried on commands.
type Engine struct {
	sequence int64
	cfg      Config
	paused   bool

	pool    *pool.Ledger
	table   *payout.Table
	pending *vrf.PendingTable
	draws   map[uuid.UUID]*draw.Draw
	bets    map[uuid.UUID]*draw.Bet

	idempotency *IdempotencyChecker
	metrics     *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
}

// changeSet collects what a command mutated so Output snapshots can be
// built once per command.
type changeSet struct {
	draw        *draw.Draw
	bets        []*draw.Bet
	pool        bool
	multipliers bool
	settings    bool
	vrfRequest  *vrf.Request
}

func (cs *changeSet) empty() bool {
	return cs == nil ||
		(cs.draw == nil && len(cs.bets) == 0 && !cs.pool && !cs.multipliers &&
			!cs.settings && cs.vrfRequest == nil)
}

func NewEngine(
	startSequence int64,
	cfg Config,
	persistChan, publishChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		sequence:    startSequence,
		cfg:         cfg,
		pool:        pool.NewLedger(),
		table:       payout.NewTable(),
		pending:     vrf.NewPendingTable(),
		draws:       make(map[uuid.UUID]*draw.Draw),
		bets:        make(map[uuid.UUID]*draw.Bet),
		idempotency: NewIdempotencyChecker(1_000_000, dbChecker),
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// Request couples a command with an optional synchronous error reply, so
// the HTTP layer can surface rejections to callers.
type Request struct {
	Cmd   command.Command
	Reply chan error
}

// Run drives the engine from a request channel until the context ends.
func (e *Engine) Run(ctx context.Context, requests <-chan Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			err := e.Process(req.Cmd)
			if req.Reply != nil {
				req.Reply <- err
			}
		}
	}
}

// Process is the main processing pipeline.
func (e *Engine) Process(cmd command.Command) error {
	start := time.Now()
	cmdType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	if e.idempotency.IsDuplicate(cmdType, idempotencyKey) {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(cmdType, "duplicate").Inc()
		}
		// Duplicate oracle deliveries get the named rejection so relayers
		// can tell replay from success; everything else dedups silently.
		if cmd.CommandType() == command.CommandTypeRandomnessFulfilled {
			return fmt.Errorf("duplicate fulfillment: %w", vrf.ErrAlreadyFulfilled)
		}
		return nil
	}

	// Step 2: Dispatch — validate and apply
	events, changes, err := e.dispatch(cmd)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(cmdType, "validation").Inc()
		}
		return fmt.Errorf("%s rejected: %w", cmdType, err)
	}

	// Step 3: Post-check the pool invariant
	if err := e.pool.ValidateSolvent(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", cmdType, err))
	}

	// Step 4: Build outputs — one envelope per event, sequence per event
	outputs := make([]Output, 0, len(events))
	for _, ev := range events {
		payload, merr := json.Marshal(ev)
		if merr != nil {
			panic(fmt.Sprintf("FATAL: marshal %s: %v", ev.EventType(), merr))
		}

		outputs = append(outputs, Output{
			Sequence: e.sequence,
			Envelope: &event.Envelope{
				Sequence:       e.sequence,
				IdempotencyKey: idempotencyKey,
				EventType:      ev.EventType(),
				Timestamp:      cmd.Timestamp(),
				Payload:        payload,
			},
			Event: ev,
		})
		e.sequence++
	}

	// Attach changed rows to the first output; commands that mutate state
	// without emitting events (paged fulfillment parking) get a row-only
	// output so the projection still advances.
	if !changes.empty() {
		if len(outputs) == 0 {
			outputs = append(outputs, Output{Sequence: e.sequence})
			e.sequence++
		}
		e.attachChanges(&outputs[0], changes)
	}

	// Step 5: Emit. Persist channel uses a BLOCKING send (backpressure, no
	// output ever lost); publish channel is non-blocking with drop-on-full.
	for i := range outputs {
		e.persistChan <- outputs[i]

		select {
		case e.publishChan <- outputs[i]:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	// Step 6: Mark as processed
	e.idempotency.MarkProcessed(cmdType, idempotencyKey)

	if e.metrics != nil {
		e.metrics.CommandsApplied.WithLabelValues(cmdType).Inc()
		e.metrics.CommandDuration.WithLabelValues(cmdType).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		if changes != nil && changes.pool {
			e.metrics.SetPoolMetrics(e.pool.TotalBalance(), e.pool.Available(), e.pool.AccruedFees())
		}
	}

	return nil
}

func (e *Engine) attachChanges(out *Output, ch *changeSet) {
	if ch.draw != nil {
		out.Draw = snapshotDraw(ch.draw)
	}
	for _, b := range ch.bets {
		out.Bets = append(out.Bets, snapshotBet(b))
	}
	if ch.pool {
		s := e.pool.Snapshot()
		out.Pool = &s
	}
	if ch.multipliers {
		out.Multipliers = e.table.Snapshot()
	}
	if ch.settings {
		out.Settings = e.snapshotSettings()
	}
	if ch.vrfRequest != nil {
		r := *ch.vrfRequest
		out.VrfRequest = &r
	}
}

func (e *Engine) snapshotSettings() *SettingsRow {
	return &SettingsRow{
		FeeBps:              e.cfg.FeeBps,
		MinBetAmount:        e.cfg.MinBetAmount,
		MaxBetAmount:        e.cfg.MaxBetAmount,
		ExposureCeiling:     e.cfg.ExposureCeiling,
		VrfStaleAfterMillis: e.cfg.Vrf.StaleAfterMillis,
		VrfKeyHash:          e.cfg.Vrf.KeyHash,
		Paused:              e.paused,
		Version:             e.sequence,
	}
}

func (e *Engine) dispatch(cmd command.Command) ([]event.Event, *changeSet, error) {
	switch c := cmd.(type) {
	case *command.CreateDraw:
		return e.handleCreateDraw(c)
	case *command.OpenDraw:
		return e.handleOpenDraw(c)
	case *command.CloseDraw:
		return e.handleCloseDraw(c)
	case *command.CancelDraw:
		return e.handleCancelDraw(c)
	case *command.CancelStaleDraw:
		return e.handleCancelStaleDraw(c)
	case *command.FundPool:
		return e.handleFundPool(c)
	case *command.WithdrawFees:
		return e.handleWithdrawFees(c)
	case *command.SetFeeBps:
		return e.handleSetFeeBps(c)
	case *command.SetBetLimits:
		return e.handleSetBetLimits(c)
	case *command.SetExposureCeiling:
		return e.handleSetExposureCeiling(c)
	case *command.StageMultiplier:
		return e.handleStageMultiplier(c)
	case *command.CommitMultipliers:
		return e.handleCommitMultipliers(c)
	case *command.SetVrfConfig:
		return e.handleSetVrfConfig(c)
	case *command.Pause:
		return e.handlePause(c)
	case *command.Unpause:
		return e.handleUnpause(c)
	case *command.PlaceBet:
		return e.handlePlaceBet(c)
	case *command.PlaceBetBatch:
		return e.handlePlaceBetBatch(c)
	case *command.ResolveDrawBatch:
		return e.handleResolveDrawBatch(c)
	case *command.RetryUnpaidBet:
		return e.handleRetryUnpaidBet(c)
	case *command.RandomnessFulfilled:
		return e.handleRandomnessFulfilled(c)
	default:
		return nil, nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// === Draw lifecycle =========================================================

func (e *Engine) handleCreateDraw(c *command.CreateDraw) ([]event.Event, *changeSet, error) {
	if _, exists := e.draws[c.DrawID]; exists {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDuplicateDraw)
	}

	d := draw.NewDraw(c.DrawID, c.Label, c.ScheduledAt)
	d.Version = e.sequence
	e.draws[c.DrawID] = d

	ev := &event.DrawCreated{DrawID: d.DrawID, Label: d.Label, ScheduledAt: d.ScheduledAt}
	return []event.Event{ev}, &changeSet{draw: d}, nil
}

func (e *Engine) handleOpenDraw(c *command.OpenDraw) ([]event.Event, *changeSet, error) {
	d, ok := e.draws[c.DrawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDrawNotFound)
	}
	if err := d.TransitionTo(draw.DrawStatusOpen); err != nil {
		return nil, nil, fmt.Errorf("open draw %s from %s: %w", c.DrawID, d.Status, err)
	}
	d.OpenedAt = c.At
	d.Version = e.sequence

	return []event.Event{&event.DrawOpened{DrawID: d.DrawID}}, &changeSet{draw: d}, nil
}

func (e *Engine) handleCloseDraw(c *command.CloseDraw) ([]event.Event, *changeSet, error) {
	d, ok := e.draws[c.DrawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDrawNotFound)
	}
	if d.Status != draw.DrawStatusOpen {
		return nil, nil, fmt.Errorf("close draw %s in %s: %w", c.DrawID, d.Status, ErrDrawNotOpen)
	}

	// Close and request randomness in the same atomic command.
	if err := d.TransitionTo(draw.DrawStatusClosed); err != nil {
		return nil, nil, err
	}
	d.ClosedAt = c.At
	if err := d.TransitionTo(draw.DrawStatusVrfPending); err != nil {
		panic(fmt.Sprintf("FATAL: closed draw cannot enter vrf-pending: %v", err))
	}

	requestID := c.RequestID
	if requestID == uuid.Nil {
		requestID = uuid.New()
	}
	req := e.pending.Issue(requestID, d.DrawID, c.At)
	d.VrfRequestID = requestID
	d.VrfRequestedAt = c.At
	d.Version = e.sequence

	events := []event.Event{
		&event.DrawClosed{DrawID: d.DrawID, TotalBets: d.TotalBets, TotalAmount: d.TotalAmount},
		&event.VrfRequested{DrawID: d.DrawID, RequestID: requestID},
	}
	return events, &changeSet{draw: d, vrfRequest: req}, nil
}

func (e *Engine) handleCancelDraw(c *command.CancelDraw) ([]event.Event, *changeSet, error) {
	d, ok := e.draws[c.DrawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDrawNotFound)
	}
	reason := c.Reason
	if reason == "" {
		reason = "operator cancellation"
	}
	return e.cancelDraw(d, reason, c.At, "operator")
}

func (e *Engine) handleCancelStaleDraw(c *command.CancelStaleDraw) ([]event.Event, *changeSet, error) {
	d, ok := e.draws[c.DrawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDrawNotFound)
	}
	if d.Status != draw.DrawStatusVrfPending {
		return nil, nil, fmt.Errorf("draw %s in %s: %w", c.DrawID, d.Status, ErrVrfNotTimedOut)
	}

	stale, err := e.pending.IsStale(d.VrfRequestID, c.At, e.cfg.Vrf.StaleAfterMillis)
	if err != nil {
		return nil, nil, fmt.Errorf("stale check for draw %s: %w", c.DrawID, err)
	}
	if !stale {
		return nil, nil, fmt.Errorf("draw %s requested at %d, now %d: %w",
			c.DrawID, d.VrfRequestedAt, c.At, ErrVrfNotTimedOut)
	}

	return e.cancelDraw(d, "vrf timeout", c.At, "stale")
}

// cancelDraw refunds every bet its exact original wager and unwinds the fee
// accrual, then parks the draw in Cancelled.
func (e *Engine) cancelDraw(d *draw.Draw, reason string, at int64, path string) ([]event.Event, *changeSet, error) {
	if !d.Status.CanTransitionTo(draw.DrawStatusCancelled) {
		return nil, nil, fmt.Errorf("cancel draw %s in %s: %w", d.DrawID, d.Status, draw.ErrInvalidTransition)
	}

	var refundedTotal, reversedFees int64
	for _, b := range d.Bets {
		e.pool.RefundWager(b.Amount, b.Fee)
		refundedTotal += b.Amount
		reversedFees += b.Fee
		b.Version = e.sequence
	}

	if d.VrfRequestID != uuid.Nil {
		e.pending.Abandon(d.VrfRequestID)
	}

	if err := d.TransitionTo(draw.DrawStatusCancelled); err != nil {
		panic(fmt.Sprintf("FATAL: guarded cancel transition failed: %v", err))
	}
	d.CancelledAt = at
	d.Version = e.sequence

	if e.metrics != nil {
		e.metrics.DrawsCancelled.WithLabelValues(path).Inc()
	}

	ev := &event.DrawCancelled{
		DrawID:        d.DrawID,
		Reason:        reason,
		RefundedBets:  d.TotalBets,
		RefundedTotal: refundedTotal,
		ReversedFees:  reversedFees,
	}
	return []event.Event{ev}, &changeSet{draw: d, bets: d.Bets, pool: len(d.Bets) > 0}, nil
}

// === Pool and fees ==========================================================

func (e *Engine) handleFundPool(c *command.FundPool) ([]event.Event, *changeSet, error) {
	if c.Amount <= 0 {
		return nil, nil, fmt.Errorf("fund amount %d: %w", c.Amount, ErrInvalidAmount)
	}
	e.pool.Fund(c.Amount)

	ev := &event.PoolFunded{Amount: c.Amount, TotalBalance: e.pool.TotalBalance()}
	return []event.Event{ev}, &changeSet{pool: true}, nil
}

func (e *Engine) handleWithdrawFees(c *command.WithdrawFees) ([]event.Event, *changeSet, error) {
	if c.Amount <= 0 {
		return nil, nil, fmt.Errorf("withdrawal amount %d: %w", c.Amount, ErrInvalidAmount)
	}
	if err := e.pool.WithdrawFees(c.Amount); err != nil {
		return nil, nil, err
	}

	ev := &event.FeesWithdrawn{Amount: c.Amount, AccruedFees: e.pool.AccruedFees()}
	return []event.Event{ev}, &changeSet{pool: true}, nil
}

// === Admin configuration ====================================================

func (e *Engine) handleSetFeeBps(c *command.SetFeeBps) ([]event.Event, *changeSet, error) {
	if c.FeeBps < 0 || c.FeeBps > MaxFeeBps {
		return nil, nil, fmt.Errorf("fee bps %d out of range [0, %d]", c.FeeBps, MaxFeeBps)
	}
	e.cfg.FeeBps = c.FeeBps
	return nil, &changeSet{settings: true}, nil
}

func (e *Engine) handleSetBetLimits(c *command.SetBetLimits) ([]event.Event, *changeSet, error) {
	if c.MinAmount <= 0 || c.MaxAmount < c.MinAmount {
		return nil, nil, fmt.Errorf("bet limits [%d, %d]: %w", c.MinAmount, c.MaxAmount, ErrInvalidAmount)
	}
	e.cfg.MinBetAmount = c.MinAmount
	e.cfg.MaxBetAmount = c.MaxAmount
	return nil, &changeSet{settings: true}, nil
}

func (e *Engine) handleSetExposureCeiling(c *command.SetExposureCeiling) ([]event.Event, *changeSet, error) {
	if c.Ceiling < 0 {
		return nil, nil, fmt.Errorf("exposure ceiling %d: %w", c.Ceiling, ErrInvalidAmount)
	}
	e.cfg.ExposureCeiling = c.Ceiling
	return nil, &changeSet{settings: true}, nil
}

func (e *Engine) handleStageMultiplier(c *command.StageMultiplier) ([]event.Event, *changeSet, error) {
	if err := e.table.Stage(payout.Multiplier{Type: c.Type, Multiplier: c.Multiplier}); err != nil {
		return nil, nil, err
	}
	// Staged rows are not live; nothing to persist until commit.
	return nil, nil, nil
}

func (e *Engine) handleCommitMultipliers(c *command.CommitMultipliers) ([]event.Event, *changeSet, error) {
	if err := e.table.Commit(); err != nil {
		return nil, nil, err
	}
	return nil, &changeSet{multipliers: true}, nil
}

func (e *Engine) handleSetVrfConfig(c *command.SetVrfConfig) ([]event.Event, *changeSet, error) {
	if c.StaleAfterMillis <= 0 {
		return nil, nil, fmt.Errorf("stale-after %dms must be positive", c.StaleAfterMillis)
	}
	e.cfg.Vrf = vrf.Config{StaleAfterMillis: c.StaleAfterMillis, KeyHash: c.KeyHash}
	return nil, &changeSet{settings: true}, nil
}

func (e *Engine) handlePause(c *command.Pause) ([]event.Event, *changeSet, error) {
	if e.paused {
		return nil, nil, nil
	}
	e.paused = true
	return []event.Event{&event.IntakePaused{}}, &changeSet{settings: true}, nil
}

func (e *Engine) handleUnpause(c *command.Unpause) ([]event.Event, *changeSet, error) {
	if !e.paused {
		return nil, nil, nil
	}
	e.paused = false
	return []event.Event{&event.IntakeResumed{}}, &changeSet{settings: true}, nil
}

// === Bet placement ==========================================================

func (e *Engine) handlePlaceBet(c *command.PlaceBet) ([]event.Event, *changeSet, error) {
	return e.placeBets(c.UserID, c.DrawID, []command.BetEntry{c.Bet}, c.At)
}

func (e *Engine) handlePlaceBetBatch(c *command.PlaceBetBatch) ([]event.Event, *changeSet, error) {
	if len(c.Bets) == 0 {
		return nil, nil, ErrBatchEmpty
	}
	return e.placeBets(c.UserID, c.DrawID, c.Bets, c.At)
}

// placeBets validates every entry before touching any state, so a batch is
// all-or-nothing: first failure aborts with nothing applied.
func (e *Engine) placeBets(userID, drawID uuid.UUID, entries []command.BetEntry, at int64) ([]event.Event, *changeSet, error) {
	if e.paused {
		return nil, nil, ErrEnforcedPause
	}

	d, ok := e.draws[drawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", drawID, ErrDrawNotFound)
	}
	if d.Status != draw.DrawStatusOpen {
		return nil, nil, fmt.Errorf("draw %s in %s: %w", drawID, d.Status, ErrDrawNotOpen)
	}

	// Validation pass. Entries within the batch accumulate against the
	// exposure ceiling together with what the draw already carries.
	batchExposure := make(map[draw.ExposureKey]int64)
	for i := range entries {
		en := &entries[i]

		if en.BetID != uuid.Nil {
			if _, exists := e.bets[en.BetID]; exists {
				return nil, nil, fmt.Errorf("bet %s: %w", en.BetID, ErrDuplicateBet)
			}
		}
		if !en.Type.Valid() || en.Number < 0 || en.Number >= en.Type.Modulus() {
			return nil, nil, fmt.Errorf("number %d for type %s: %w", en.Number, en.Type, ErrInvalidNumber)
		}
		if en.Amount < e.cfg.MinBetAmount || en.Amount > e.cfg.MaxBetAmount {
			return nil, nil, fmt.Errorf("amount %d outside [%d, %d]: %w",
				en.Amount, e.cfg.MinBetAmount, e.cfg.MaxBetAmount, ErrInvalidAmount)
		}

		key := draw.ExposureKey{Type: en.Type, Number: en.Number}
		if err := d.CheckExposure(en.Type, en.Number, en.Amount+batchExposure[key], e.cfg.ExposureCeiling); err != nil {
			return nil, nil, fmt.Errorf("number %d for type %s: %w", en.Number, en.Type, err)
		}
		batchExposure[key] += en.Amount
	}

	// Apply pass.
	events := make([]event.Event, 0, len(entries)*2)
	placed := make([]*draw.Bet, 0, len(entries))
	for _, en := range entries {
		betID := en.BetID
		if betID == uuid.Nil {
			betID = uuid.New()
		}

		fee := fixedpoint.ComputeFee(en.Amount, e.cfg.FeeBps)
		e.pool.AcceptWager(en.Amount, fee)

		b := &draw.Bet{
			BetID:    betID,
			UserID:   userID,
			DrawID:   drawID,
			Type:     en.Type,
			Number:   en.Number,
			Amount:   en.Amount,
			Fee:      fee,
			Status:   draw.BetStatusPending,
			PlacedAt: at,
			Version:  e.sequence,
		}
		d.AddBet(b)
		e.bets[betID] = b
		placed = append(placed, b)

		events = append(events, &event.BetPlaced{
			BetID:   betID,
			UserID:  userID,
			DrawID:  drawID,
			BetType: b.Type.String(),
			Number:  b.Number,
			Amount:  b.Amount,
			Fee:     fee,
		})
		if fee > 0 {
			events = append(events, &event.FeesAccrued{Amount: fee, AccruedFees: e.pool.AccruedFees()})
		}
		if e.metrics != nil {
			e.metrics.BetsPlaced.Inc()
		}
	}
	d.Version = e.sequence

	return events, &changeSet{draw: d, bets: placed, pool: true}, nil
}

// === Fulfillment and resolution =============================================

func (e *Engine) handleRandomnessFulfilled(c *command.RandomnessFulfilled) ([]event.Event, *changeSet, error) {
	if len(c.RandomValues) == 0 {
		return nil, nil, fmt.Errorf("fulfillment for %s carries no random values", c.RequestID)
	}

	drawID, err := e.pending.Fulfill(c.RequestID, c.At)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s: %w", c.RequestID, err)
	}

	d, ok := e.draws[drawID]
	if !ok {
		panic(fmt.Sprintf("FATAL: pending request %s maps to unknown draw %s", c.RequestID, drawID))
	}
	if err := d.TransitionTo(draw.DrawStatusVrfFulfilled); err != nil {
		panic(fmt.Sprintf("FATAL: fulfillment for draw %s in %s: %v", drawID, d.Status, err))
	}

	d.SetRandomness(c.RandomValues)
	d.Version = e.sequence

	req, _ := e.pending.Get(c.RequestID)
	changes := &changeSet{draw: d, vrfRequest: req}

	// Small draws resolve inline; large ones park at VrfFulfilled for
	// paginated resolution.
	var events []event.Event
	if d.TotalBets <= int64(e.cfg.InlineResolveLimit) {
		var touched []*draw.Bet
		events, touched = e.resolvePage(d, len(d.Bets), c.At)
		changes.bets = touched
		changes.pool = len(touched) > 0
	}

	return events, changes, nil
}

func (e *Engine) handleResolveDrawBatch(c *command.ResolveDrawBatch) ([]event.Event, *changeSet, error) {
	d, ok := e.draws[c.DrawID]
	if !ok {
		return nil, nil, fmt.Errorf("draw %s: %w", c.DrawID, ErrDrawNotFound)
	}
	if d.Status != draw.DrawStatusVrfFulfilled {
		return nil, nil, fmt.Errorf("draw %s in %s: %w", c.DrawID, d.Status, ErrDrawNotVrfFulfilled)
	}

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = e.cfg.InlineResolveLimit
	}

	events, touched := e.resolvePage(d, pageSize, c.At)
	return events, &changeSet{draw: d, bets: touched, pool: len(touched) > 0}, nil
}

// resolvePage walks up to pageSize bets from the resolution cursor,
// executing payouts against the pool, and completes the draw once the
// cursor reaches the end of the registry.
func (e *Engine) resolvePage(d *draw.Draw, pageSize int, at int64) ([]event.Event, []*draw.Bet) {
	end := d.ResolutionCursor + pageSize
	if end > len(d.Bets) {
		end = len(d.Bets)
	}

	events := make([]event.Event, 0, end-d.ResolutionCursor+1)
	touched := make([]*draw.Bet, 0, end-d.ResolutionCursor)

	for i := d.ResolutionCursor; i < end; i++ {
		b := d.Bets[i]

		outcome, err := payout.Resolve(b, d, e.table)
		if err != nil {
			panic(fmt.Sprintf("FATAL: resolve bet %s: %v", b.BetID, err))
		}

		b.Resolved = true
		b.Won = outcome.Won
		b.Version = e.sequence
		touched = append(touched, b)

		if !outcome.Won {
			events = append(events, &event.BetResolved{BetID: b.BetID, DrawID: d.DrawID})
			if e.metrics != nil {
				e.metrics.BetsResolved.WithLabelValues("lost").Inc()
			}
			continue
		}

		b.Payout = outcome.Payout
		payErr := e.pool.Pay(outcome.Payout)
		switch {
		case payErr == nil:
			b.Status = draw.BetStatusPaid
			d.PaidOut += outcome.Payout
			events = append(events, &event.BetResolved{
				BetID: b.BetID, DrawID: d.DrawID, Won: true, Payout: outcome.Payout, Paid: true,
			})
			if e.metrics != nil {
				e.metrics.PayoutsPaid.Inc()
			}
		case errors.Is(payErr, pool.ErrInsufficientPool):
			// Winner the pool cannot cover: parked as Unpaid with the
			// computed payout retained for retry, plus the distinct
			// shortfall event for off-chain alerting.
			b.Status = draw.BetStatusUnpaid
			events = append(events,
				&event.BetResolved{BetID: b.BetID, DrawID: d.DrawID, Won: true, Payout: outcome.Payout},
				&event.BetUnpaid{
					BetID: b.BetID, DrawID: d.DrawID,
					PayoutNeeded: outcome.Payout, Available: e.pool.Available(),
				},
			)
			if e.metrics != nil {
				e.metrics.PayoutsUnpaid.Inc()
			}
		default:
			panic(fmt.Sprintf("FATAL: payout for bet %s: %v", b.BetID, payErr))
		}
		if e.metrics != nil {
			e.metrics.BetsResolved.WithLabelValues("won").Inc()
		}
	}

	d.ResolutionCursor = end
	d.Version = e.sequence

	if end == len(d.Bets) {
		if err := d.TransitionTo(draw.DrawStatusCompleted); err != nil {
			panic(fmt.Sprintf("FATAL: complete draw %s: %v", d.DrawID, err))
		}
		d.CompletedAt = at

		two, _ := d.WinningNumber(draw.BetTypeTwoDigit)
		three, _ := d.WinningNumber(draw.BetTypeThreeDigit)
		four, _ := d.WinningNumber(draw.BetTypeFourDigit)
		events = append(events, &event.DrawResolved{
			DrawID:         d.DrawID,
			WinningNumbers: []int64{two, three, four},
			ResolvedBets:   d.TotalBets,
			PaidOut:        d.PaidOut,
		})
		if e.metrics != nil {
			e.metrics.DrawsCompleted.Inc()
		}
	}

	return events, touched
}

func (e *Engine) handleRetryUnpaidBet(c *command.RetryUnpaidBet) ([]event.Event, *changeSet, error) {
	b, ok := e.bets[c.BetID]
	if !ok {
		return nil, nil, fmt.Errorf("bet %s: %w", c.BetID, ErrBetNotFound)
	}
	if b.Status != draw.BetStatusUnpaid {
		return nil, nil, fmt.Errorf("bet %s in %s: %w", c.BetID, b.Status, ErrBetNotUnpaid)
	}

	if err := e.pool.Pay(b.Payout); err != nil {
		return nil, nil, fmt.Errorf("retry bet %s: %w", c.BetID, err)
	}

	b.Status = draw.BetStatusPaid
	b.Version = e.sequence

	d := e.draws[b.DrawID]
	d.PaidOut += b.Payout
	d.Version = e.sequence

	if e.metrics != nil {
		e.metrics.PayoutsPaid.Inc()
	}

	ev := &event.BetPaid{BetID: b.BetID, DrawID: b.DrawID, Payout: b.Payout}
	return []event.Event{ev}, &changeSet{draw: d, bets: []*draw.Bet{b}, pool: true}, nil
}

// === Read accessors (tests and bootstrap) ===================================

// Sequence returns the next sequence the engine will assign.
func (e *Engine) Sequence() int64 {
	return e.sequence
}

// Draw returns the draw with the given ID.
func (e *Engine) Draw(drawID uuid.UUID) (*draw.Draw, bool) {
	d, ok := e.draws[drawID]
	return d, ok
}

// Bet returns the bet with the given ID.
func (e *Engine) Bet(betID uuid.UUID) (*draw.Bet, bool) {
	b, ok := e.bets[betID]
	return b, ok
}

// Pool returns a snapshot of the pool balances.
func (e *Engine) Pool() pool.Snapshot {
	return e.pool.Snapshot()
}

// Config returns the current engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Paused reports whether bet intake is suspended.
func (e *Engine) Paused() bool {
	return e.paused
}

// WarmIdempotency loads recent dedup keys on restart.
func (e *Engine) WarmIdempotency(keys []string) {
	e.idempotency.WarmFromKeys(keys)
}

// RestoredState is the cold-start image loaded from the projection tables.
type RestoredState struct {
	Sequence        int64
	Pool            pool.Snapshot
	Multipliers     map[draw.BetType]int64
	Settings        *SettingsRow // nil on first boot: env-seeded config stands
	Draws           []*draw.Draw // bets attached
	PendingVrf      []*vrf.Request
	IdempotencyKeys []string
}

// Restore installs a loaded state image. Must run before the first command.
func (e *Engine) Restore(st *RestoredState) {
	e.sequence = st.Sequence
	e.pool.Restore(st.Pool)
	if len(st.Multipliers) > 0 {
		e.table.Restore(st.Multipliers)
	}
	if s := st.Settings; s != nil {
		e.cfg.FeeBps = s.FeeBps
		e.cfg.MinBetAmount = s.MinBetAmount
		e.cfg.MaxBetAmount = s.MaxBetAmount
		e.cfg.ExposureCeiling = s.ExposureCeiling
		e.cfg.Vrf = vrf.Config{StaleAfterMillis: s.VrfStaleAfterMillis, KeyHash: s.VrfKeyHash}
		e.paused = s.Paused
	}
	for _, d := range st.Draws {
		e.draws[d.DrawID] = d
		for _, b := range d.Bets {
			e.bets[b.BetID] = b
		}
	}
	for _, r := range st.PendingVrf {
		if !r.Fulfilled {
			e.pending.Issue(r.RequestID, r.DrawID, r.RequestedAt)
		}
	}
	e.idempotency.WarmFromKeys(st.IdempotencyKeys)
}

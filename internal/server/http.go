package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"DrawLedger/internal/command"
	"DrawLedger/internal/draw"
	"DrawLedger/internal/engine"
	"DrawLedger/internal/observability"
	"DrawLedger/internal/pool"
	"DrawLedger/internal/query"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const submitTimeout = 10 * time.Second

// Server exposes the HTTP/JSON surface: operator commands, read-only
// queries against the projections, health probes, and Prometheus metrics.
// Commands go through the same engine request channel as NATS intake, so
// the single-threaded ordering guarantee holds across both paths.
type Server struct {
	httpServer *http.Server
	requests   chan<- engine.Request
	qs         *query.QueryService
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

type Deps struct {
	Requests      chan<- engine.Request
	QueryService  *query.QueryService
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
}

func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		requests: deps.Requests,
		qs:       deps.QueryService,
		health:   deps.HealthChecker,
		metrics:  deps.Metrics,
		logger:   observability.NewLogger("http"),
	}

	mux := http.NewServeMux()

	// Queries
	s.route(mux, "GET /v1/draws", s.handleListDraws)
	s.route(mux, "GET /v1/draws/{id}", s.handleGetDraw)
	s.route(mux, "GET /v1/draws/{id}/bets", s.handleListDrawBets)
	s.route(mux, "GET /v1/draws/{id}/vrf", s.handleGetVrfRequest)
	s.route(mux, "GET /v1/bets/unpaid", s.handleListUnpaidBets)
	s.route(mux, "GET /v1/bets/{id}", s.handleGetBet)
	s.route(mux, "GET /v1/users/{id}/bets", s.handleListUserBets)
	s.route(mux, "GET /v1/pool", s.handleGetPool)
	s.route(mux, "GET /v1/multipliers", s.handleGetMultipliers)

	// Draw lifecycle
	s.route(mux, "POST /v1/draws", s.handleCreateDraw)
	s.route(mux, "POST /v1/draws/{id}/open", s.handleOpenDraw)
	s.route(mux, "POST /v1/draws/{id}/close", s.handleCloseDraw)
	s.route(mux, "POST /v1/draws/{id}/cancel", s.handleCancelDraw)
	s.route(mux, "POST /v1/draws/{id}/cancel_stale", s.handleCancelStaleDraw)
	s.route(mux, "POST /v1/draws/{id}/resolve", s.handleResolveDrawBatch)
	s.route(mux, "POST /v1/bets/{id}/retry", s.handleRetryUnpaidBet)

	// Admin
	s.route(mux, "POST /v1/admin/pool/fund", s.handleFundPool)
	s.route(mux, "POST /v1/admin/pool/withdraw_fees", s.handleWithdrawFees)
	s.route(mux, "POST /v1/admin/fee_bps", s.handleSetFeeBps)
	s.route(mux, "POST /v1/admin/bet_limits", s.handleSetBetLimits)
	s.route(mux, "POST /v1/admin/exposure_ceiling", s.handleSetExposureCeiling)
	s.route(mux, "POST /v1/admin/multipliers/stage", s.handleStageMultiplier)
	s.route(mux, "POST /v1/admin/multipliers/commit", s.handleCommitMultipliers)
	s.route(mux, "POST /v1/admin/vrf_config", s.handleSetVrfConfig)
	s.route(mux, "POST /v1/admin/pause", s.handlePause)
	s.route(mux, "POST /v1/admin/unpause", s.handleUnpause)

	// Operational
	if deps.HealthChecker != nil {
		mux.HandleFunc("GET /healthz", deps.HealthChecker.LivenessHandler)
		mux.HandleFunc("GET /readyz", deps.HealthChecker.ReadinessHandler)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// route registers a handler wrapped with per-endpoint request metrics. The
// pattern string (not the raw path) is the metric label, keeping
// cardinality bounded.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until the context is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// submit routes a command through the engine loop and waits for the reply.
func (s *Server) submit(ctx context.Context, cmd command.Command) error {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	reply := make(chan error, 1)
	select {
	case s.requests <- engine.Request{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- query handlers ---

func (s *Server) handleListDraws(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	var before *int64
	if v := r.URL.Query().Get("before_scheduled_at"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_scheduled_at")
			return
		}
		before = &n
	}

	draws, err := s.qs.ListDraws(r.Context(), r.URL.Query().Get("status"), limit, before)
	if err != nil {
		s.internalError(w, "list draws", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"draws": draws})
}

func (s *Server) handleGetDraw(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	d, err := s.qs.GetDraw(r.Context(), drawID)
	if err != nil {
		s.internalError(w, "get draw", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "draw not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDrawBets(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit := queryLimit(r, 200)
	var after *int
	if v := r.URL.Query().Get("after_position"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_position")
			return
		}
		after = &n
	}

	bets, err := s.qs.ListBetsByDraw(r.Context(), drawID, limit, after)
	if err != nil {
		s.internalError(w, "list draw bets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

func (s *Server) handleGetVrfRequest(w http.ResponseWriter, r *http.Request) {
	drawID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	req, err := s.qs.GetVrfRequest(r.Context(), drawID)
	if err != nil {
		s.internalError(w, "get vrf request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "no randomness request for draw")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := s.qs.GetBet(r.Context(), betID)
	if err != nil {
		s.internalError(w, "get bet", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListUnpaidBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.qs.ListUnpaidBets(r.Context(), queryLimit(r, 200))
	if err != nil {
		s.internalError(w, "list unpaid bets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

func (s *Server) handleListUserBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit := queryLimit(r, 100)
	var before *int64
	if v := r.URL.Query().Get("before_placed_at"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_placed_at")
			return
		}
		before = &n
	}

	bets, err := s.qs.ListBetsByUser(r.Context(), userID, limit, before)
	if err != nil {
		s.internalError(w, "list user bets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	p, err := s.qs.GetPool(r.Context())
	if err != nil {
		s.internalError(w, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetMultipliers(w http.ResponseWriter, r *http.Request) {
	multipliers, err := s.qs.GetMultipliers(r.Context())
	if err != nil {
		s.internalError(w, "get multipliers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"multipliers": multipliers})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error().Err(err).Str("op", op).Msg("query failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}

// commandStatus maps an engine rejection to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrDrawNotFound), errors.Is(err, engine.ErrBetNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidNumber),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrBatchEmpty):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrInsufficientPool):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		// State-machine guards, dedup, pause, exposure.
		return http.StatusConflict
	}
}

func (s *Server) respondCommand(w http.ResponseWriter, cmd command.Command, err error) {
	if err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":       "applied",
		"command_type": cmd.CommandType().String(),
		"command_id":   cmd.IdempotencyKey(),
	})
}

// decodeBody unmarshals a JSON request body, tolerating an empty body for
// commands that carry no parameters.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func parseOptionalUUID(w http.ResponseWriter, s string, name string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.New(), true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func stampTimestamp(ms int64) int64 {
	if ms != 0 {
		return ms
	}
	return time.Now().UnixMilli()
}

func parseBetTypeParam(w http.ResponseWriter, s string) (draw.BetType, bool) {
	switch s {
	case "two_digit":
		return draw.BetTypeTwoDigit, true
	case "three_digit":
		return draw.BetTypeThreeDigit, true
	case "four_digit":
		return draw.BetTypeFourDigit, true
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown bet type %q", s))
		return draw.BetTypeUnknown, false
	}
}

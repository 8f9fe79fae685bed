package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"DrawLedger/internal/engine"
	"DrawLedger/internal/observability"

	"github.com/rs/zerolog"
)

// Worker drains the persist channel and batch-writes to Postgres. It runs
// independently from the deterministic engine: the persist channel uses
// BLOCKING sends from the engine, so if this worker falls behind the engine
// stalls rather than losing an output.
type Worker struct {
	writer       *Writer
	db           *sql.DB
	inputChan    <-chan engine.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan engine.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		logger:       observability.NewLogger("persistence"),
	}
}

// Run batches incoming outputs and flushes either when the batch is full
// or the flush timeout expires. Blocks until ctx is cancelled.
func (pw *Worker) Run(ctx context.Context) error {
	batch := make([]engine.Output, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := pw.flush(context.Background(), batch); err != nil {
					pw.logger.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := pw.flush(context.Background(), batch); err != nil {
						pw.logger.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, output)

			if len(batch) >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or the context is cancelled,
// and on cancellation attempts one final flush with a background context.
func (pw *Worker) flushWithRetry(ctx context.Context, batch []engine.Output) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("outputs", len(batch)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if finalErr := pw.flush(context.Background(), batch); finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				pw.logger.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistRetry.Inc()
		}
	}
}

// flush writes the whole batch in one transaction: events appended first,
// then projection rows in engine order.
func (pw *Worker) flush(ctx context.Context, batch []engine.Output) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	events := make([]EventRow, 0, len(batch))
	var lastSequence int64 = -1
	for i := range batch {
		env := batch[i].Envelope
		if env == nil {
			continue
		}
		events = append(events, EventRow{
			Sequence:       env.Sequence,
			EventType:      env.EventType.String(),
			IdempotencyKey: env.IdempotencyKey,
			Payload:        env.Payload,
			Timestamp:      env.Timestamp,
		})
		lastSequence = env.Sequence
	}

	if err := pw.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	for i := range batch {
		if err := pw.writeProjections(ctx, tx, &batch[i]); err != nil {
			if pw.metrics != nil {
				pw.metrics.PersistErrors.WithLabelValues("write_projections").Inc()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(events)))
		pw.metrics.PersistEventsWritten.Add(float64(len(events)))
		if lastSequence >= 0 {
			pw.metrics.PersistLastSequence.Set(float64(lastSequence))
		}
	}

	return nil
}

func (pw *Worker) writeProjections(ctx context.Context, tx *sql.Tx, out *engine.Output) error {
	sequence := out.Sequence

	if out.Draw != nil {
		if err := pw.writer.UpsertDraw(ctx, tx, out.Draw); err != nil {
			return err
		}
	}
	if err := pw.writer.UpsertBets(ctx, tx, out.Bets); err != nil {
		return err
	}
	if out.Pool != nil {
		if err := pw.writer.UpsertPool(ctx, tx, out.Pool.TotalBalance, out.Pool.AccruedFees, sequence); err != nil {
			return err
		}
	}
	for betType, multiplier := range out.Multipliers {
		if err := pw.writer.UpsertMultiplier(ctx, tx, betType.String(), multiplier, sequence); err != nil {
			return err
		}
	}
	if out.Settings != nil {
		if err := pw.writer.UpsertSettings(ctx, tx, out.Settings); err != nil {
			return err
		}
	}
	if out.VrfRequest != nil {
		r := out.VrfRequest
		if err := pw.writer.UpsertVrfRequest(ctx, tx,
			r.RequestID.String(), r.DrawID.String(),
			r.RequestedAt, r.Fulfilled, r.FulfilledAt); err != nil {
			return err
		}
	}
	return nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/adapter/pii"
	"github.com/V4T54L/commerce-facts/internal/domain"
)

const (
	defaultBatchSize    = 500
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
	spoolSource         = "spool"
)

// IngestOptions tunes event store writes.
type IngestOptions struct {
	BatchSize int
	// BatchesPerSecond throttles upserts; zero disables throttling.
	BatchesPerSecond float64
	RetryCount       int
	RetryBackoff     time.Duration
}

// IngestResult reports how a set of events landed.
type IngestResult struct {
	domain.UpsertResult
	Spooled int
	Batches int
}

func (r *IngestResult) add(other IngestResult) {
	r.UpsertResult.Add(other.UpsertResult)
	r.Spooled += other.Spooled
	r.Batches += other.Batches
}

// IngestEventsUseCase writes raw events to the event store in throttled, retried batches.
// Batches the store still rejects are spooled when a spool is configured.
type IngestEventsUseCase struct {
	store    domain.EventStore
	spool    domain.SpoolRepository
	redactor *pii.Redactor
	metrics  *metrics.PipelineMetrics
	limiter  *rate.Limiter
	opts     IngestOptions
	logger   *slog.Logger
}

// NewIngestEventsUseCase creates a new IngestEventsUseCase. spool may be nil.
func NewIngestEventsUseCase(store domain.EventStore, spool domain.SpoolRepository, redactor *pii.Redactor, m *metrics.PipelineMetrics, opts IngestOptions, logger *slog.Logger) *IngestEventsUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = defaultRetryCount
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	var limiter *rate.Limiter
	if opts.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}
	return &IngestEventsUseCase{
		store:    store,
		spool:    spool,
		redactor: redactor,
		metrics:  m,
		limiter:  limiter,
		opts:     opts,
		logger:   logger.With("component", "ingest_events"),
	}
}

// Ingest redacts, de-duplicates and upserts events. Within one call the last event per
// id wins, so a single statement never touches the same key twice.
func (uc *IngestEventsUseCase) Ingest(ctx context.Context, source string, events []domain.RawEvent) (IngestResult, error) {
	events = uc.prepare(events)

	var total IngestResult
	for start := 0; start < len(events); start += uc.opts.BatchSize {
		end := min(start+uc.opts.BatchSize, len(events))
		batch := events[start:end]

		if uc.limiter != nil {
			if err := uc.limiter.Wait(ctx); err != nil {
				return total, err
			}
		}

		res, err := uc.writeBatch(ctx, source, batch)
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReplaySpool upserts every spooled event and truncates the spool once all batches landed.
func (uc *IngestEventsUseCase) ReplaySpool(ctx context.Context) (IngestResult, error) {
	var total IngestResult
	if uc.spool == nil {
		return total, nil
	}

	err := uc.spool.Replay(ctx, func(events []domain.RawEvent) error {
		res, err := uc.writeWithRetry(ctx, dedupeLast(events))
		if err != nil {
			return err
		}
		uc.record(spoolSource, res)
		total.add(IngestResult{UpsertResult: res, Batches: 1})
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("failed to replay spool: %w", err)
	}
	if total.Batches == 0 {
		return total, nil
	}
	if err := uc.spool.Truncate(ctx); err != nil {
		return total, fmt.Errorf("failed to truncate spool after replay: %w", err)
	}
	uc.metrics.SpoolActive.Set(0)
	uc.logger.Info("replayed spooled events", "inserted", total.Inserted, "updated", total.Updated)
	return total, nil
}

func (uc *IngestEventsUseCase) prepare(events []domain.RawEvent) []domain.RawEvent {
	out := dedupeLast(events)
	for i := range out {
		payload, n := uc.redactor.Redact(out[i].Payload)
		if n > 0 {
			out[i].Payload = payload
			uc.metrics.PIIRedactions.Add(float64(n))
		}
	}
	return out
}

func (uc *IngestEventsUseCase) writeBatch(ctx context.Context, source string, batch []domain.RawEvent) (IngestResult, error) {
	res, err := uc.writeWithRetry(ctx, batch)
	if err == nil {
		uc.record(source, res)
		return IngestResult{UpsertResult: res, Batches: 1}, nil
	}
	if uc.spool == nil || ctx.Err() != nil {
		uc.metrics.EventsTotal.WithLabelValues(source, "failed").Add(float64(len(batch)))
		return IngestResult{}, fmt.Errorf("failed to upsert batch of %d events: %w", len(batch), err)
	}

	uc.logger.Error("event store rejected batch after retries, spooling", "count", len(batch), "error", err)
	spooled := 0
	for _, ev := range batch {
		if serr := uc.spool.Write(ctx, ev); serr != nil {
			uc.metrics.EventsTotal.WithLabelValues(source, "failed").Add(float64(len(batch) - spooled))
			return IngestResult{Spooled: spooled, Batches: 1}, errors.Join(
				fmt.Errorf("failed to upsert batch: %w", err),
				fmt.Errorf("failed to spool event %s: %w", ev.ID, serr),
			)
		}
		spooled++
	}
	uc.metrics.SpoolActive.Set(1)
	uc.metrics.EventsTotal.WithLabelValues(source, "spooled").Add(float64(spooled))
	return IngestResult{Spooled: spooled, Batches: 1}, nil
}

func (uc *IngestEventsUseCase) writeWithRetry(ctx context.Context, events []domain.RawEvent) (domain.UpsertResult, error) {
	var lastErr error
	for i := 0; i < uc.opts.RetryCount; i++ {
		res, err := uc.store.Upsert(ctx, events)
		if err == nil {
			return res, nil
		}
		lastErr = err
		uc.logger.Warn("failed to upsert batch to event store, retrying...", "attempt", i+1, "error", err)
		if i == uc.opts.RetryCount-1 {
			break
		}
		select {
		case <-time.After(uc.opts.RetryBackoff):
		case <-ctx.Done():
			return domain.UpsertResult{}, ctx.Err()
		}
	}
	return domain.UpsertResult{}, lastErr
}

func (uc *IngestEventsUseCase) record(source string, res domain.UpsertResult) {
	uc.metrics.EventsTotal.WithLabelValues(source, "inserted").Add(float64(res.Inserted))
	uc.metrics.EventsTotal.WithLabelValues(source, "updated").Add(float64(res.Updated))
}

// dedupeLast keeps the last event per id at the position of its first occurrence.
func dedupeLast(events []domain.RawEvent) []domain.RawEvent {
	index := make(map[string]int, len(events))
	out := make([]domain.RawEvent, 0, len(events))
	for _, ev := range events {
		if i, ok := index[ev.ID]; ok {
			out[i] = ev
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

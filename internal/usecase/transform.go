package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/aggregate"
	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/normalize"
	"github.com/V4T54L/commerce-facts/internal/resolver"
)

// Facts is one run's canonical tables and the daily aggregate derived from them.
type Facts struct {
	Orders   []domain.Order
	Payments []domain.Payment
	Refunds  []domain.Refund
	Daily    []domain.DailyAggregate
	Stats    map[resolver.Entity]normalize.Stats
}

// Tables renders the facts as warehouse tables, in publishing order.
func (f Facts) Tables() []domain.Table {
	return []domain.Table{
		domain.OrdersTable(f.Orders),
		domain.PaymentsTable(f.Payments),
		domain.RefundsTable(f.Refunds),
		domain.DailyTable(f.Daily),
	}
}

// canonicalLoader fetches each entity's events and normalizes them. The three entities
// are independent and run concurrently.
type canonicalLoader struct {
	store      domain.EventStore
	normalizer *normalize.Normalizer
	metrics    *metrics.PipelineMetrics
}

func (l canonicalLoader) load(ctx context.Context) (Facts, error) {
	facts := Facts{Stats: make(map[resolver.Entity]normalize.Stats, 3)}
	var orderStats, paymentStats, refundStats normalize.Stats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := l.store.Query(gctx, domain.OrderEventTypes)
		if err != nil {
			return fmt.Errorf("failed to query order events: %w", err)
		}
		facts.Orders, orderStats = l.normalizer.Orders(events)
		return nil
	})
	g.Go(func() error {
		events, err := l.store.Query(gctx, domain.PaymentEventTypes)
		if err != nil {
			return fmt.Errorf("failed to query payment events: %w", err)
		}
		facts.Payments, paymentStats = l.normalizer.Payments(events)
		return nil
	})
	g.Go(func() error {
		events, err := l.store.Query(gctx, domain.RefundEventTypes)
		if err != nil {
			return fmt.Errorf("failed to query refund events: %w", err)
		}
		facts.Refunds, refundStats = l.normalizer.Refunds(events)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Facts{}, err
	}

	facts.Stats[resolver.EntityOrder] = orderStats
	facts.Stats[resolver.EntityPayment] = paymentStats
	facts.Stats[resolver.EntityRefund] = refundStats
	for entity, s := range facts.Stats {
		c := l.metrics.RecordsNormalized
		c.WithLabelValues(string(entity), "input").Add(float64(s.Input))
		c.WithLabelValues(string(entity), "output").Add(float64(s.Output))
		c.WithLabelValues(string(entity), "duplicate").Add(float64(s.Duplicates))
		c.WithLabelValues(string(entity), "defaulted_amount").Add(float64(s.DefaultedAmounts))
		c.WithLabelValues(string(entity), "unparsable_date").Add(float64(s.UnparsableDates))
	}
	return facts, nil
}

// TransformUseCase rebuilds the fact tables from the event store and publishes them.
type TransformUseCase struct {
	loader    canonicalLoader
	warehouse domain.WarehouseSink
	snapshot  domain.WarehouseSink
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewTransformUseCase creates a new TransformUseCase. snapshot may be nil, which
// disables ExportSnapshot.
func NewTransformUseCase(store domain.EventStore, normalizer *normalize.Normalizer, warehouse, snapshot domain.WarehouseSink, m *metrics.PipelineMetrics, logger *slog.Logger) *TransformUseCase {
	return &TransformUseCase{
		loader:    canonicalLoader{store: store, normalizer: normalizer, metrics: m},
		warehouse: warehouse,
		snapshot:  snapshot,
		metrics:   m,
		logger:    logger.With("component", "transform"),
	}
}

// Build normalizes every entity and derives the daily aggregate. It does not write.
func (uc *TransformUseCase) Build(ctx context.Context) (Facts, error) {
	start := time.Now()
	facts, err := uc.loader.load(ctx)
	if err != nil {
		return Facts{}, err
	}
	facts.Daily = aggregate.BuildDaily(facts.Orders, facts.Payments, facts.Refunds)
	uc.metrics.StageDuration.WithLabelValues("build").Observe(time.Since(start).Seconds())

	uc.logger.Info("built fact tables",
		"orders", len(facts.Orders),
		"payments", len(facts.Payments),
		"refunds", len(facts.Refunds),
		"daily_rows", len(facts.Daily),
	)
	return facts, nil
}

// Run builds the facts and replaces every fact table in the warehouse. A table that
// fails to write does not stop the others; failures are joined into the returned error.
func (uc *TransformUseCase) Run(ctx context.Context) (Facts, error) {
	facts, err := uc.Build(ctx)
	if err != nil {
		return Facts{}, err
	}
	start := time.Now()
	err = publish(ctx, uc.warehouse, facts.Tables(), uc.metrics, uc.logger)
	uc.metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	return facts, err
}

// ExportSnapshot writes the fact tables to the snapshot sink, a plain CSV copy kept next
// to the reports. It is a no-op without a snapshot sink.
func (uc *TransformUseCase) ExportSnapshot(ctx context.Context, facts Facts) error {
	if uc.snapshot == nil {
		return nil
	}
	if err := publish(ctx, uc.snapshot, facts.Tables(), nil, uc.logger); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	uc.logger.Info("exported fact snapshot")
	return nil
}

// publish replaces each table in sink, isolating failures per table.
func publish(ctx context.Context, sink domain.WarehouseSink, tables []domain.Table, m *metrics.PipelineMetrics, logger *slog.Logger) error {
	var errs []error
	for _, t := range tables {
		name := t.Schema.Table
		if err := sink.WriteTable(ctx, t, domain.WriteReplace); err != nil {
			logger.Error("failed to write table", "table", name, "error", err)
			errs = append(errs, fmt.Errorf("table %s: %w", name, err))
			continue
		}
		if m != nil {
			m.TableRows.WithLabelValues(name).Set(float64(t.Len()))
		}
		logger.Info("wrote table", "table", name, "rows", t.Len())
	}
	return errors.Join(errs...)
}

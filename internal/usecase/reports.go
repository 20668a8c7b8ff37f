package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/dimension"
	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/normalize"
	"github.com/V4T54L/commerce-facts/internal/quality"
)

// QualityReportUseCase computes the quality report and hands it to every report sink.
type QualityReportUseCase struct {
	loader  canonicalLoader
	checker *quality.Checker
	sinks   []domain.ReportSink
	logger  *slog.Logger
}

// NewQualityReportUseCase creates a new QualityReportUseCase.
func NewQualityReportUseCase(store domain.EventStore, normalizer *normalize.Normalizer, checker *quality.Checker, sinks []domain.ReportSink, m *metrics.PipelineMetrics, logger *slog.Logger) *QualityReportUseCase {
	return &QualityReportUseCase{
		loader:  canonicalLoader{store: store, normalizer: normalizer, metrics: m},
		checker: checker,
		sinks:   sinks,
		logger:  logger.With("component", "quality_report"),
	}
}

// Run builds the report. A failing sink does not stop the others.
func (uc *QualityReportUseCase) Run(ctx context.Context) (quality.Report, error) {
	facts, err := uc.loader.load(ctx)
	if err != nil {
		return quality.Report{}, err
	}
	report := uc.checker.Check(facts.Orders, facts.Payments, facts.Refunds)
	out := report.Domain()

	var errs []error
	for _, sink := range uc.sinks {
		if err := sink.WriteReport(ctx, out); err != nil {
			uc.logger.Error("failed to write quality report", "error", err)
			errs = append(errs, err)
		}
	}
	uc.logger.Info("quality report complete",
		"orders", report.TotalOrders,
		"orphan_payments", report.Orphans.Payments,
		"orphan_refunds", report.Orphans.Refunds,
		"payments_over_30_days", report.Latency.Over30Days,
	)
	return report, errors.Join(errs...)
}

// DimensionsSummary reports the rows written per dimension table.
type DimensionsSummary struct {
	Rows map[string]int
}

// DimensionsUseCase rebuilds the dimension tables.
type DimensionsUseCase struct {
	loader    canonicalLoader
	warehouse domain.WarehouseSink
	from, to  time.Time
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewDimensionsUseCase creates a new DimensionsUseCase covering the default calendar.
func NewDimensionsUseCase(store domain.EventStore, normalizer *normalize.Normalizer, warehouse domain.WarehouseSink, m *metrics.PipelineMetrics, logger *slog.Logger) *DimensionsUseCase {
	return &DimensionsUseCase{
		loader:    canonicalLoader{store: store, normalizer: normalizer, metrics: m},
		warehouse: warehouse,
		from:      dimension.CalendarStart,
		to:        dimension.CalendarEnd,
		metrics:   m,
		logger:    logger.With("component", "dimensions"),
	}
}

// Run replaces dim_date, dim_customer and dim_product. dim_customer is left untouched
// when no order carries a customer id.
func (uc *DimensionsUseCase) Run(ctx context.Context) (DimensionsSummary, error) {
	orders, err := uc.loader.store.Query(ctx, domain.OrderEventTypes)
	if err != nil {
		return DimensionsSummary{}, fmt.Errorf("failed to query order events: %w", err)
	}
	canonical, _ := uc.loader.normalizer.Orders(orders)

	tables := []domain.Table{dimension.Dates(uc.from, uc.to)}
	if customers := dimension.Customers(canonical); customers.Len() > 0 {
		tables = append(tables, customers)
	} else {
		uc.logger.Warn("no customers found, dim_customer not written")
	}
	tables = append(tables, dimension.Products())

	summary := DimensionsSummary{Rows: make(map[string]int, len(tables))}
	err = publish(ctx, uc.warehouse, tables, uc.metrics, uc.logger)
	for _, t := range tables {
		summary.Rows[t.Schema.Table] = t.Len()
	}
	return summary, err
}

package usecase

import (
	"io"
	"log/slog"
	"time"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/adapter/pii"
	"github.com/V4T54L/commerce-facts/internal/adapter/source"
	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/domain/mocks"
	"github.com/V4T54L/commerce-facts/internal/normalize"
	"github.com/V4T54L/commerce-facts/internal/resolver"
	"github.com/V4T54L/commerce-facts/internal/vocabulary"
)

var testNow = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testNormalizer() *normalize.Normalizer {
	return normalize.New(resolver.DefaultRules(), vocabulary.Default(), testLogger())
}

func testIngest(store domain.EventStore, spool domain.SpoolRepository, opts IngestOptions) *IngestEventsUseCase {
	redactor := pii.NewRedactor([]string{"email"}, resolver.DefaultRules().Candidates(), testLogger())
	return NewIngestEventsUseCase(store, spool, redactor, metrics.NewPipelineMetrics(), opts, testLogger())
}

func wrap(t domain.EventType, record map[string]any) domain.RawEvent {
	return source.WrapRecord(t, record, testNow, "test")
}

// workedExampleStore holds two orders of one vendor and day, one successful and one
// failed payment, and a refund against the successful payment.
func workedExampleStore() *mocks.MemoryEventStore {
	return mocks.NewMemoryEventStore(
		wrap(domain.EventHistoricalOrder, map[string]any{
			"order_id": "A", "customerId": "C1", "totalAmount": 10.0, "state": "paid",
			"created_at": "2024-01-01T10:00:00Z", "vendor_id": "vendorX",
		}),
		wrap(domain.EventHistoricalOrder, map[string]any{
			"order_id": "B", "customerId": "C2", "totalAmount": 20.0, "state": "pending",
			"created_at": "2024-01-01T12:00:00Z", "vendor_id": "vendorX",
		}),
		wrap(domain.EventHistoricalPayment, map[string]any{
			"payment_id": "P1", "order_id": "A", "amount": 10.0, "status": "Success",
			"paid_at": "2024-01-01T11:00:00Z", "vendor_id": "vendorX",
		}),
		wrap(domain.EventHistoricalPayment, map[string]any{
			"payment_id": "P2", "order_id": "B", "amount": 20.0, "status": "ERROR",
			"paid_at": "2024-01-12T12:00:00Z", "vendor_id": "vendorX",
		}),
		wrap(domain.EventHistoricalRefund, map[string]any{
			"refund_id": "R1", "order_id": "A", "payment_id": "P1", "amount": 3.0,
			"reason": "damaged", "vendor_id": "vendorX",
		}),
		wrap(domain.EventHistoricalShipment, map[string]any{
			"shipment_id": "S1", "order_id": "A",
		}),
	)
}

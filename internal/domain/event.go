package domain

import "time"

// EventType tags a raw event with the kind of record its payload carries.
type EventType string

const (
	EventHistoricalOrder    EventType = "historical_order"
	EventHistoricalPayment  EventType = "historical_payment"
	EventHistoricalShipment EventType = "historical_shipment"
	EventHistoricalRefund   EventType = "historical_refund"

	EventOrderCreated     EventType = "order_created"
	EventOrderUpdated     EventType = "order_updated"
	EventPaymentAttempt   EventType = "payment_attempt"
	EventPaymentConfirmed EventType = "payment_confirmed"
	EventRefundCreated    EventType = "refund_created"
	EventRefundProcessed  EventType = "refund_processed"
)

// Historical bulk-load types and live incremental types are unioned without distinction.
var (
	OrderEventTypes   = []EventType{EventHistoricalOrder, EventOrderCreated, EventOrderUpdated}
	PaymentEventTypes = []EventType{EventHistoricalPayment, EventPaymentAttempt, EventPaymentConfirmed}
	RefundEventTypes  = []EventType{EventHistoricalRefund, EventRefundCreated, EventRefundProcessed}
)

// Ingestion sources recorded on every stored event.
const (
	SourceHistoricalBootstrap = "historical_bootstrap"
	SourceLiveStream          = "live_stream"
)

// UnknownVendor is used when no vendor can be extracted from a record.
const UnknownVendor = "unknown"

// DefaultEventTime is the event time assigned to records without a usable timestamp.
var DefaultEventTime = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// RawEvent is a stored event document: a typed, vendor-tagged envelope around an
// arbitrarily shaped payload.
type RawEvent struct {
	ID         string         `json:"event_id"`
	Type       EventType      `json:"event_type"`
	EventTime  time.Time      `json:"event_time"`
	Vendor     string         `json:"vendor"`
	Payload    map[string]any `json:"payload"`
	IngestedAt time.Time      `json:"ingested_at"`
	Source     string         `json:"source"`
	RunID      string         `json:"run_id,omitempty"`
}

// UpsertResult reports how a batch of events landed in the event store.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// Add accumulates another result into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
}

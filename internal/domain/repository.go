package domain

import "context"

// EventStore is the raw event document store.
// This abstracts away the specific implementation (e.g., PostgreSQL JSONB).
type EventStore interface {
	// Query returns every stored event whose type is in types, in first-ingested order.
	Query(ctx context.Context, types []EventType) ([]RawEvent, error)

	// Upsert writes events keyed by event_id. Re-ingesting an id replaces the stored document.
	Upsert(ctx context.Context, events []RawEvent) (UpsertResult, error)

	// Count returns the number of stored events from source, or all events when source is empty.
	Count(ctx context.Context, source string) (int64, error)
}

// WarehouseSink accepts canonical tables for loading into the warehouse.
type WarehouseSink interface {
	// WriteTable validates the table against its registered schema and writes it.
	// A schema violation returns ErrSchemaMismatch and leaves the stored table untouched.
	WriteTable(ctx context.Context, table Table, mode WriteMode) error
}

// ReportSink accepts flat key-value summaries such as the quality report.
type ReportSink interface {
	WriteReport(ctx context.Context, report Report) error
}

// SpoolRepository defines the interface for the event spool used when the event store
// rejects a batch.
type SpoolRepository interface {
	// Write appends an event to the local spool.
	Write(ctx context.Context, event RawEvent) error

	// Replay reads spooled events and sends them to handler in write order.
	Replay(ctx context.Context, handler func(events []RawEvent) error) error

	// Truncate removes spooled segments after a successful replay.
	Truncate(ctx context.Context) error
}

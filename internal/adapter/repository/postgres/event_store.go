package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

const (
	eventsTableName = "events_raw"
	eventsTempTable = "events_raw_import"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events_raw (
	seq         BIGSERIAL,
	event_id    TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	event_time  TIMESTAMPTZ NOT NULL,
	vendor      TEXT NOT NULL,
	payload     JSONB NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL,
	run_id      TEXT
);
CREATE INDEX IF NOT EXISTS events_raw_type_seq_idx ON events_raw (event_type, seq);
CREATE INDEX IF NOT EXISTS events_raw_source_idx ON events_raw (source);
`

// EventStore implements domain.EventStore on a PostgreSQL JSONB table.
type EventStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventStore creates a new PostgreSQL event store.
func NewEventStore(db *sql.DB, logger *slog.Logger) *EventStore {
	return &EventStore{db: db, logger: logger.With("component", "postgres_event_store")}
}

// EnsureSchema creates events_raw and its indexes if they do not exist.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", eventsTableName, err)
	}
	return nil
}

// Upsert writes a batch of events using the COPY protocol. Rows are staged in a
// temporary table and merged with ON CONFLICT, so re-ingesting an event_id replaces
// its document and keeps its first position. The batch must not repeat an event_id.
func (s *EventStore) Upsert(ctx context.Context, events []domain.RawEvent) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	if len(events) == 0 {
		return res, nil
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer txn.Rollback()

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+eventsTempTable+` (
		event_id    TEXT,
		event_type  TEXT,
		event_time  TIMESTAMPTZ,
		vendor      TEXT,
		payload     JSONB,
		ingested_at TIMESTAMPTZ,
		source      TEXT,
		run_id      TEXT,
		ord         BIGINT
	) ON COMMIT DROP;`)
	if err != nil {
		return res, err
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(eventsTempTable,
		"event_id", "event_type", "event_time", "vendor", "payload", "ingested_at", "source", "run_id", "ord"))
	if err != nil {
		return res, err
	}

	for i, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			_ = stmt.Close()
			return res, fmt.Errorf("failed to encode payload of %s: %w", ev.ID, err)
		}
		var runID any
		if ev.RunID != "" {
			runID = ev.RunID
		}
		_, err = stmt.ExecContext(ctx, ev.ID, string(ev.Type), ev.EventTime, ev.Vendor, string(payload), ev.IngestedAt, ev.Source, runID, i)
		if err != nil {
			_ = stmt.Close()
			return res, err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return res, err
	}
	if err := stmt.Close(); err != nil {
		return res, err
	}

	// xmax is zero for freshly inserted rows.
	rows, err := txn.QueryContext(ctx, `
		INSERT INTO events_raw (event_id, event_type, event_time, vendor, payload, ingested_at, source, run_id)
		SELECT event_id, event_type, event_time, vendor, payload, ingested_at, source, run_id
		FROM `+eventsTempTable+` ORDER BY ord
		ON CONFLICT (event_id) DO UPDATE SET
			event_type = EXCLUDED.event_type,
			event_time = EXCLUDED.event_time,
			vendor = EXCLUDED.vendor,
			payload = EXCLUDED.payload,
			ingested_at = EXCLUDED.ingested_at,
			source = EXCLUDED.source,
			run_id = EXCLUDED.run_id
		RETURNING (xmax = 0) AS inserted;
	`)
	if err != nil {
		return res, err
	}
	for rows.Next() {
		var inserted bool
		if err := rows.Scan(&inserted); err != nil {
			rows.Close()
			return domain.UpsertResult{}, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	if err := rows.Close(); err != nil {
		return domain.UpsertResult{}, err
	}
	if err := rows.Err(); err != nil {
		return domain.UpsertResult{}, err
	}

	if err := txn.Commit(); err != nil {
		return domain.UpsertResult{}, err
	}
	return res, nil
}

// Query returns every event of the given types in first-ingested order.
func (s *EventStore) Query(ctx context.Context, types []domain.EventType) ([]domain.RawEvent, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, event_time, vendor, payload, ingested_at, source, COALESCE(run_id, '')
		FROM events_raw
		WHERE event_type = ANY($1)
		ORDER BY seq`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		var (
			ev      domain.RawEvent
			typ     string
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.EventTime, &ev.Vendor, &payload, &ev.IngestedAt, &ev.Source, &ev.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		if ev.Payload, err = decodePayload(payload); err != nil {
			s.logger.Warn("stored payload is not a JSON object, using an empty payload", "event_id", ev.ID, "error", err)
			ev.Payload = map[string]any{}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events from source, or of all events when source is empty.
func (s *EventStore) Count(ctx context.Context, source string) (int64, error) {
	var n int64
	var err error
	if source == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events_raw`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events_raw WHERE source = $1`, source).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// decodePayload keeps numbers as json.Number, matching how source files are read.
func decodePayload(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

// MemoryEventStore is an in-memory implementation of domain.EventStore for testing.
// Upserts keep the first-insert position of an id and replace its document.
type MemoryEventStore struct {
	mu     sync.Mutex
	order  []string
	events map[string]domain.RawEvent

	// FailUpserts makes the next N Upsert calls return UpsertErr.
	FailUpserts int
	UpsertErr   error
	QueryErr    error
	UpsertCalls int
}

// NewMemoryEventStore returns a store preloaded with events.
func NewMemoryEventStore(events ...domain.RawEvent) *MemoryEventStore {
	m := &MemoryEventStore{events: make(map[string]domain.RawEvent)}
	for _, ev := range events {
		m.put(ev)
	}
	return m
}

func (m *MemoryEventStore) put(ev domain.RawEvent) bool {
	if m.events == nil {
		m.events = make(map[string]domain.RawEvent)
	}
	_, exists := m.events[ev.ID]
	if !exists {
		m.order = append(m.order, ev.ID)
	}
	m.events[ev.ID] = ev
	return !exists
}

func (m *MemoryEventStore) Query(ctx context.Context, types []domain.EventType) ([]domain.RawEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	want := make(map[domain.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []domain.RawEvent
	for _, id := range m.order {
		if ev := m.events[id]; want[ev.Type] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryEventStore) Upsert(ctx context.Context, events []domain.RawEvent) (domain.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.FailUpserts > 0 {
		m.FailUpserts--
		return domain.UpsertResult{}, m.UpsertErr
	}
	var res domain.UpsertResult
	for _, ev := range events {
		if m.put(ev) {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (m *MemoryEventStore) Count(ctx context.Context, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ev := range m.events {
		if source == "" || ev.Source == source {
			n++
		}
	}
	return n, nil
}

// All returns the stored events in first-insert order.
func (m *MemoryEventStore) All() []domain.RawEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RawEvent, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	return out
}

// TableWrite records one WriteTable call.
type TableWrite struct {
	Table domain.Table
	Mode  domain.WriteMode
}

// RecordingWarehouse is a domain.WarehouseSink that keeps tables in memory. It validates
// schemas the way real sinks do.
type RecordingWarehouse struct {
	mu     sync.Mutex
	Tables map[string]domain.Table
	Writes []TableWrite
	// Errs fails writes for the named tables.
	Errs map[string]error
}

func (m *RecordingWarehouse) WriteTable(ctx context.Context, table domain.Table, mode domain.WriteMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := domain.CheckSchema(table); err != nil {
		return err
	}
	if err := m.Errs[table.Schema.Table]; err != nil {
		return err
	}
	if m.Tables == nil {
		m.Tables = make(map[string]domain.Table)
	}
	m.Writes = append(m.Writes, TableWrite{Table: table, Mode: mode})
	if mode == domain.WriteAppend {
		existing := m.Tables[table.Schema.Table]
		table.Rows = append(append([][]any{}, existing.Rows...), table.Rows...)
	}
	m.Tables[table.Schema.Table] = table
	return nil
}

// RecordingReportSink is a domain.ReportSink that keeps reports in memory.
type RecordingReportSink struct {
	mu      sync.Mutex
	Reports []domain.Report
	Err     error
}

func (m *RecordingReportSink) WriteReport(ctx context.Context, report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Reports = append(m.Reports, report)
	return nil
}

// MockSpool is an in-memory domain.SpoolRepository.
type MockSpool struct {
	mu        sync.Mutex
	Events    []domain.RawEvent
	WriteErr  error
	ReplayErr error
	Truncated int
}

func (m *MockSpool) Write(ctx context.Context, event domain.RawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockSpool) Replay(ctx context.Context, handler func(events []domain.RawEvent) error) error {
	m.mu.Lock()
	events := append([]domain.RawEvent(nil), m.Events...)
	m.mu.Unlock()
	if m.ReplayErr != nil {
		return m.ReplayErr
	}
	if len(events) == 0 {
		return nil
	}
	return handler(events)
}

func (m *MockSpool) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = nil
	m.Truncated++
	return nil
}

package wal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

func setupTestSpool(t *testing.T, maxSegmentSize, maxTotalSize int64) *Spool {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	spool, err := NewSpool(t.TempDir(), maxSegmentSize, maxTotalSize, logger)
	if err != nil {
		t.Fatalf("failed to create spool: %v", err)
	}
	t.Cleanup(func() { spool.Close() })
	return spool
}

func testEvent(amount string) domain.RawEvent {
	return domain.RawEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventPaymentAttempt,
		EventTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Vendor:     "acme",
		Payload:    map[string]any{"amount": json.Number(amount), "status": "paid"},
		IngestedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Source:     domain.SourceLiveStream,
	}
}

func collect(t *testing.T, spool *Spool) [][]domain.RawEvent {
	t.Helper()
	var batches [][]domain.RawEvent
	err := spool.Replay(context.Background(), func(events []domain.RawEvent) error {
		batches = append(batches, events)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to replay spool: %v", err)
	}
	return batches
}

func TestSpool_WriteAndReplay(t *testing.T) {
	spool := setupTestSpool(t, 1<<20, 10<<20)

	events := []domain.RawEvent{testEvent("10.50"), testEvent("20"), testEvent("30")}
	for _, event := range events {
		if err := spool.Write(context.Background(), event); err != nil {
			t.Fatalf("failed to write event: %v", err)
		}
	}
	spool.Close()

	// Re-open the spool to simulate a restart
	reopened, err := NewSpool(spool.dir, 1<<20, 10<<20, spool.logger)
	if err != nil {
		t.Fatalf("failed to re-open spool: %v", err)
	}
	if reopened.Size() == 0 {
		t.Fatal("expected reopened spool to account for existing segments")
	}

	batches := collect(t, reopened)
	if len(batches) != 1 || len(batches[0]) != len(events) {
		t.Fatalf("expected 1 batch of %d events, got %v", len(events), batches)
	}
	for i, event := range events {
		got := batches[0][i]
		if got.ID != event.ID || got.Vendor != event.Vendor || !got.EventTime.Equal(event.EventTime) {
			t.Errorf("replayed event mismatch at index %d: got %+v, want %+v", i, got, event)
		}
		if got.Payload["amount"] != event.Payload["amount"] {
			t.Errorf("payload amount mismatch at index %d: got %v, want %v", i, got.Payload["amount"], event.Payload["amount"])
		}
	}
}

func TestSpool_SegmentRotation(t *testing.T) {
	spool := setupTestSpool(t, 100, 1<<20)

	for i := 0; i < 5; i++ {
		if err := spool.Write(context.Background(), testEvent("1")); err != nil {
			t.Fatalf("failed to write event: %v", err)
		}
	}

	segments, err := spool.segments()
	if err != nil {
		t.Fatalf("failed to get segments: %v", err)
	}
	if len(segments) != 5 {
		t.Errorf("expected one segment per oversized event, got %d", len(segments))
	}

	batches := collect(t, spool)
	if len(batches) != 5 {
		t.Errorf("expected replay to deliver one batch per segment, got %d", len(batches))
	}
}

func TestSpool_EmptySpoolLeavesNoFiles(t *testing.T) {
	spool := setupTestSpool(t, 1024, 1024)

	segments, _ := spool.segments()
	if len(segments) != 0 {
		t.Fatalf("expected no segments before the first write, got %d", len(segments))
	}
	if batches := collect(t, spool); len(batches) != 0 {
		t.Errorf("expected nothing to replay, got %d batches", len(batches))
	}
}

func TestSpool_Truncate(t *testing.T) {
	spool := setupTestSpool(t, 1024, 1<<20)

	if err := spool.Write(context.Background(), testEvent("5")); err != nil {
		t.Fatalf("failed to write event: %v", err)
	}
	if err := spool.Truncate(context.Background()); err != nil {
		t.Fatalf("failed to truncate spool: %v", err)
	}

	segments, _ := spool.segments()
	if len(segments) != 0 {
		t.Errorf("expected no segments after truncate, got %d", len(segments))
	}
	if spool.Size() != 0 {
		t.Errorf("expected empty spool after truncate, size is %d", spool.Size())
	}

	if err := spool.Write(context.Background(), testEvent("6")); err != nil {
		t.Fatalf("failed to write after truncate: %v", err)
	}
	if batches := collect(t, spool); len(batches) != 1 {
		t.Errorf("expected the new event to be replayed, got %d batches", len(batches))
	}
}

func TestSpool_MaxTotalSize(t *testing.T) {
	spool := setupTestSpool(t, 100, 600)

	var err error
	for i := 0; i < 10; i++ {
		err = spool.Write(context.Background(), testEvent("1"))
		if err != nil {
			break
		}
	}
	if !errors.Is(err, ErrSpoolFull) {
		t.Fatalf("expected ErrSpoolFull when writing beyond max total size, got %v", err)
	}
}

func TestSpool_ReplayStopsOnHandlerError(t *testing.T) {
	spool := setupTestSpool(t, 100, 1<<20)
	for i := 0; i < 3; i++ {
		if err := spool.Write(context.Background(), testEvent("1")); err != nil {
			t.Fatalf("failed to write event: %v", err)
		}
	}

	calls := 0
	err := spool.Replay(context.Background(), func(events []domain.RawEvent) error {
		calls++
		return errors.New("store unavailable")
	})
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected replay to stop after the first failing batch, got %d calls", calls)
	}
}

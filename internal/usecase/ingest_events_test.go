package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/domain/mocks"
)

func liveEvent(id string, payload map[string]any) domain.RawEvent {
	return domain.RawEvent{ID: id, Type: domain.EventOrderCreated, Vendor: "v", Payload: payload, Source: domain.SourceLiveStream}
}

func TestIngestEventsUseCase_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("Batches and de-duplicates", func(t *testing.T) {
		store := mocks.NewMemoryEventStore()
		uc := testIngest(store, nil, IngestOptions{BatchSize: 2})

		events := []domain.RawEvent{
			liveEvent("e1", map[string]any{"state": "new"}),
			liveEvent("e2", nil),
			liveEvent("e1", map[string]any{"state": "paid"}),
			liveEvent("e3", nil),
			liveEvent("e4", nil),
		}
		res, err := uc.Ingest(ctx, domain.SourceLiveStream, events)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Inserted != 4 || res.Updated != 0 {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.Batches != 2 || store.UpsertCalls != 2 {
			t.Errorf("expected 2 batches, got %d (store calls %d)", res.Batches, store.UpsertCalls)
		}
		stored := store.All()
		if stored[0].ID != "e1" || stored[0].Payload["state"] != "paid" {
			t.Errorf("expected last e1 document at the first position, got %+v", stored[0])
		}
	})

	t.Run("Re-ingestion updates", func(t *testing.T) {
		store := mocks.NewMemoryEventStore()
		uc := testIngest(store, nil, IngestOptions{})
		events := []domain.RawEvent{liveEvent("e1", nil), liveEvent("e2", nil)}

		if _, err := uc.Ingest(ctx, domain.SourceLiveStream, events); err != nil {
			t.Fatalf("first ingest failed: %v", err)
		}
		res, err := uc.Ingest(ctx, domain.SourceLiveStream, events)
		if err != nil {
			t.Fatalf("second ingest failed: %v", err)
		}
		if res.Inserted != 0 || res.Updated != 2 {
			t.Errorf("expected 2 updates, got %+v", res)
		}
		if n, _ := store.Count(ctx, ""); n != 2 {
			t.Errorf("expected 2 stored events, got %d", n)
		}
	})

	t.Run("PII Redaction", func(t *testing.T) {
		store := mocks.NewMemoryEventStore()
		uc := testIngest(store, nil, IngestOptions{})

		payload := map[string]any{"email": "a@b.c", "order_id": "ORD-1"}
		if _, err := uc.Ingest(ctx, domain.SourceLiveStream, []domain.RawEvent{liveEvent("e1", payload)}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := store.All()[0]
		if stored.Payload["email"] != "[REDACTED]" {
			t.Errorf("expected email to be redacted, got %v", stored.Payload["email"])
		}
		if stored.Payload["order_id"] != "ORD-1" {
			t.Errorf("expected order_id to be kept, got %v", stored.Payload["order_id"])
		}
		if payload["email"] != "a@b.c" {
			t.Error("caller payload was modified")
		}
	})

	t.Run("Retries transient failures", func(t *testing.T) {
		store := mocks.NewMemoryEventStore()
		store.FailUpserts = 2
		store.UpsertErr = errors.New("connection reset")
		uc := testIngest(store, nil, IngestOptions{RetryCount: 3})

		res, err := uc.Ingest(ctx, domain.SourceLiveStream, []domain.RawEvent{liveEvent("e1", nil)})
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if res.Inserted != 1 || store.UpsertCalls != 3 {
			t.Errorf("expected 1 insert after 3 calls, got %+v with %d calls", res, store.UpsertCalls)
		}
	})

	t.Run("Repository Error", func(t *testing.T) {
		store := mocks.NewMemoryEventStore()
		store.FailUpserts = 100
		store.UpsertErr = errors.New("store is down")
		uc := testIngest(store, nil, IngestOptions{RetryCount: 2})

		_, err := uc.Ingest(ctx, domain.SourceLiveStream, []domain.RawEvent{liveEvent("e1", nil)})
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if !errors.Is(err, store.UpsertErr) {
			t.Errorf("expected wrapped store error, got %v", err)
		}
	})
}

func TestIngestEventsUseCase_SpoolFallback(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryEventStore()
	store.FailUpserts = 100
	store.UpsertErr = errors.New("store is down")
	spool := &mocks.MockSpool{}
	uc := testIngest(store, spool, IngestOptions{BatchSize: 2, RetryCount: 1})

	var events []domain.RawEvent
	for i := 0; i < 3; i++ {
		events = append(events, liveEvent(fmt.Sprintf("e%d", i), nil))
	}
	res, err := uc.Ingest(ctx, domain.SourceLiveStream, events)
	if err != nil {
		t.Fatalf("expected events to be spooled without error, got %v", err)
	}
	if res.Spooled != 3 || len(spool.Events) != 3 {
		t.Fatalf("expected 3 spooled events, got %d (spool has %d)", res.Spooled, len(spool.Events))
	}

	store.FailUpserts = 0
	replayed, err := uc.ReplaySpool(ctx)
	if err != nil {
		t.Fatalf("expected replay to succeed, got %v", err)
	}
	if replayed.Inserted != 3 {
		t.Errorf("expected 3 replayed inserts, got %+v", replayed)
	}
	if spool.Truncated != 1 || len(spool.Events) != 0 {
		t.Errorf("expected spool to be truncated once, got %d (remaining %d)", spool.Truncated, len(spool.Events))
	}
	if n, _ := store.Count(ctx, domain.SourceLiveStream); n != 3 {
		t.Errorf("expected 3 stored events, got %d", n)
	}
}

func TestIngestEventsUseCase_ReplayKeepsSpoolOnFailure(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryEventStore()
	store.FailUpserts = 100
	store.UpsertErr = errors.New("store is down")
	spool := &mocks.MockSpool{Events: []domain.RawEvent{liveEvent("e1", nil)}}
	uc := testIngest(store, spool, IngestOptions{RetryCount: 1})

	if _, err := uc.ReplaySpool(ctx); err == nil {
		t.Fatal("expected replay error, got nil")
	}
	if spool.Truncated != 0 || len(spool.Events) != 1 {
		t.Errorf("expected spooled events to be kept, truncated=%d remaining=%d", spool.Truncated, len(spool.Events))
	}
}

func TestIngestEventsUseCase_SpoolWriteError(t *testing.T) {
	store := mocks.NewMemoryEventStore()
	store.FailUpserts = 100
	store.UpsertErr = errors.New("store is down")
	spool := &mocks.MockSpool{WriteErr: errors.New("disk full")}
	uc := testIngest(store, spool, IngestOptions{RetryCount: 1})

	_, err := uc.Ingest(context.Background(), domain.SourceLiveStream, []domain.RawEvent{liveEvent("e1", nil)})
	if err == nil {
		t.Fatal("expected an error when the spool rejects events")
	}
	if !errors.Is(err, store.UpsertErr) || !errors.Is(err, spool.WriteErr) {
		t.Errorf("expected both store and spool errors, got %v", err)
	}
}

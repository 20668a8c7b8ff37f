package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

func testReport() domain.Report {
	return domain.Report{
		Name:        "quality_report",
		GeneratedAt: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		Fields:      []domain.Field{{Key: "total_orders", Value: "2"}, {Key: "refund_rate", Value: "0.1"}},
		Lines:       []string{"QUALITY REPORT"},
	}
}

func TestKey(t *testing.T) {
	if got := Key(testReport()); got != "report:quality_report:2024-01-05" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestReportSinkIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	sink := NewReportSink(client, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	report := testReport()
	if err := client.HSet(ctx, Key(report), "stale", "x").Err(); err != nil {
		t.Fatalf("failed to seed stale field: %v", err)
	}

	if err := sink.WriteReport(ctx, report); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	fields, err := sink.ReadReport(ctx, report.Name, report.Day())
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if fields["total_orders"] != "2" || fields["refund_rate"] != "0.1" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if _, ok := fields["stale"]; ok {
		t.Error("expected the previous hash to be replaced")
	}
	if ttl := client.TTL(ctx, Key(report)).Val(); ttl <= 0 || ttl > time.Hour {
		t.Errorf("expected a ttl of at most 1h, got %s", ttl)
	}
}

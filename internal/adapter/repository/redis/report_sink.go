package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

const (
	reportKeyPrefix = "report"
	textField       = "_text"
	generatedField  = "_generated_at"
)

// ReportSink stores each report as a hash keyed report:<name>:<day>. The hash holds the
// flat fields, the generation time and the rendered text.
type ReportSink struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewReportSink creates a Redis report sink. A zero ttl keeps reports forever.
func NewReportSink(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ReportSink {
	return &ReportSink{client: client, ttl: ttl, logger: logger.With("component", "redis_report_sink")}
}

// Key returns the hash key of a report.
func Key(report domain.Report) string {
	return fmt.Sprintf("%s:%s:%s", reportKeyPrefix, report.Name, report.Day())
}

// WriteReport replaces the report's hash atomically.
func (s *ReportSink) WriteReport(ctx context.Context, report domain.Report) error {
	key := Key(report)
	values := make(map[string]any, len(report.Fields)+2)
	for _, f := range report.Fields {
		values[f.Key] = f.Value
	}
	values[generatedField] = report.GeneratedAt.UTC().Format(time.RFC3339)
	values[textField] = strings.Join(report.Lines, "\n")

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write report %s: %w", key, err)
	}
	s.logger.Info("report saved", "key", key, "fields", len(report.Fields))
	return nil
}

// ReadReport returns the stored fields of a report, without the rendered text.
func (s *ReportSink) ReadReport(ctx context.Context, name, day string) (map[string]string, error) {
	key := fmt.Sprintf("%s:%s:%s", reportKeyPrefix, name, day)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", key, err)
	}
	delete(fields, textField)
	return fields, nil
}

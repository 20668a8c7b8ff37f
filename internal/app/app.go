// Package app wires configuration, stores and sinks for the batch commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/adapter/pii"
	"github.com/V4T54L/commerce-facts/internal/adapter/repository/clickhouse"
	"github.com/V4T54L/commerce-facts/internal/adapter/repository/csvfile"
	"github.com/V4T54L/commerce-facts/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/commerce-facts/internal/adapter/repository/redis"
	"github.com/V4T54L/commerce-facts/internal/adapter/repository/wal"
	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/normalize"
	"github.com/V4T54L/commerce-facts/internal/pkg/config"
	"github.com/V4T54L/commerce-facts/internal/pkg/logger"
	"github.com/V4T54L/commerce-facts/internal/resolver"
	"github.com/V4T54L/commerce-facts/internal/usecase"
	"github.com/V4T54L/commerce-facts/internal/vocabulary"
)

// App holds the shared dependencies of one command run. Close releases every
// connection it opened.
type App struct {
	Job     string
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics

	rules   resolver.Rules
	closers []func() error
}

// New loads configuration and builds the logger for job.
func New(job string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	rules := resolver.DefaultRules()
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &App{
		Job:     job,
		Config:  cfg,
		Logger:  logger.New(cfg.LogLevel).With("job", job),
		Metrics: metrics.NewPipelineMetrics(),
		rules:   rules,
	}, nil
}

// EventStore connects to the event store and makes sure its table exists.
func (a *App) EventStore(ctx context.Context) (*postgres.EventStore, error) {
	db, err := a.openPostgres(ctx, a.Config.EventStoreURL)
	if err != nil {
		return nil, err
	}
	store := postgres.NewEventStore(db, a.Logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.Logger.Info("connected to event store")
	return store, nil
}

// Normalizer builds the normalizer from the resolver rules and the configured vocabulary.
func (a *App) Normalizer() (*normalize.Normalizer, error) {
	vocab, err := vocabulary.Load(a.Config.VocabularyFile)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("loaded status vocabulary", "version", vocab.Version())
	return normalize.New(a.rules, vocab, a.Logger), nil
}

// Ingest builds the ingest use case with PII redaction and the local spool.
func (a *App) Ingest(store domain.EventStore) (*usecase.IngestEventsUseCase, error) {
	cfg := a.Config
	spool, err := wal.NewSpool(cfg.SpoolDir, cfg.SpoolSegmentSize, cfg.SpoolMaxDiskSize, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}
	a.closers = append(a.closers, spool.Close)

	redactor := pii.NewRedactor(cfg.RedactionFields(), a.rules.Candidates(), a.Logger)
	opts := usecase.IngestOptions{
		BatchSize:        cfg.IngestBatchSize,
		BatchesPerSecond: cfg.IngestBatchesPerSec,
		RetryCount:       cfg.IngestRetryCount,
		RetryBackoff:     cfg.IngestRetryBackoff,
	}
	return usecase.NewIngestEventsUseCase(store, spool, redactor, a.Metrics, opts, a.Logger), nil
}

// Warehouse builds the configured warehouse sink.
func (a *App) Warehouse(ctx context.Context) (domain.WarehouseSink, error) {
	cfg := a.Config
	switch cfg.WarehouseBackend {
	case config.WarehousePostgres:
		db, err := a.openPostgres(ctx, cfg.WarehousePostgresURL)
		if err != nil {
			return nil, err
		}
		return postgres.NewWarehouse(db, a.Logger), nil
	case config.WarehouseClickHouse:
		conn, err := clickhouse.Open(ctx, clickhouse.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return clickhouse.NewWarehouse(conn, cfg.ClickHouse.Database, a.Logger), nil
	default:
		return csvfile.NewWarehouse(cfg.WarehouseDir, a.Logger), nil
	}
}

// Snapshot returns the CSV sink used for the transformed-data export.
func (a *App) Snapshot() domain.WarehouseSink {
	return csvfile.NewWarehouse(a.Config.SnapshotDir, a.Logger)
}

// ReportSinks returns the file report sink, plus the Redis sink when REDIS_ADDR is set.
// An unreachable Redis is logged and left out.
func (a *App) ReportSinks(ctx context.Context) []domain.ReportSink {
	sinks := []domain.ReportSink{csvfile.NewReportSink(a.Config.ReportDir, a.Logger)}
	if a.Config.RedisAddr == "" {
		return sinks
	}

	client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("redis unavailable, reports are written to files only", "error", err)
		_ = client.Close()
		return sinks
	}
	a.closers = append(a.closers, client.Close)
	a.Logger.Info("connected to redis")
	return append(sinks, redisrepo.NewReportSink(client, a.Config.ReportTTL, a.Logger))
}

// Finish records the run outcome, pushes metrics and returns the process exit code.
func (a *App) Finish(ctx context.Context, runErr error) int {
	if runErr == nil {
		a.Metrics.LastSuccess.SetToCurrentTime()
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Metrics.Push(pushCtx, a.Config.PushgatewayURL, a.Job); err != nil {
		a.Logger.Warn("failed to push metrics", "error", err)
	}
	if err := a.Close(); err != nil {
		a.Logger.Warn("failed to close connections", "error", err)
	}

	if runErr != nil {
		a.Logger.Error("run failed", "error", runErr)
		return 1
	}
	a.Logger.Info("run complete")
	return 0
}

// Close releases every connection opened by the App, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

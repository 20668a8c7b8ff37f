package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/commerce-facts/internal/adapter/metrics"
	"github.com/V4T54L/commerce-facts/internal/adapter/source"
	"github.com/V4T54L/commerce-facts/internal/domain"
)

// FileSummary reports the outcome of loading one bootstrap file.
type FileSummary struct {
	File      string
	Type      domain.EventType
	Missing   bool
	Records   int
	Malformed int
	Result    IngestResult
	Err       error
}

// BootstrapSummary reports a historical bulk load.
type BootstrapSummary struct {
	RunID           string
	Files           []FileSummary
	TotalHistorical int64
}

// BootstrapUseCase loads the historical dump files into the event store.
type BootstrapUseCase struct {
	ingest  *IngestEventsUseCase
	store   domain.EventStore
	dir     string
	now     func() time.Time
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewBootstrapUseCase creates a new BootstrapUseCase reading files from dir.
func NewBootstrapUseCase(ingest *IngestEventsUseCase, store domain.EventStore, dir string, m *metrics.PipelineMetrics, logger *slog.Logger) *BootstrapUseCase {
	return &BootstrapUseCase{
		ingest:  ingest,
		store:   store,
		dir:     dir,
		now:     time.Now,
		metrics: m,
		logger:  logger.With("component", "bootstrap"),
	}
}

// Run loads every known bootstrap file. Missing files are skipped with a warning; a file
// that cannot be parsed or stored is reported and the remaining files still load.
func (uc *BootstrapUseCase) Run(ctx context.Context) (BootstrapSummary, error) {
	summary := BootstrapSummary{RunID: uuid.NewString()}
	logger := uc.logger.With("run_id", summary.RunID)
	logger.Info("starting historical bootstrap", "dir", uc.dir)

	var errs []error
	for _, bf := range source.BootstrapFiles {
		fs := uc.loadFile(ctx, logger, bf, summary.RunID)
		summary.Files = append(summary.Files, fs)
		if fs.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", bf.Name, fs.Err))
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	total, err := uc.store.Count(ctx, domain.SourceHistoricalBootstrap)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to count historical events: %w", err))
	}
	summary.TotalHistorical = total
	logger.Info("bootstrap complete", "total_historical_events", total)
	return summary, errors.Join(errs...)
}

func (uc *BootstrapUseCase) loadFile(ctx context.Context, logger *slog.Logger, bf source.BootstrapFile, runID string) FileSummary {
	fs := FileSummary{File: bf.Name, Type: bf.Type}
	path := filepath.Join(uc.dir, bf.Name)

	batch, err := source.ReadBootstrapFile(path, bf.Type, uc.now(), runID)
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		logger.Warn("bootstrap file not found, skipping", "file", bf.Name)
		uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceHistoricalBootstrap, "missing_input").Inc()
		fs.Missing = true
		return fs
	case err != nil:
		logger.Error("failed to read bootstrap file, skipping", "file", bf.Name, "error", err)
		uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceHistoricalBootstrap, "malformed").Inc()
		fs.Err = err
		return fs
	}

	fs.Records = len(batch.Events)
	fs.Malformed = batch.Malformed
	if batch.Malformed > 0 {
		uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceHistoricalBootstrap, "malformed").Add(float64(batch.Malformed))
	}

	res, err := uc.ingest.Ingest(ctx, domain.SourceHistoricalBootstrap, batch.Events)
	fs.Result = res
	if err != nil {
		logger.Error("failed to store bootstrap file", "file", bf.Name, "error", err)
		fs.Err = err
		return fs
	}
	logger.Info("loaded bootstrap file",
		"file", bf.Name,
		"event_type", bf.Type,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"spooled", res.Spooled,
		"malformed", batch.Malformed,
	)
	return fs
}

// LiveSummary reports one daily live load.
type LiveSummary struct {
	RunID     string
	Date      string
	Path      string
	Missing   bool
	Lines     int
	Malformed int
	MissingID int
	Replayed  IngestResult
	Result    IngestResult
	Total     int64
}

// LiveLoadUseCase loads one day of live events, replaying the spool first.
type LiveLoadUseCase struct {
	ingest  *IngestEventsUseCase
	store   domain.EventStore
	dir     string
	now     func() time.Time
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewLiveLoadUseCase creates a new LiveLoadUseCase reading partitions under dir.
func NewLiveLoadUseCase(ingest *IngestEventsUseCase, store domain.EventStore, dir string, m *metrics.PipelineMetrics, logger *slog.Logger) *LiveLoadUseCase {
	return &LiveLoadUseCase{
		ingest:  ingest,
		store:   store,
		dir:     dir,
		now:     time.Now,
		metrics: m,
		logger:  logger.With("component", "live_loader"),
	}
}

// Run loads the partition of date. A missing partition is not an error.
func (uc *LiveLoadUseCase) Run(ctx context.Context, date time.Time) (LiveSummary, error) {
	summary := LiveSummary{
		RunID: uuid.NewString(),
		Date:  date.UTC().Format("2006-01-02"),
		Path:  source.LiveEventsPath(uc.dir, date),
	}
	logger := uc.logger.With("run_id", summary.RunID, "date", summary.Date)

	replayed, err := uc.ingest.ReplaySpool(ctx)
	summary.Replayed = replayed
	if err != nil {
		logger.Warn("spool replay failed, spooled events are kept for the next run", "error", err)
	}

	batch, err := source.ReadLiveEvents(summary.Path, uc.now(), summary.RunID)
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		logger.Warn("no events file found", "expected", summary.Path)
		uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceLiveStream, "missing_input").Inc()
		summary.Missing = true
		return uc.finish(ctx, logger, summary, nil)
	case err != nil:
		return summary, err
	}

	summary.Lines = batch.Lines
	summary.Malformed = batch.Malformed
	summary.MissingID = batch.MissingID
	uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceLiveStream, "malformed").Add(float64(batch.Malformed))
	uc.metrics.RecordsSkipped.WithLabelValues(domain.SourceLiveStream, "missing_id").Add(float64(batch.MissingID))

	if len(batch.Events) == 0 {
		logger.Info("no valid events to load", "skipped", batch.Skipped())
		return uc.finish(ctx, logger, summary, nil)
	}

	res, err := uc.ingest.Ingest(ctx, domain.SourceLiveStream, batch.Events)
	summary.Result = res
	logger.Info("loaded live events",
		"inserted", res.Inserted,
		"updated", res.Updated,
		"spooled", res.Spooled,
		"skipped", batch.Skipped(),
	)
	return uc.finish(ctx, logger, summary, err)
}

func (uc *LiveLoadUseCase) finish(ctx context.Context, logger *slog.Logger, summary LiveSummary, err error) (LiveSummary, error) {
	total, cerr := uc.store.Count(ctx, "")
	if cerr != nil {
		return summary, errors.Join(err, fmt.Errorf("failed to count events: %w", cerr))
	}
	summary.Total = total
	logger.Info("total events in store", "total", total)
	return summary, err
}

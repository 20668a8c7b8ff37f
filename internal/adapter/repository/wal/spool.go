// Package wal implements the on-disk event spool: NDJSON segment files holding raw events
// the event store could not accept, replayed on a later run.
package wal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

const (
	segmentPrefix = "spool-"
	segmentSuffix = ".ndjson"
	filePerm      = 0o644
	maxLineSize   = 16 * 1024 * 1024
)

// ErrSpoolFull is returned when a write would exceed the configured disk budget.
var ErrSpoolFull = errors.New("spool max total size exceeded")

// Spool is a file-based domain.SpoolRepository. Segments are created on first write, so
// an idle spool leaves no files behind.
type Spool struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu          sync.Mutex
	current     *os.File
	currentSize int64
	totalSize   int64
	seq         int
}

// NewSpool opens the spool in dir, creating the directory when needed.
func NewSpool(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}
	s := &Spool{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "event_spool"),
	}
	total, err := s.diskUsage()
	if err != nil {
		return nil, err
	}
	s.totalSize = total
	return s, nil
}

// Write appends an event to the current segment, rotating when it is full.
func (s *Spool) Write(ctx context.Context, event domain.RawEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s for spool: %w", event.ID, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalSize+int64(len(data)) > s.maxTotalSize {
		return fmt.Errorf("%w (%d + %d > %d)", ErrSpoolFull, s.totalSize, len(data), s.maxTotalSize)
	}
	if s.current == nil || s.currentSize >= s.maxSegmentSize {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	n, err := s.current.Write(data)
	s.currentSize += int64(n)
	s.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to spool segment: %w", err)
	}
	return nil
}

// Replay hands the spooled events to handler one segment at a time, oldest first.
// Lines that cannot be decoded are logged and skipped. A handler error stops the replay;
// nothing is removed until Truncate.
func (s *Spool) Replay(ctx context.Context, handler func(events []domain.RawEvent) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCurrent()

	segments, err := s.segments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		s.logger.Debug("spool is empty, nothing to replay")
		return nil
	}
	s.logger.Info("starting spool replay", "segment_count", len(segments))

	replayed := 0
	for _, path := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := s.readSegment(path)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			continue
		}
		if err := handler(events); err != nil {
			s.logger.Error("spool replay handler failed, stopping replay", "segment", path, "error", err)
			return fmt.Errorf("replay handler failed: %w", err)
		}
		replayed += len(events)
	}

	s.logger.Info("spool replay completed", "events", replayed)
	return nil
}

// Truncate removes every segment.
func (s *Spool) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCurrent()

	segments, err := s.segments()
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range segments {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove spool segment %s: %w", path, err))
		}
	}
	total, err := s.diskUsage()
	if err != nil {
		errs = append(errs, err)
	}
	s.totalSize = total
	s.logger.Info("spool truncated", "segments", len(segments))
	return errors.Join(errs...)
}

// Size returns the bytes currently held by the spool.
func (s *Spool) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

// Close syncs and closes the open segment.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := s.current.Sync()
	if cerr := s.current.Close(); err == nil {
		err = cerr
	}
	s.current = nil
	return err
}

func (s *Spool) readSegment(path string) ([]domain.RawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer f.Close()

	var events []domain.RawEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var ev domain.RawEvent
		if err := dec.Decode(&ev); err != nil {
			s.logger.Warn("failed to decode spooled event, skipping", "segment", path, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return events, nil
}

func (s *Spool) rotate() error {
	s.closeCurrent()

	s.seq++
	name := fmt.Sprintf("%s%020d-%04d%s", segmentPrefix, time.Now().UnixNano(), s.seq, segmentSuffix)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create spool segment %s: %w", path, err)
	}
	s.current = f
	s.currentSize = 0
	s.logger.Debug("rotated to new spool segment", "path", path)
	return nil
}

func (s *Spool) closeCurrent() {
	if s.current == nil {
		return
	}
	if err := s.current.Sync(); err != nil {
		s.logger.Error("failed to sync spool segment", "error", err)
	}
	if err := s.current.Close(); err != nil {
		s.logger.Error("failed to close spool segment", "error", err)
	}
	s.current = nil
}

func (s *Spool) segments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), segmentPrefix) && strings.HasSuffix(e.Name(), segmentSuffix) {
			out = append(out, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Spool) diskUsage() (int64, error) {
	segments, err := s.segments()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("failed to stat spool segment %s: %w", path, err)
		}
		total += info.Size()
	}
	return total, nil
}

package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/resolver"
)

// LiveEventsFile is the file name of a daily live partition.
const LiveEventsFile = "events.jsonl"

// maxLineSize bounds one NDJSON line. Longer lines are skipped as malformed.
const maxLineSize = 4 * 1024 * 1024

// LiveBatch is the content of one daily live partition.
type LiveBatch struct {
	Events    []domain.RawEvent
	Lines     int
	Malformed int
	MissingID int
}

// Skipped returns the number of non-empty lines that did not produce an event.
func (b LiveBatch) Skipped() int { return b.Malformed + b.MissingID }

// LiveEventsPath returns root/YYYY-MM-DD/events.jsonl for the UTC day of date.
func LiveEventsPath(root string, date time.Time) string {
	return filepath.Join(root, date.UTC().Format("2006-01-02"), LiveEventsFile)
}

// ReadLiveEvents reads one NDJSON partition. Every line is a complete event document;
// lines that are not JSON objects and lines without an event_id are counted and
// skipped. A missing file returns domain.ErrMissingInput.
func ReadLiveEvents(path string, now time.Time, runID string) (LiveBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LiveBatch{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, path)
		}
		return LiveBatch{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var batch LiveBatch
	r := bufio.NewReaderSize(f, 64*1024)
	var buf []byte
	for {
		line, oversized, readErr := nextLine(r, buf)
		buf = line
		if readErr != nil && readErr != io.EOF {
			return batch, fmt.Errorf("failed to read %s: %w", path, readErr)
		}

		switch line = bytes.TrimSpace(line); {
		case oversized:
			batch.Lines++
			batch.Malformed++
		case len(line) > 0:
			batch.Lines++
			batch.add(line, now, runID)
		}

		if readErr == io.EOF {
			return batch, nil
		}
	}
}

func (b *LiveBatch) add(line []byte, now time.Time, runID string) {
	var doc map[string]any
	if err := decodeSingle(bytes.NewReader(line), &doc); err != nil || doc == nil {
		b.Malformed++
		return
	}
	ev, ok := liveEvent(doc, now, runID)
	if !ok {
		b.MissingID++
		return
	}
	b.Events = append(b.Events, ev)
}

// nextLine reads up to and including the next newline into buf. A line longer than
// maxLineSize is consumed to its end and returned empty with oversized set.
func nextLine(r *bufio.Reader, buf []byte) (line []byte, oversized bool, err error) {
	buf = buf[:0]
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxLineSize {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err != bufio.ErrBufferFull {
			return buf, oversized, err
		}
	}
}

// liveEvent maps a live event document onto a RawEvent. The envelope fields are taken as
// sent; a document without a payload object is its own payload.
func liveEvent(doc map[string]any, now time.Time, runID string) (domain.RawEvent, bool) {
	id, ok := resolver.ToString(doc["event_id"])
	if !ok || id == "" {
		return domain.RawEvent{}, false
	}

	payload, ok := doc["payload"].(map[string]any)
	if !ok {
		payload = doc
	}

	ev := domain.RawEvent{
		ID:         id,
		Payload:    payload,
		IngestedAt: now.UTC(),
		Source:     domain.SourceLiveStream,
		RunID:      runID,
	}
	if t, ok := resolver.ToString(doc["event_type"]); ok {
		ev.Type = domain.EventType(t)
	}
	if t, ok := resolver.ToTime(doc["event_time"]); ok {
		ev.EventTime = t
	} else {
		ev.EventTime = resolver.EventTime(payload)
	}
	if v, ok := resolver.ToString(doc["vendor"]); ok && v != "" {
		ev.Vendor = v
	} else {
		ev.Vendor = resolver.Vendor(payload)
	}
	return ev, true
}

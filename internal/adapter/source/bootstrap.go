// Package source reads the file-based event inputs: historical bootstrap dumps and daily
// live event partitions.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/resolver"
)

// BootstrapFile maps a bootstrap file name to the event type of its records.
type BootstrapFile struct {
	Name string
	Type domain.EventType
}

// BootstrapFiles is the fixed set of historical dumps, loaded in this order.
var BootstrapFiles = []BootstrapFile{
	{Name: "orders_2023.json", Type: domain.EventHistoricalOrder},
	{Name: "payments_2023.json", Type: domain.EventHistoricalPayment},
	{Name: "shipments_2023.json", Type: domain.EventHistoricalShipment},
	{Name: "refunds_2023.json", Type: domain.EventHistoricalRefund},
}

// BootstrapBatch is the content of one bootstrap file.
type BootstrapBatch struct {
	Events []domain.RawEvent
	// Malformed counts array elements that were not JSON objects.
	Malformed int
}

// ReadBootstrapFile reads a JSON array of records, or a single record object, and wraps
// every record as a raw event of eventType. A missing file returns domain.ErrMissingInput;
// a file that is not valid JSON returns domain.ErrMalformedRecord.
func ReadBootstrapFile(path string, eventType domain.EventType, now time.Time, runID string) (BootstrapBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BootstrapBatch{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, path)
		}
		return BootstrapBatch{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var doc any
	if err := decodeSingle(f, &doc); err != nil {
		return BootstrapBatch{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, path, err)
	}

	var batch BootstrapBatch
	switch v := doc.(type) {
	case []any:
		batch.Events = make([]domain.RawEvent, 0, len(v))
		for _, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				batch.Malformed++
				continue
			}
			batch.Events = append(batch.Events, WrapRecord(eventType, record, now, runID))
		}
	case map[string]any:
		batch.Events = []domain.RawEvent{WrapRecord(eventType, v, now, runID)}
	default:
		return BootstrapBatch{}, fmt.Errorf("%w: %s: expected an array or an object", domain.ErrMalformedRecord, path)
	}
	return batch, nil
}

// WrapRecord builds the stored event for a historical record. The id is derived from the
// record's natural key so re-loading a file replaces, never duplicates.
func WrapRecord(eventType domain.EventType, record map[string]any, now time.Time, runID string) domain.RawEvent {
	key := resolver.NaturalKey(eventType, record)
	return domain.RawEvent{
		ID:         resolver.EventID(eventType, key),
		Type:       eventType,
		EventTime:  resolver.EventTime(record),
		Vendor:     resolver.Vendor(record),
		Payload:    record,
		IngestedAt: now.UTC(),
		Source:     domain.SourceHistoricalBootstrap,
		RunID:      runID,
	}
}

// decodeSingle decodes exactly one JSON value from r, keeping numbers as json.Number.
func decodeSingle(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

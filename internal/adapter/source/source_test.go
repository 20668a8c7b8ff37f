package source

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/resolver"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadBootstrapFileArray(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders_2023.json", `[
		{"order_id": "ORD-1", "created_at": "2023-03-04T05:06:07Z", "vendor_id": "v1", "totalAmount": 10.5},
		{"id": 42, "order_date": "2023-03-05"},
		"not an object",
		{"totalAmount": 1}
	]`)

	batch, err := ReadBootstrapFile(path, domain.EventHistoricalOrder, now, "run-1")
	require.NoError(t, err)
	require.Len(t, batch.Events, 3)
	assert.Equal(t, 1, batch.Malformed)

	first := batch.Events[0]
	assert.Equal(t, resolver.EventID(domain.EventHistoricalOrder, "ORD-1"), first.ID)
	assert.Equal(t, domain.EventHistoricalOrder, first.Type)
	assert.Equal(t, time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC), first.EventTime)
	assert.Equal(t, "v1", first.Vendor)
	assert.Equal(t, domain.SourceHistoricalBootstrap, first.Source)
	assert.Equal(t, now, first.IngestedAt)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, json.Number("10.5"), first.Payload["totalAmount"])

	assert.Equal(t, resolver.EventID(domain.EventHistoricalOrder, "42"), batch.Events[1].ID)
	assert.Equal(t, domain.UnknownVendor, batch.Events[1].Vendor)
	assert.Equal(t, domain.DefaultEventTime, batch.Events[2].EventTime)
}

func TestReadBootstrapFileIsStableAcrossLoads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "refunds_2023.json", `{"reason": "damaged", "amount": 3}`)

	a, err := ReadBootstrapFile(path, domain.EventHistoricalRefund, now, "a")
	require.NoError(t, err)
	b, err := ReadBootstrapFile(path, domain.EventHistoricalRefund, now.Add(time.Hour), "b")
	require.NoError(t, err)

	require.Len(t, a.Events, 1)
	assert.Equal(t, a.Events[0].ID, b.Events[0].ID, "keyless records are keyed by content")
}

func TestReadBootstrapFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadBootstrapFile(filepath.Join(dir, "missing.json"), domain.EventHistoricalOrder, now, "")
	assert.True(t, errors.Is(err, domain.ErrMissingInput))

	for name, content := range map[string]string{
		"broken.json":   `[{"order_id": `,
		"scalar.json":   `17`,
		"trailing.json": `{"a": 1} {"b": 2}`,
		"empty.json":    ``,
	} {
		path := writeFile(t, dir, name, content)
		_, err := ReadBootstrapFile(path, domain.EventHistoricalOrder, now, "")
		assert.True(t, errors.Is(err, domain.ErrMalformedRecord), name)
	}
}

func TestReadLiveEvents(t *testing.T) {
	root := t.TempDir()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	path := LiveEventsPath(root, day)
	assert.Equal(t, filepath.Join(root, "2024-06-01", "events.jsonl"), path)

	writeFile(t, root, filepath.Join("2024-06-01", "events.jsonl"), `
{"event_id": "e1", "event_type": "payment_attempt", "event_time": "2024-06-01T09:00:00Z", "vendor": "acme", "payload": {"amount": 5, "status": "PAID"}}
{"event_id": "e2", "event_type": "order_created", "order_id": "ORD-7", "created_at": "2024-06-01T08:00:00Z", "seller_id": "s9"}
{not json}
{"event_type": "order_created", "payload": {}}
[1, 2]

{"event_id": "", "event_type": "order_created"}
`)

	batch, err := ReadLiveEvents(path, now, "run-2")
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, 6, batch.Lines)
	assert.Equal(t, 2, batch.Malformed)
	assert.Equal(t, 2, batch.MissingID)
	assert.Equal(t, 4, batch.Skipped())

	e1 := batch.Events[0]
	assert.Equal(t, "e1", e1.ID)
	assert.Equal(t, domain.EventPaymentAttempt, e1.Type)
	assert.Equal(t, "acme", e1.Vendor)
	assert.Equal(t, domain.SourceLiveStream, e1.Source)
	assert.Equal(t, "PAID", e1.Payload["status"])

	e2 := batch.Events[1]
	assert.Equal(t, "ORD-7", e2.Payload["order_id"], "a document without a payload object is its own payload")
	assert.Equal(t, "s9", e2.Vendor)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), e2.EventTime)
}

func TestReadLiveEventsSkipsOversizedLine(t *testing.T) {
	root := t.TempDir()
	huge := `{"event_id": "big", "payload": {"note": "` + strings.Repeat("x", maxLineSize) + `"}}`
	writeFile(t, root, filepath.Join("2024-06-01", "events.jsonl"),
		`{"event_id": "a1", "event_type": "order_created", "payload": {"order_id": "A"}}`+"\n"+
			huge+"\n"+
			`{"event_id": "a2", "event_type": "order_created", "payload": {"order_id": "B"}}`)

	batch, err := ReadLiveEvents(LiveEventsPath(root, now), now, "")
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, "a1", batch.Events[0].ID)
	assert.Equal(t, "a2", batch.Events[1].ID)
	assert.Equal(t, 3, batch.Lines)
	assert.Equal(t, 1, batch.Malformed)
}

func TestReadLiveEventsMissingPartition(t *testing.T) {
	_, err := ReadLiveEvents(LiveEventsPath(t.TempDir(), now), now, "")
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

package resolver

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

func TestNaturalKey(t *testing.T) {
	assert.Equal(t, "ORD-1", NaturalKey(domain.EventHistoricalOrder, map[string]any{"order_id": "ORD-1", "id": "x"}))
	assert.Equal(t, "x", NaturalKey(domain.EventHistoricalOrder, map[string]any{"order_id": "", "id": "x"}))
	assert.Equal(t, "77", NaturalKey(domain.EventHistoricalPayment, map[string]any{"transaction_id": float64(77)}))

	a := NaturalKey(domain.EventHistoricalRefund, map[string]any{"amount": 3.0, "reason": "damaged"})
	b := NaturalKey(domain.EventHistoricalRefund, map[string]any{"reason": "damaged", "amount": 3.0})
	assert.Equal(t, a, b, "content digest ignores key order")
	assert.Len(t, a, 32)

	unknown := NaturalKey(domain.EventOrderCreated, map[string]any{"order_id": "ORD-1"})
	assert.Len(t, unknown, 32, "types without a key map fall back to the digest")
}

func TestNaturalKeyDigestEncoding(t *testing.T) {
	simple := map[string]any{"reason": "damaged", "amount": json.Number("3")}
	assert.Equal(t, "674447f635adfd106fafa06f6eb6cfd9", NaturalKey(domain.EventHistoricalRefund, simple))

	rich := map[string]any{
		"note":   "café ✓ 😀",
		"amount": json.Number("10.50"),
		"tags":   []any{"a", nil, true},
		"nested": map[string]any{"z": json.Number("0.00001"), "a": json.Number("2.0"), "big": json.Number("1e16")},
		"q":      "say \"hi\"\n",
	}
	assert.Equal(t, "fad05de77a5e2af03473a44fb7496a91", NaturalKey(domain.EventHistoricalRefund, rich))
}

func TestCanonicalEncoding(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{map[string]any{"b": json.Number("1"), "a": "x"}, `{"a": "x", "b": 1}`},
		{[]any{json.Number("10.50"), json.Number("-0.0"), 2.0}, `[10.5, -0.0, 2.0]`},
		{json.Number("1e16"), `1e+16`},
		{json.Number("0.00001"), `1e-05`},
		{"é\u007f/<", `"\u00e9\u007f/<"`},
		{"😀", `"\ud83d\ude00"`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		writeCanonical(&buf, tc.in)
		assert.Equal(t, tc.want, buf.String())
	}
}

func TestEventIDIsStablePerTypeAndKey(t *testing.T) {
	id := EventID(domain.EventHistoricalOrder, "ORD-1")
	assert.Equal(t, id, EventID(domain.EventHistoricalOrder, "ORD-1"))
	assert.NotEqual(t, id, EventID(domain.EventHistoricalPayment, "ORD-1"))
	assert.Len(t, id, 64)
}

func TestEventTimeAndVendor(t *testing.T) {
	rec := map[string]any{
		"order_date": "2023-05-06",
		"created_at": "",
		"vendor":     "acme",
		"seller_id":  "s-1",
	}
	assert.Equal(t, time.Date(2023, 5, 6, 0, 0, 0, 0, time.UTC), EventTime(rec))
	assert.Equal(t, "acme", Vendor(rec))

	assert.Equal(t, "0", Vendor(map[string]any{"vendor_id": float64(0)}), "presence wins even for falsy ids")
	assert.Equal(t, domain.DefaultEventTime, EventTime(map[string]any{"created_at": "soon"}))
}

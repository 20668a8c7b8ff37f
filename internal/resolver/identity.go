package resolver

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

// naturalKeys lists the business identifier candidates per bootstrap event type.
var naturalKeys = map[domain.EventType]Chain{
	domain.EventHistoricalOrder:    Fields("order_id", "id"),
	domain.EventHistoricalPayment:  Fields("payment_id", "id", "transaction_id"),
	domain.EventHistoricalShipment: Fields("shipment_id", "id", "tracking_id"),
	domain.EventHistoricalRefund:   Fields("refund_id", "id"),
}

// EventTimeChain probes the common timestamp keys of a record.
var EventTimeChain = Fields("created_at", "order_date", "payment_date", "shipped_at", "refund_date", "timestamp", "date")

// VendorChain probes vendor keys; presence is enough.
var VendorChain = Chain{Present("vendor_id"), Present("vendor"), Present("seller_id"), Present("merchant_id")}

// NaturalKey returns the best business identifier of a record. Records without one are
// keyed by a digest of their canonical JSON encoding, so identical content collapses.
func NaturalKey(eventType domain.EventType, record map[string]any) string {
	if v, _, ok := naturalKeys[eventType].Resolve(record); ok {
		if s, ok := ToString(v); ok {
			return s
		}
	}
	var buf bytes.Buffer
	writeCanonical(&buf, record)
	sum := md5.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// writeCanonical encodes v with sorted keys, ", " and ": " separators, non-ASCII
// escaped as \uXXXX and non-integer numbers in shortest round-trip form. Digests of
// keyless records already in the store were computed over this encoding.
func writeCanonical(buf *bytes.Buffer, v any) {
	switch v := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		writeCanonicalString(buf, v)
	case json.Number:
		writeCanonicalNumber(buf, string(v))
	case float64:
		buf.WriteString(canonicalFloat(v))
	case int:
		buf.WriteString(strconv.Itoa(v))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeCanonicalString(buf, k)
			buf.WriteString(": ")
			writeCanonical(buf, v[k])
		}
		buf.WriteByte('}')
	default:
		writeCanonicalString(buf, fmt.Sprint(v))
	}
}

func writeCanonicalNumber(buf *bytes.Buffer, n string) {
	if !strings.ContainsAny(n, ".eE") {
		buf.WriteString(n)
		return
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		buf.WriteString(n)
		return
	}
	buf.WriteString(canonicalFloat(f))
}

// canonicalFloat renders f in shortest round-trip form, in exponent notation outside
// 1e-4 <= |f| < 1e16 and with a trailing ".0" for integral values.
func canonicalFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r < 0x20 || (r > 0x7e && r <= 0xffff):
			fmt.Fprintf(buf, `\u%04x`, r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(buf, `\u%04x\u%04x`, r1, r2)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// EventID derives the stable event id for a (type, natural key) pair.
func EventID(eventType domain.EventType, naturalKey string) string {
	sum := sha256.Sum256([]byte(string(eventType) + ":" + naturalKey))
	return hex.EncodeToString(sum[:])
}

// EventTime extracts the record timestamp, falling back to domain.DefaultEventTime.
func EventTime(record map[string]any) time.Time {
	v, _, ok := EventTimeChain.Resolve(record)
	if !ok {
		return domain.DefaultEventTime
	}
	t, ok := ToTime(v)
	if !ok {
		return domain.DefaultEventTime
	}
	return t
}

// Vendor extracts the vendor tag of a record, falling back to domain.UnknownVendor.
func Vendor(record map[string]any) string {
	v, _, ok := VendorChain.Resolve(record)
	if !ok {
		return domain.UnknownVendor
	}
	s, ok := ToString(v)
	if !ok || s == "" {
		return domain.UnknownVendor
	}
	return s
}

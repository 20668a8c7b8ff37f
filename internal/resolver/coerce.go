package resolver

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayouts are tried in order when a timestamp arrives as a string. Values without
// a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ToString renders a payload value as a string identifier. Integral numbers are
// rendered without a fractional part so 42 and "42" join.
func ToString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		return t.String(), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return fmt.Sprint(t), true
	}
}

// ToAmount coerces a payload value to a non-negative decimal. Missing, non-numeric and
// negative values yield zero with ok=false.
func ToAmount(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	default:
		return decimal.Zero, false
	}
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// ToTime coerces a payload value to a UTC timestamp. Strings are matched against the
// known layouts; numbers are unix seconds, or milliseconds when too large for seconds.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(f)
		}
		return time.Time{}, false
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f)
	case float64:
		return fromUnix(t)
	case int:
		return fromUnix(float64(t))
	case int64:
		return fromUnix(float64(t))
	case time.Time:
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

func fromUnix(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, false
	}
	switch {
	case f < 1e11:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case f < 1e14:
		return time.UnixMilli(int64(f)).UTC(), true
	default:
		return time.Unix(0, int64(f)).UTC(), true
	}
}

// String resolves an identifier or label. Unresolvable values are null.
func (r Rules) String(entity Entity, field string, payload map[string]any) sql.NullString {
	v, ok := r.Resolve(entity, field, payload)
	if !ok {
		return sql.NullString{}
	}
	s, ok := ToString(v)
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Amount resolves a money field. defaulted reports that zero was substituted.
func (r Rules) Amount(entity Entity, field string, payload map[string]any) (amount decimal.Decimal, defaulted bool) {
	v, ok := r.Resolve(entity, field, payload)
	if !ok {
		return decimal.Zero, true
	}
	d, ok := ToAmount(v)
	return d, !ok
}

// Time resolves a timestamp field. unparsable reports a value that was present but
// could not be read; a missing value is null without being unparsable.
func (r Rules) Time(entity Entity, field string, payload map[string]any) (ts sql.NullTime, unparsable bool) {
	v, ok := r.Resolve(entity, field, payload)
	if !ok {
		return sql.NullTime{}, false
	}
	t, ok := ToTime(v)
	if !ok {
		return sql.NullTime{}, true
	}
	return sql.NullTime{Time: t, Valid: true}, false
}

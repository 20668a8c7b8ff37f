// Package resolver maps vendor-shaped payloads onto canonical fields.
//
// Every canonical field is resolved by a Chain: an ordered list of named, pure
// extractors executed in declared priority order. The first extractor that yields a
// non-empty value wins. Reordering a chain changes output silently, so chains are
// declared once in rules.go and covered by tests.
package resolver

import (
	"encoding/json"
	"strconv"
)

// Extractor pulls an optional value out of a payload.
type Extractor struct {
	Name    string
	Extract func(payload map[string]any) (any, bool)
}

// Field returns an extractor reading a top-level key. Empty values are treated as absent.
func Field(name string) Extractor {
	return Extractor{
		Name: name,
		Extract: func(payload map[string]any) (any, bool) {
			v, ok := payload[name]
			if !ok || !Truthy(v) {
				return nil, false
			}
			return v, true
		},
	}
}

// Present returns an extractor reading a top-level key that only has to exist and be non-null.
// Falsy values such as "" or 0 are accepted.
func Present(name string) Extractor {
	return Extractor{
		Name: name,
		Extract: func(payload map[string]any) (any, bool) {
			v, ok := payload[name]
			if !ok || v == nil {
				return nil, false
			}
			return v, true
		},
	}
}

// Chain is an ordered fallback list of extractors.
type Chain []Extractor

// Fields builds a chain of Field extractors in the given order.
func Fields(names ...string) Chain {
	c := make(Chain, len(names))
	for i, n := range names {
		c[i] = Field(n)
	}
	return c
}

// Resolve runs the extractors in order and returns the first value found together with
// the name of the extractor that produced it.
func (c Chain) Resolve(payload map[string]any) (any, string, bool) {
	if payload == nil {
		return nil, "", false
	}
	for _, e := range c {
		if v, ok := e.Extract(payload); ok {
			return v, e.Name, true
		}
	}
	return nil, "", false
}

// Names lists the extractor names in probing order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

// Truthy reports whether v counts as a present value: not nil, not an empty string,
// not zero, not false and not an empty collection.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t != ""
		}
		return f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

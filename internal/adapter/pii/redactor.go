package pii

import (
	"log/slog"
	"sort"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive keys in raw event payloads before they are stored.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given keys. Keys in protected are read by
// normalization and are never redacted; they are dropped from the set with a warning.
func NewRedactor(fields []string, protected map[string]struct{}, logger *slog.Logger) *Redactor {
	logger = logger.With("component", "pii_redactor")
	fieldSet := make(map[string]struct{}, len(fields))
	var skipped []string
	for _, field := range fields {
		if field == "" {
			continue
		}
		if _, ok := protected[field]; ok {
			skipped = append(skipped, field)
			continue
		}
		fieldSet[field] = struct{}{}
	}
	if len(skipped) > 0 {
		sort.Strings(skipped)
		logger.Warn("ignoring redaction fields used by normalization", "fields", skipped)
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact returns a copy of payload with sensitive keys replaced at any depth, and the
// number of values replaced. The input map is not modified.
func (r *Redactor) Redact(payload map[string]any) (map[string]any, int) {
	if len(r.fieldsToRedact) == 0 || len(payload) == 0 {
		return payload, 0
	}
	return r.redactMap(payload)
}

func (r *Redactor) redactMap(in map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(in))
	total := 0
	for k, v := range in {
		if _, ok := r.fieldsToRedact[k]; ok && v != nil {
			out[k] = RedactedPlaceholder
			total++
			continue
		}
		var n int
		out[k], n = r.redactValue(v)
		total += n
	}
	return out, total
}

func (r *Redactor) redactValue(v any) (any, int) {
	switch t := v.(type) {
	case map[string]any:
		return r.redactMap(t)
	case []any:
		out := make([]any, len(t))
		total := 0
		for i, item := range t {
			var n int
			out[i], n = r.redactValue(item)
			total += n
		}
		return out, total
	default:
		return v, 0
	}
}

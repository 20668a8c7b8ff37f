package domain

import "time"

// Field is one key-value pair of a flat report summary.
type Field struct {
	Key   string
	Value string
}

// Report is a named summary: ordered flat fields for tabular export and
// pre-rendered text lines for human consumption.
type Report struct {
	Name        string
	GeneratedAt time.Time
	Fields      []Field
	Lines       []string
}

// Day returns the report date key (YYYY-MM-DD, UTC).
func (r Report) Day() string {
	return r.GeneratedAt.UTC().Format("2006-01-02")
}

package domain

import "errors"

var (
	// ErrMissingInput marks an expected file or partition that does not exist.
	ErrMissingInput = errors.New("missing input")

	// ErrMalformedRecord marks a record or file that could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSchemaMismatch is returned by sinks when a table does not match its registered schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

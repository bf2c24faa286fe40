package journal

import "errors"

var (
	// ErrSchemaMismatch indicates the journal schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("journal schema version mismatch")
	// ErrDisabled is returned by Open when the journal is turned off in config.
	ErrDisabled = errors.New("journal disabled")
)

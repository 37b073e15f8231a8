package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNoPersisted  = errors.New("no persisted catalog")
	ErrSuperseded   = errors.New("superseded by a newer ingest")
	ErrCursorClosed = errors.New("cursor closed")
	ErrInvalidView  = errors.New("invalid view")
)

package model

import "github.com/rotisserie/eris"

// Sentinel errors shared across the store, ledger, and transport layers.
// Wrap with eris to add context; check with errors.Is.
var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = eris.New("not found")

	// ErrValidation indicates malformed input: bad ZIP format, out-of-range
	// coordinates, or a strike outside the continental bounding box.
	ErrValidation = eris.New("validation failed")
)

package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidLimit = errors.New("invalid readings limit")
	ErrClosed       = errors.New("store closed")
	ErrNilDB        = errors.New("nil database handle")
)

package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrClosed    = errors.New("queue closed")
	ErrFull      = errors.New("queue full")
	ErrCancelled = errors.New("enqueue cancelled")
)

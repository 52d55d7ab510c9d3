package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("ingest queue full")
	ErrEmptyBatchID = errors.New("empty batch id")
)

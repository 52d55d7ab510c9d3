package filter

import "errors"

// Sentinel kinds for filter errors.
var (
	ErrShutdown     = errors.New("filter shut down")
	ErrNilSink      = errors.New("filter sink is nil")
	ErrNilCategory  = errors.New("filter category is nil")
	ErrUnknownItem  = errors.New("unknown configuration item")
	ErrInvalidValue = errors.New("invalid configuration value")
)

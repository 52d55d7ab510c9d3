package loadtest

import "time"

const (
	// WorkerChannelMultiplier sizes the submit channel relative to workers.
	WorkerChannelMultiplier = 2
	// PercentageMultiplier converts ratios to percentages.
	PercentageMultiplier = 100

	settlePollInterval   = 100 * time.Millisecond
	backpressureBackoff  = 10 * time.Millisecond
	maxBackpressureTries = 50
	defaultVerifyLimit   = 1000
)

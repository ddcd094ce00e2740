package runlog

import "time"

const (
	// BatchFlushThreshold is the number of records that triggers an immediate flush.
	BatchFlushThreshold = 100

	// CleanupInterval is how often expired records are deleted.
	CleanupInterval = 1 * time.Hour
)

package constants

import "time"

const (
	// DefaultOutputSizeLimit caps captured command output. 1MB
	DefaultOutputSizeLimit = 1024 * 1024

	// DefaultCommandTimeout bounds a single command execution.
	DefaultCommandTimeout = 60 * time.Second

	// DefaultConcurrency is the worker count when the caller does not set one.
	DefaultConcurrency = 5

	// DefaultBatchSize chunks very large inventories in batched mode.
	DefaultBatchSize = 20

	// DefaultOutputFormat selects the report formatter when none is configured.
	DefaultOutputFormat = "csv"
)

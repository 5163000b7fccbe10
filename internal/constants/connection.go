package constants

import "time"

const (
	// DefaultConnectTimeout specifies the timeout for establishing a device connection.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultMaxConnectAttempts limits how many times one device connection is attempted.
	DefaultMaxConnectAttempts = 3

	// DefaultRetryDelay is the base delay between connect attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff between connect attempts.
	DefaultMaxRetryDelay = 60 * time.Second
)

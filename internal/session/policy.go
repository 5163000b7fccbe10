package session

import (
	"time"

	"github.com/netsweep/netsweep/internal/constants"
	"github.com/netsweep/netsweep/internal/transport"
)

// ConnectionPolicy controls how a device session establishes and uses its
// connection. The zero value is usable; unset fields fall back to the
// package defaults when the session is created.
type ConnectionPolicy struct {
	// Connect behavior
	ConnectTimeout time.Duration // Timeout for one connect attempt.
	MaxAttempts    int           // Total connect attempts, including the first.
	RetryDelay     time.Duration // Base delay between attempts; grows exponentially.
	MaxRetryDelay  time.Duration // Cap on the backoff delay.
	RetryOnError   bool          // Retry connect failures that are neither auth nor timeout.

	// Command execution
	CommandTimeout  time.Duration // Default per-command timeout when the command has none.
	OutputSizeLimit int           // Cap on captured output per command.

	// Optional session features
	TranscriptDir  string // When set, transports write per-device session transcripts here.
	KnownHostsFile string // When set, host keys are verified against this file.
	EnableSecret   string // When set, the session enters privileged mode after connect.
}

// withDefaults fills unset policy fields with the package defaults.
func (p ConnectionPolicy) withDefaults() ConnectionPolicy {
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = constants.DefaultMaxConnectAttempts
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = constants.DefaultRetryDelay
	}
	if p.MaxRetryDelay == 0 {
		p.MaxRetryDelay = constants.DefaultMaxRetryDelay
	}
	if p.CommandTimeout == 0 {
		p.CommandTimeout = constants.DefaultCommandTimeout
	}
	if p.OutputSizeLimit == 0 {
		p.OutputSizeLimit = constants.DefaultOutputSizeLimit
	}
	return p
}

// dialOptions maps the connection-level subset of the policy onto the
// transport contract.
func (p ConnectionPolicy) dialOptions() transport.DialOptions {
	return transport.DialOptions{
		ConnectTimeout: p.ConnectTimeout,
		TranscriptDir:  p.TranscriptDir,
		KnownHostsFile: p.KnownHostsFile,
	}
}

package models

import "time"

// ExecutionStatus is the lifecycle state of one command execution. Pending
// and Running are observer-only states; every result returned by the engine
// carries one of the terminal statuses.
type ExecutionStatus string

const (
	StatusPending     ExecutionStatus = "pending"
	StatusRunning     ExecutionStatus = "running"
	StatusSuccess     ExecutionStatus = "success"
	StatusAuthFailed  ExecutionStatus = "auth_failed"
	StatusConnTimeout ExecutionStatus = "connection_timeout"
	StatusCmdTimeout  ExecutionStatus = "command_timeout"
	StatusFailed      ExecutionStatus = "failed"
)

// Terminal reports whether the status is a final outcome.
func (s ExecutionStatus) Terminal() bool {
	return s != StatusPending && s != StatusRunning
}

// Failure reports whether the status is a terminal failure.
func (s ExecutionStatus) Failure() bool {
	return s.Terminal() && s != StatusSuccess
}

// ExecutionResult records the outcome of running one Command against one
// Device. Results are created only by the engine during a batch; once
// returned they are finished records and are never mutated.
type ExecutionResult struct {
	Device  Device          `json:"device"`
	Command Command         `json:"command"`
	Status  ExecutionStatus `json:"status"`
	Output  string          `json:"output"`          // Captured command output; empty on failure.
	Error   string          `json:"error,omitempty"` // Failure description; empty on success.

	Timestamp  time.Time     `json:"timestamp"`   // When the result was captured.
	Duration   time.Duration `json:"duration"`    // Wall-clock execution time.
	RetryCount int           `json:"retry_count"` // Connect attempts before this result, minus one.
}

// Succeeded reports whether the command completed successfully.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// SuccessResult builds the record for a completed command.
func SuccessResult(device Device, command Command, output string, duration time.Duration, retryCount int) ExecutionResult {
	return ExecutionResult{
		Device:     device,
		Command:    command,
		Status:     StatusSuccess,
		Output:     output,
		Timestamp:  time.Now().UTC(),
		Duration:   duration,
		RetryCount: retryCount,
	}
}

// FailureResult builds the record for a command that did not complete,
// including commands that never ran because the connection could not be
// established.
func FailureResult(device Device, command Command, status ExecutionStatus, errText string, duration time.Duration, retryCount int) ExecutionResult {
	return ExecutionResult{
		Device:     device,
		Command:    command,
		Status:     status,
		Error:      errText,
		Timestamp:  time.Now().UTC(),
		Duration:   duration,
		RetryCount: retryCount,
	}
}

package executor

import (
	"time"

	"github.com/netsweep/netsweep/internal/models"
)

// ExecutionStats aggregates counts and timing for one batch. It is mutated
// only by the runner, under the runner's lock; observers receive value
// copies and the final stats are returned by value.
type ExecutionStats struct {
	BatchID string `json:"batch_id"`

	// Device counters
	TotalDevices      int `json:"total_devices"`
	CompletedDevices  int `json:"completed_devices"`
	SuccessfulDevices int `json:"successful_devices"`
	FailedDevices     int `json:"failed_devices"`

	// Command counters
	TotalCommands      int `json:"total_commands"`
	SuccessfulCommands int `json:"successful_commands"`
	FailedCommands     int `json:"failed_commands"`

	// Timing
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Start initializes the totals and records the start time. TotalCommands is
// the full batch workload: one execution per device per command.
func (s *ExecutionStats) Start(deviceCount, commandCount int) {
	s.TotalDevices = deviceCount
	s.TotalCommands = deviceCount * commandCount
	s.StartTime = time.Now().UTC()
}

// RecordDeviceResults folds one completed device into the counters. A device
// counts as successful only when every one of its command results succeeded.
func (s *ExecutionStats) RecordDeviceResults(results []models.ExecutionResult) {
	s.CompletedDevices++

	deviceOK := true
	for _, result := range results {
		if result.Succeeded() {
			s.SuccessfulCommands++
		} else {
			s.FailedCommands++
			deviceOK = false
		}
	}

	if deviceOK {
		s.SuccessfulDevices++
	} else {
		s.FailedDevices++
	}
}

// Finish records the end time.
func (s *ExecutionStats) Finish() {
	s.EndTime = time.Now().UTC()
}

// Duration is the elapsed time from start to finish, or to now while the
// batch is still running. Zero before Start.
func (s ExecutionStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// ProgressPercentage is the share of devices completed so far, 0 when the
// batch has no devices.
func (s ExecutionStats) ProgressPercentage() float64 {
	if s.TotalDevices == 0 {
		return 0
	}
	return float64(s.CompletedDevices) / float64(s.TotalDevices) * 100
}

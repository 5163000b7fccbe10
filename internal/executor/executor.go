// Package executor fans device work out across a bounded worker pool and
// merges per-device results into one flat collection with aggregated
// statistics. Per-device failures are recovered into results; only API
// misuse surfaces as an error.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/session"
	"github.com/netsweep/netsweep/internal/transport"
	"github.com/netsweep/netsweep/internal/utils"
	"github.com/rs/zerolog"
)

// ProgressFunc observes batch progress. It is invoked exactly once per
// completed device, synchronously from the worker that finished it, with a
// statistics snapshot, the device, and that device's results. Invocations
// are serialized; a slow observer delays the pool.
type ProgressFunc func(stats ExecutionStats, device models.Device, results []models.ExecutionResult)

// Options carries the per-batch execution parameters.
type Options struct {
	MaxConcurrency int                      // Upper bound on simultaneously executing devices. Must be >= 1.
	Policy         session.ConnectionPolicy // Connection policy applied to every device session.
	Progress       ProgressFunc             // Optional per-device completion observer.
}

// Runner executes command batches against device fleets. A Runner holds no
// per-batch state: it is safe to run independent batches concurrently from
// the same Runner.
type Runner struct {
	// Dependencies
	dialer transport.Dialer
	logger zerolog.Logger
}

// NewRunner creates a Runner using the given transport dialer.
func NewRunner(dialer transport.Dialer, logger zerolog.Logger) *Runner {
	return &Runner{
		dialer: dialer,
		logger: logger,
	}
}

// Run executes every command on every device under bounded concurrency and
// returns one result per device-command pair: exactly len(devices) *
// len(commands) entries, regardless of how many devices fail. Results are
// merged in completion order; within one device they follow the command
// order. The returned error is non-nil only for invalid arguments.
func (r *Runner) Run(ctx context.Context, devices []models.Device, commands []models.Command, opts Options) ([]models.ExecutionResult, ExecutionStats, error) {
	if err := validateBatch(devices, commands, opts); err != nil {
		return nil, ExecutionStats{}, err
	}

	stats := ExecutionStats{BatchID: uuid.New().String()}
	stats.Start(len(devices), len(commands))
	results := make([]models.ExecutionResult, 0, len(devices)*len(commands))
	tracker := NewTracker(devices)

	r.logger.Info().
		Str("batch_id", stats.BatchID).
		Int("devices", len(devices)).
		Int("commands", len(commands)).
		Int("concurrency", min(opts.MaxConcurrency, len(devices))).
		Msg("Starting batch execution")

	r.runInto(ctx, devices, commands, opts, &results, &stats, tracker)

	stats.Finish()
	r.logSummary(stats, tracker)
	return results, stats, nil
}

// RunBatches processes the device list in fixed-size chunks, bounding
// resource usage for very large inventories. Statistics accumulate across
// chunks into a single batch aggregate. Functionally identical to calling
// Run over each chunk with shared statistics.
func (r *Runner) RunBatches(ctx context.Context, devices []models.Device, commands []models.Command, batchSize int, opts Options) ([]models.ExecutionResult, ExecutionStats, error) {
	if err := validateBatch(devices, commands, opts); err != nil {
		return nil, ExecutionStats{}, err
	}
	if batchSize < 1 {
		return nil, ExecutionStats{}, fmt.Errorf("batch size must be at least 1, got %d", batchSize)
	}

	stats := ExecutionStats{BatchID: uuid.New().String()}
	stats.Start(len(devices), len(commands))
	results := make([]models.ExecutionResult, 0, len(devices)*len(commands))
	tracker := NewTracker(devices)

	chunks := utils.Chunk(devices, batchSize)
	r.logger.Info().
		Str("batch_id", stats.BatchID).
		Int("devices", len(devices)).
		Int("commands", len(commands)).
		Int("chunks", len(chunks)).
		Int("chunk_size", batchSize).
		Msg("Starting chunked batch execution")

	for i, chunk := range chunks {
		r.logger.Debug().Int("chunk", i+1).Int("chunk_devices", len(chunk)).Msg("Processing device chunk")
		r.runInto(ctx, chunk, commands, opts, &results, &stats, tracker)
	}

	stats.Finish()
	r.logSummary(stats, tracker)
	return results, stats, nil
}

// runInto schedules one unit of work per device onto a bounded pool and
// folds completions into the shared result slice and statistics. It returns
// once every device in the slice has completed.
func (r *Runner) runInto(ctx context.Context, devices []models.Device, commands []models.Command, opts Options, results *[]models.ExecutionResult, stats *ExecutionStats, tracker *Tracker) {
	poolSize := min(opts.MaxConcurrency, len(devices))
	pool := utils.NewWorkerPool(poolSize, len(devices))

	var mu sync.Mutex
	for _, device := range devices {
		pool.Submit(func() {
			deviceResults := r.executeDevice(ctx, device, commands, opts.Policy, tracker)

			deviceOK := true
			for _, result := range deviceResults {
				if !result.Succeeded() {
					deviceOK = false
					break
				}
			}
			tracker.MarkCompleted(device, deviceOK)

			mu.Lock()
			*results = append(*results, deviceResults...)
			stats.RecordDeviceResults(deviceResults)
			snapshot := *stats
			if opts.Progress != nil {
				opts.Progress(snapshot, device, deviceResults)
			}
			mu.Unlock()

			r.logger.Debug().
				Str("hostname", device.Hostname).
				Bool("success", deviceOK).
				Int("running", tracker.Running()).
				Str("progress", fmt.Sprintf("%.1f%%", snapshot.ProgressPercentage())).
				Msg("Device completed")
		})
	}

	pool.Shutdown()
}

// executeDevice is the per-device unit of work: connect, run the full
// command sequence, disconnect. Any escaping failure, including a panic, is
// converted into one synthetic failure result per command so a single
// device can never abort the batch or shrink the result collection.
func (r *Runner) executeDevice(ctx context.Context, device models.Device, commands []models.Command, policy session.ConnectionPolicy, tracker *Tracker) (out []models.ExecutionResult) {
	tracker.MarkRunning(device)
	sess := session.New(device, policy, r.dialer, r.logger)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("hostname", device.Hostname).
				Interface("panic", rec).
				Msg("Recovered from panic in device unit of work")
			if len(out) != len(commands) {
				out = session.SyntheticFailures(device, commands, fmt.Errorf("panic during device execution: %v", rec))
			}
		}
	}()
	defer sess.Disconnect()

	if err := sess.Connect(ctx); err != nil {
		return session.SyntheticFailures(device, commands, err)
	}

	results, err := sess.ExecuteSequence(ctx, commands)
	if err != nil {
		return session.SyntheticFailures(device, commands, err)
	}
	return results
}

// logSummary emits the end-of-batch accounting line.
func (r *Runner) logSummary(stats ExecutionStats, tracker *Tracker) {
	r.logger.Info().
		Str("batch_id", stats.BatchID).
		Int("successful_devices", stats.SuccessfulDevices).
		Int("failed_devices", stats.FailedDevices).
		Int("successful_commands", stats.SuccessfulCommands).
		Int("failed_commands", stats.FailedCommands).
		Dur("duration", stats.Duration()).
		Strs("failed_hosts", tracker.FailedHosts()).
		Msg("Batch finished")
}

// validateBatch rejects API misuse before any work is scheduled.
func validateBatch(devices []models.Device, commands []models.Command, opts Options) error {
	if opts.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", opts.MaxConcurrency)
	}
	if len(devices) == 0 {
		return fmt.Errorf("device list must not be empty")
	}
	if len(commands) == 0 {
		return fmt.Errorf("command list must not be empty")
	}
	return nil
}

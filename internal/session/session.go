// Package session implements the per-device connection lifecycle: connect
// with retry, ordered command execution on the established connection, and
// best-effort teardown. One session owns exactly one connection to one
// device and is never shared across workers.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/transport"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle state of a device session.
type State string

const (
	// StateDisconnected is the initial state and the state after teardown.
	StateDisconnected State = "disconnected"
	// StateConnected means the transport is established and commands can run.
	StateConnected State = "connected"
	// StateBroken means the transport died mid-sequence; remaining commands
	// fail without reconnection. Behaves as disconnected for execution.
	StateBroken State = "broken"
)

// ConnectError reports that a session could not establish its connection.
// It carries enough detail for the caller to synthesize per-command failure
// results for the device.
type ConnectError struct {
	Hostname string
	Attempts int
	Status   models.ExecutionStatus // Classification for synthesized results.
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s after %d attempt(s): %v", e.Hostname, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// DeviceSession manages one connection to one device and executes command
// sequences against it. Sessions are single-owner: all methods must be
// called from the worker that created the session.
type DeviceSession struct {
	// Configuration
	device models.Device
	policy ConnectionPolicy

	// Dependencies
	dialer transport.Dialer
	logger zerolog.Logger

	// Internal state
	state     State
	conn      transport.Conn
	attempts  int
	elevated  bool
	brokenErr error
}

// New creates a session for the given device. Unset policy fields take the
// package defaults. The device is expected to be normalized already.
func New(device models.Device, policy ConnectionPolicy, dialer transport.Dialer, logger zerolog.Logger) *DeviceSession {
	return &DeviceSession{
		device: device,
		policy: policy.withDefaults(),
		dialer: dialer,
		logger: logger.With().Str("hostname", device.Hostname).Logger(),
		state:  StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (s *DeviceSession) State() State {
	return s.state
}

// Attempts returns how many connect attempts the session has made.
func (s *DeviceSession) Attempts() int {
	return s.attempts
}

// RetryCount returns the number of failed connect attempts that preceded
// the established connection. It is stamped onto every result the session
// produces.
func (s *DeviceSession) RetryCount() int {
	if s.attempts == 0 {
		return 0
	}
	return s.attempts - 1
}

// Connect establishes the transport to the device. Timeout and transport
// failures are retried up to the policy's attempt limit with exponential
// backoff and jitter between attempts. Authentication rejections are never
// retried. Other failures retry only when the policy opts in. On failure the
// session stays disconnected and a *ConnectError is returned.
func (s *DeviceSession) Connect(ctx context.Context) error {
	if s.state == StateConnected {
		return fmt.Errorf("session for %s is already connected", s.device.Hostname)
	}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		s.attempts = attempt

		conn, err := s.dialer.Dial(ctx, s.device, s.policy.dialOptions())
		if err == nil {
			s.conn = conn
			s.state = StateConnected
			s.logger.Info().Int("attempt", attempt).Msg("Connected to device")
			s.enterEnableMode(ctx)
			return nil
		}
		lastErr = err

		if transport.IsAuthError(err) {
			s.logger.Error().Err(err).Int("attempt", attempt).Msg("Authentication rejected, not retrying")
			return s.connectError(err)
		}
		if !transport.IsTimeout(err) && !s.policy.RetryOnError {
			s.logger.Error().Err(err).Int("attempt", attempt).Msg("Connect failed with non-retryable error")
			return s.connectError(err)
		}
		if attempt == s.policy.MaxAttempts {
			break
		}

		delay := s.policy.RetryDelay * time.Duration(1<<uint(attempt-1))
		if delay > s.policy.MaxRetryDelay {
			delay = s.policy.MaxRetryDelay
		}
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))

		s.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", s.policy.MaxAttempts).
			Dur("retry_in", delay).
			Msg("Connect failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.logger.Warn().Msg("Connect cancelled during retry delay")
			return s.connectError(ctx.Err())
		}
	}

	s.logger.Error().Err(lastErr).Int("attempts", s.attempts).Msg("Exhausted connect attempts")
	return s.connectError(lastErr)
}

// connectError classifies the cause, resets the session to disconnected and
// builds the typed error returned to the orchestrator.
func (s *DeviceSession) connectError(cause error) error {
	s.state = StateDisconnected
	return &ConnectError{
		Hostname: s.device.Hostname,
		Attempts: s.attempts,
		Status:   classifyConnectFailure(cause),
		Err:      cause,
	}
}

func classifyConnectFailure(err error) models.ExecutionStatus {
	switch {
	case transport.IsAuthError(err):
		return models.StatusAuthFailed
	case transport.IsTimeout(err):
		return models.StatusConnTimeout
	default:
		return models.StatusFailed
	}
}

// enterEnableMode performs the optional privileged-mode step after connect.
// Failures are logged and the device continues unprivileged; a transport
// without the capability is skipped silently.
func (s *DeviceSession) enterEnableMode(ctx context.Context) {
	if s.policy.EnableSecret == "" {
		return
	}

	elevator, ok := s.conn.(transport.Elevator)
	if !ok {
		s.logger.Debug().Msg("Transport does not support privileged mode, skipping")
		return
	}

	if err := elevator.Elevate(ctx, s.policy.EnableSecret); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to enter privileged mode, continuing unprivileged")
		return
	}

	s.elevated = true
	s.logger.Debug().Msg("Entered privileged mode")
}

// ExecuteSequence runs the commands in order on the established connection
// and returns one result per command. A command failure does not stop the
// sequence; a dead transport marks the session broken and fails every
// remaining command with the transport cause. Calling before Connect is an
// error.
func (s *DeviceSession) ExecuteSequence(ctx context.Context, commands []models.Command) ([]models.ExecutionResult, error) {
	if s.state != StateConnected {
		return nil, fmt.Errorf("session for %s is %s, connect first", s.device.Hostname, s.state)
	}

	results := make([]models.ExecutionResult, 0, len(commands))
	for _, cmd := range commands {
		results = append(results, s.executeOne(ctx, cmd))
	}
	return results, nil
}

// executeOne runs a single command and classifies its outcome.
func (s *DeviceSession) executeOne(ctx context.Context, cmd models.Command) models.ExecutionResult {
	if s.state == StateBroken {
		return models.FailureResult(s.device, cmd, models.StatusFailed,
			fmt.Sprintf("connection lost: %v", s.brokenErr), 0, s.RetryCount())
	}
	if err := ctx.Err(); err != nil {
		return models.FailureResult(s.device, cmd, models.StatusFailed,
			fmt.Sprintf("batch cancelled: %v", err), 0, s.RetryCount())
	}

	if cmd.RequiresEnable && !s.elevated {
		s.logger.Warn().Str("command", cmd.Text).Msg("Command requires privileged mode but session is unprivileged")
	}

	timeout := cmd.Timeout(s.policy.CommandTimeout)
	s.logger.Debug().Str("command", cmd.Text).Dur("timeout", timeout).Msg("Executing command")

	start := time.Now()
	output, err := s.conn.Run(ctx, cmd, timeout)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		if len(output) > s.policy.OutputSizeLimit {
			output = output[:s.policy.OutputSizeLimit] + "... (truncated)"
			s.logger.Warn().Str("command", cmd.Text).Int("limit", s.policy.OutputSizeLimit).Msg("Command output truncated due to size limit")
		}
		s.logger.Debug().Str("command", cmd.Text).Dur("elapsed", elapsed).Msg("Command succeeded")
		return models.SuccessResult(s.device, cmd, output, elapsed, s.RetryCount())

	case transport.IsTimeout(err):
		s.logger.Warn().Err(err).Str("command", cmd.Text).Msg("Command timed out")
		return models.FailureResult(s.device, cmd, models.StatusCmdTimeout, err.Error(), elapsed, s.RetryCount())

	case transport.IsFatal(err):
		s.state = StateBroken
		s.brokenErr = err
		s.logger.Error().Err(err).Str("command", cmd.Text).Msg("Transport lost during command execution")
		return models.FailureResult(s.device, cmd, models.StatusFailed, err.Error(), elapsed, s.RetryCount())

	default:
		s.logger.Warn().Err(err).Str("command", cmd.Text).Msg("Command failed")
		return models.FailureResult(s.device, cmd, models.StatusFailed, err.Error(), elapsed, s.RetryCount())
	}
}

// Disconnect closes the connection. Teardown is best-effort: failures are
// logged and swallowed because the caller already holds its results.
func (s *DeviceSession) Disconnect() {
	if s.conn == nil {
		s.state = StateDisconnected
		return
	}

	if err := s.conn.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close connection")
	} else {
		s.logger.Debug().Msg("Disconnected from device")
	}
	s.conn = nil
	s.state = StateDisconnected
}

// SyntheticFailures builds one failure result per command for a device whose
// session could not be established. The status and retry count are taken
// from the *ConnectError when err is one; any other error maps to a generic
// execution failure.
func SyntheticFailures(device models.Device, commands []models.Command, err error) []models.ExecutionResult {
	status := models.StatusFailed
	retries := 0
	msg := "unexpected failure"
	if err != nil {
		msg = err.Error()
	}

	var connErr *ConnectError
	if errors.As(err, &connErr) {
		status = connErr.Status
		if connErr.Attempts > 0 {
			retries = connErr.Attempts - 1
		}
	}

	results := make([]models.ExecutionResult, 0, len(commands))
	for _, cmd := range commands {
		results = append(results, models.FailureResult(device, cmd, status, msg, 0, retries))
	}
	return results
}

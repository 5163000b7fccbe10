// Package transport defines the narrow contract between the execution engine
// and the underlying device connection library. The engine depends only on
// this interface and its error categories; the production implementation
// lives in pkg/sshclient.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netsweep/netsweep/internal/models"
)

// DialOptions carries the connection-level settings a Dialer needs. It is a
// subset of the session's connection policy, mapped by the session so the
// transport stays independent of retry concerns.
type DialOptions struct {
	ConnectTimeout time.Duration // Timeout for establishing the transport.
	TranscriptDir  string        // When set, the transport appends a session transcript under this directory.
	KnownHostsFile string        // When set, host keys are verified against this file instead of being ignored.
}

// Dialer establishes a connection to one device. Implementations classify
// failures: authentication rejections return *AuthError, connection deadline
// overruns return *TimeoutError, anything else is returned as-is.
type Dialer interface {
	Dial(ctx context.Context, device models.Device, opts DialOptions) (Conn, error)
}

// Conn is an established connection to one device. A Conn is owned by a
// single device session and is never shared across workers.
type Conn interface {
	// Run executes one command and returns its captured output. A deadline
	// overrun returns *TimeoutError; errors that indicate the transport
	// itself has died satisfy IsFatal.
	Run(ctx context.Context, command models.Command, timeout time.Duration) (string, error)

	// Close tears the connection down. Callers treat failures as advisory.
	Close() error
}

// Elevator is an optional capability of a Conn for device platforms with a
// privileged command mode. Sessions type-assert for it and skip elevation
// silently when the transport does not support it.
type Elevator interface {
	Elevate(ctx context.Context, secret string) error
}

// AuthError reports that the device rejected the supplied credentials.
// It is terminal for the device within a batch and is never retried.
type AuthError struct {
	Host string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Host, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a connect or command execution exceeded its
// deadline. Connect timeouts are retried per the session policy.
type TimeoutError struct {
	Host string
	Op   string // "connect" or "command"
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out for %s: %v", e.Op, e.Host, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// FatalError wraps an error that indicates the underlying transport is no
// longer usable. A session receiving one marks itself broken and fails all
// remaining commands without attempting reconnection.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an authentication rejection.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTimeout reports whether err is a deadline overrun.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// IsFatal reports whether err indicates the transport has died.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

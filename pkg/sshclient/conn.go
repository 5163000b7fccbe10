package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/transport"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// execConn runs each command in its own SSH exec session. This is the mode
// for generic targets: hosts with a regular shell that honors one-shot
// command execution, where no prompt or pagination handling is needed.
type execConn struct {
	client     *ssh.Client
	device     models.Device
	sessionLog *transcript
	logger     zerolog.Logger
}

func newExecConn(client *ssh.Client, device models.Device, sessionLog *transcript, logger zerolog.Logger) *execConn {
	return &execConn{
		client:     client,
		device:     device,
		sessionLog: sessionLog,
		logger:     logger.With().Str("hostname", device.Hostname).Logger(),
	}
}

// Run executes one command in a fresh session, bounded by the timeout. The
// session work happens in a goroutine so the caller's context and the
// command deadline both interrupt the wait.
func (c *execConn) Run(ctx context.Context, command models.Command, timeout time.Duration) (string, error) {
	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)

	c.sessionLog.record("send", command.Text)
	go func() {
		session, err := c.client.NewSession()
		if err != nil {
			ch <- result{err: &transport.FatalError{Err: err}}
			return
		}
		defer session.Close()

		output, err := session.CombinedOutput(command.Text)
		ch <- result{out: string(output), err: classifyRunError(err)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", &transport.TimeoutError{
			Host: c.device.Hostname,
			Op:   "command",
			Err:  fmt.Errorf("command %q exceeded %v", command.Text, timeout),
		}
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		c.sessionLog.record("recv", res.out)
		return res.out, nil
	}
}

// Close tears down the SSH client and the transcript.
func (c *execConn) Close() error {
	c.sessionLog.Close()
	if err := c.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection to %s: %w", c.device.Hostname, err)
	}
	return nil
}

// classifyRunError separates failures of the command itself from failures
// of the transport underneath it. A non-zero exit status means the command
// failed but the connection is still good; EOF and closed-network errors
// mean the transport died and the session must stop reusing it.
func classifyRunError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("command exited with status %d", exitErr.ExitStatus())
	}

	var missingErr *ssh.ExitMissingError
	if errors.As(err, &missingErr) {
		return &transport.FatalError{Err: err}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return &transport.FatalError{Err: err}
	}
	if strings.Contains(err.Error(), "use of closed network connection") {
		return &transport.FatalError{Err: err}
	}

	return err
}

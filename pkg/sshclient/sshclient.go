// Package sshclient is the production transport for the execution engine,
// built on golang.org/x/crypto/ssh. It classifies connection failures into
// the transport error categories, supports password, key and agent
// authentication, optional jump hosts and per-host SSH config overrides,
// and drives network operating systems either through one exec session per
// command or through a single interactive PTY shell with prompt detection.
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

// Client implements transport.Dialer on top of x/crypto/ssh. A Client holds
// no per-connection state and is safe for concurrent use by many workers.
type Client struct {
	// Dependencies
	logger zerolog.Logger
}

// New creates an SSH transport client.
func New(logger zerolog.Logger) *Client {
	return &Client{logger: logger}
}

// Dial establishes the SSH connection to one device and wraps it in the
// mode the device platform needs. Authentication rejections come back as
// *transport.AuthError; network-level failures, including unreachable and
// refused targets, come back as *transport.TimeoutError since they share
// the connect retry semantics.
func (c *Client) Dial(ctx context.Context, device models.Device, opts transport.DialOptions) (transport.Conn, error) {
	device, err := applySSHConfigOverrides(device)
	if err != nil {
		return nil, err
	}

	config, err := buildClientConfig(device, opts.ConnectTimeout, opts.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	client, err := c.dialContext(ctx, device, config, opts)
	if err != nil {
		return nil, classifyDialError(device.Hostname, err)
	}

	var sessionLog *transcript
	if opts.TranscriptDir != "" {
		sessionLog, err = newTranscript(opts.TranscriptDir, device.Hostname)
		if err != nil {
			c.logger.Warn().Err(err).Str("hostname", device.Hostname).Msg("Failed to open session transcript, continuing without")
			sessionLog = nil
		}
	}

	profile := profileFor(device.Type)
	if profile.interactive {
		conn, err := newInteractiveConn(ctx, client, device, profile, sessionLog, c.logger)
		if err != nil {
			sessionLog.Close()
			client.Close()
			return nil, fmt.Errorf("failed to start interactive shell on %s: %w", device.Hostname, err)
		}
		return conn, nil
	}

	return newExecConn(client, device, sessionLog, c.logger), nil
}

// dialContext runs the blocking SSH dial in a goroutine so the attempt
// honors both the context and the connect timeout. Jump-host devices dial
// the proxy first and tunnel the target connection through it.
func (c *Client) dialContext(ctx context.Context, device models.Device, config *ssh.ClientConfig, opts transport.DialOptions) (*ssh.Client, error) {
	type result struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan result, 1)

	go func() {
		client, err := c.dial(device, config, opts)
		ch <- result{client: client, err: err}
	}()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("dial %s timed out after %v", device.Addr(), timeout)
	case out := <-ch:
		return out.client, out.err
	}
}

// dial performs the actual connection, directly or through the jump host.
// The jump host is resolved as a host of its own, so a bastion with its own
// ssh config entry authenticates with its own user and identity rather than
// the target's.
func (c *Client) dial(device models.Device, config *ssh.ClientConfig, opts transport.DialOptions) (*ssh.Client, error) {
	if device.JumpHost == "" {
		return ssh.Dial("tcp", device.Addr(), config)
	}

	jump, err := resolveJumpDevice(device)
	if err != nil {
		return nil, err
	}
	jumpConfig, err := buildClientConfig(jump, opts.ConnectTimeout, opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to configure jump host %s: %w", jump.Hostname, err)
	}

	c.logger.Debug().Str("hostname", device.Hostname).Str("jump_host", jump.Addr()).Msg("Dialing through jump host")
	jumpClient, err := ssh.Dial("tcp", jump.Addr(), jumpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial jump host %s: %w", jump.Addr(), err)
	}

	tunnel, err := jumpClient.Dial("tcp", device.Addr())
	if err != nil {
		jumpClient.Close()
		return nil, fmt.Errorf("failed to reach %s through jump host: %w", device.Addr(), err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(tunnel, device.Addr(), config)
	if err != nil {
		tunnel.Close()
		jumpClient.Close()
		return nil, err
	}

	client := ssh.NewClient(conn, chans, reqs)
	go func() {
		client.Wait()
		jumpClient.Close()
	}()
	return client, nil
}

// classifyDialError maps a dial failure onto the transport error taxonomy.
func classifyDialError(hostname string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if isAuthFailure(err) {
		return &transport.AuthError{Host: hostname, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || isConnectFailure(err) {
		return &transport.TimeoutError{Host: hostname, Op: "connect", Err: err}
	}

	return err
}

// isAuthFailure recognizes the handshake errors x/crypto/ssh produces for
// rejected credentials.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}

// isConnectFailure recognizes network-level failures that share retry
// semantics with timeouts: the target was unreachable rather than
// rejecting us.
func isConnectFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "handshake failed: EOF")
}

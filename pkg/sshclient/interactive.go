package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/transport"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const (
	promptDetectTimeout = 10 * time.Second
	setupCommandTimeout = 10 * time.Second
	elevateTimeout      = 15 * time.Second

	// After an interrupt the shell has resyncTimeout to produce a prompt;
	// its late output counts as settled once the line stays quiet for
	// resyncSettleDelay.
	resyncTimeout     = 3 * time.Second
	resyncSettleDelay = 250 * time.Millisecond
)

// interactiveConn drives a device through a single PTY shell. Network
// operating systems expect an interactive terminal: commands are typed at a
// prompt, output is paged, and the prompt line marks completion. The
// connection detects the prompt once after login, disables pagination, and
// then runs every command by sending it and reading until the prompt
// returns.
type interactiveConn struct {
	// Transport
	client    *ssh.Client
	session   *ssh.Session
	stdin     io.WriteCloser
	closeOnce sync.Once

	// Reader state
	chunks  chan []byte
	done    chan struct{}
	readErr error

	// Configuration
	device  models.Device
	profile deviceProfile
	prompt  string

	// Dependencies
	sessionLog *transcript
	logger     zerolog.Logger
}

// newInteractiveConn opens the shell, detects the device prompt and
// disables output pagination. Failures here leave the caller to close the
// underlying client.
func newInteractiveConn(ctx context.Context, client *ssh.Client, device models.Device, profile deviceProfile, sessionLog *transcript, logger zerolog.Logger) (*interactiveConn, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 80, 40, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to request PTY: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	c := &interactiveConn{
		client:     client,
		session:    session,
		stdin:      stdin,
		chunks:     make(chan []byte, 16),
		done:       make(chan struct{}),
		device:     device,
		profile:    profile,
		sessionLog: sessionLog,
		logger:     logger.With().Str("hostname", device.Hostname).Logger(),
	}
	go c.readLoop(stdout)

	if err := c.detectPrompt(ctx); err != nil {
		c.teardown()
		return nil, err
	}
	c.disablePagination(ctx)

	return c, nil
}

// readLoop pumps shell output into the chunks channel until the stream ends
// or the connection is torn down. A device still streaming at teardown time
// would otherwise park this goroutine forever on a full channel. The read
// error is published before the channel closes, so receivers observing the
// close see it.
func (c *interactiveConn) readLoop(stdout io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.chunks <- chunk:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.readErr = err
			close(c.chunks)
			return
		}
	}
}

// detectPrompt provokes and captures the device prompt after login. The
// captured literal line anchors command completion for the whole session.
func (c *interactiveConn) detectPrompt(ctx context.Context) error {
	if err := c.send(""); err != nil {
		return err
	}

	raw, err := c.readUntil(ctx, promptDetectTimeout, "")
	if err != nil {
		return fmt.Errorf("failed to detect prompt on %s: %w", c.device.Hostname, err)
	}

	c.prompt = lastLine(raw)
	c.logger.Debug().Str("prompt", c.prompt).Msg("Detected device prompt")
	return nil
}

// disablePagination runs the platform's pager-off commands. Failures are
// logged and tolerated: a paging device degrades to truncated long outputs
// rather than failing the batch.
func (c *interactiveConn) disablePagination(ctx context.Context) {
	for _, setup := range c.profile.paginationOff {
		if err := c.send(setup); err != nil {
			c.logger.Warn().Err(err).Str("command", setup).Msg("Failed to send pagination setup command")
			return
		}
		if _, err := c.readUntil(ctx, setupCommandTimeout, ""); err != nil {
			c.logger.Warn().Err(err).Str("command", setup).Msg("Pagination setup command did not complete")
		}
	}
}

// Run sends one command and reads until the prompt returns, bounded by the
// timeout. On timeout a ctrl-c is sent to abort the stuck command and the
// shell is drained back to a prompt, so the rest of the sequence reads its
// own output instead of the aborted command's leftovers.
func (c *interactiveConn) Run(ctx context.Context, command models.Command, timeout time.Duration) (string, error) {
	if err := c.send(command.Text); err != nil {
		return "", err
	}

	raw, err := c.readUntil(ctx, timeout, command.ExpectedPrompt)
	if err != nil {
		if transport.IsTimeout(err) {
			c.interrupt(ctx)
		}
		return "", err
	}

	output := extractOutput(raw, command.Text, c.prompt)
	c.sessionLog.record("recv", output)
	return output, nil
}

// send writes one line to the shell.
func (c *interactiveConn) send(text string) error {
	c.sessionLog.record("send", text)
	if _, err := fmt.Fprintf(c.stdin, "%s\r\n", text); err != nil {
		return &transport.FatalError{Err: err}
	}
	return nil
}

// interrupt aborts the in-flight command with ctrl-c, then discards its
// late output until the shell settles at a prompt again. Everything read
// here belongs to the aborted command: the next command has not been sent
// yet. A shell that never returns to a prompt is abandoned at the deadline.
func (c *interactiveConn) interrupt(ctx context.Context) {
	c.sessionLog.record("send", "^C")
	fmt.Fprint(c.stdin, "\x03\r\n")

	var buf strings.Builder
	deadline := time.Now().Add(resyncTimeout)

	for {
		wait := resyncSettleDelay
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			c.logger.Warn().Msg("Shell did not settle at a prompt after interrupt")
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case chunk, ok := <-c.chunks:
			timer.Stop()
			if !ok {
				return
			}
			buf.Write(chunk)
		case <-timer.C:
			// The line went quiet; a chunk racing the timer still counts.
			select {
			case chunk, ok := <-c.chunks:
				if !ok {
					return
				}
				buf.Write(chunk)
			default:
				if c.promptReached(buf.String(), "") {
					c.logger.Debug().Int("discarded_bytes", buf.Len()).Msg("Shell prompt recovered after interrupt")
					return
				}
			}
		}
	}
}

// readUntil accumulates shell output until the trailing line matches the
// device prompt, the timeout lapses, the context ends, or the stream dies.
func (c *interactiveConn) readUntil(ctx context.Context, timeout time.Duration, expectedPrompt string) (string, error) {
	var buf strings.Builder

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		case <-timer.C:
			return buf.String(), &transport.TimeoutError{
				Host: c.device.Hostname,
				Op:   "command",
				Err:  fmt.Errorf("no prompt within %v", timeout),
			}
		case chunk, ok := <-c.chunks:
			if !ok {
				err := c.readErr
				if err == nil {
					err = io.EOF
				}
				return buf.String(), &transport.FatalError{Err: err}
			}
			buf.Write(chunk)
			if c.promptReached(buf.String(), expectedPrompt) {
				return buf.String(), nil
			}
		}
	}
}

// promptReached checks whether the accumulated output ends at a prompt.
func (c *interactiveConn) promptReached(accumulated, expectedPrompt string) bool {
	line := lastLine(accumulated)
	if line == "" {
		return false
	}
	if c.prompt != "" && line == c.prompt {
		return true
	}
	return c.profile.matchesPrompt(line, expectedPrompt)
}

// Elevate enters the platform's privileged mode using the enable secret.
// Platforms without a separate privileged mode succeed trivially.
func (c *interactiveConn) Elevate(ctx context.Context, secret string) error {
	if c.profile.enableCommand == "" {
		return nil
	}

	if err := c.send(c.profile.enableCommand); err != nil {
		return err
	}

	raw, err := c.waitForElevatePrompt(ctx)
	if err != nil {
		return err
	}

	if passwordHint.MatchString(lastLine(raw)) {
		c.sessionLog.record("send", "********")
		if _, err := fmt.Fprintf(c.stdin, "%s\r\n", secret); err != nil {
			return &transport.FatalError{Err: err}
		}
		if raw, err = c.waitForElevatePrompt(ctx); err != nil {
			return err
		}
	}

	promptLine := lastLine(raw)
	if !strings.HasSuffix(strings.TrimSpace(promptLine), "#") {
		return fmt.Errorf("privileged mode not reached on %s, prompt is %q", c.device.Hostname, promptLine)
	}

	c.prompt = promptLine
	return nil
}

// waitForElevatePrompt reads until either a password request or a command
// prompt shows up.
func (c *interactiveConn) waitForElevatePrompt(ctx context.Context) (string, error) {
	var buf strings.Builder

	timer := time.NewTimer(elevateTimeout)
	defer timer.Stop()

	for {
		line := lastLine(buf.String())
		if passwordHint.MatchString(line) || c.profile.matchesPrompt(line, "") {
			return buf.String(), nil
		}

		select {
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		case <-timer.C:
			return buf.String(), fmt.Errorf("no response to enable request within %v", elevateTimeout)
		case chunk, ok := <-c.chunks:
			if !ok {
				err := c.readErr
				if err == nil {
					err = io.EOF
				}
				return buf.String(), &transport.FatalError{Err: err}
			}
			buf.Write(chunk)
		}
	}
}

// Close ends the shell and the SSH connection.
func (c *interactiveConn) Close() error {
	err := c.teardown()
	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to close connection to %s: %w", c.device.Hostname, err)
	}
	return nil
}

func (c *interactiveConn) teardown() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.sessionLog.Close()
	c.stdin.Close()
	c.session.Close()
	return c.client.Close()
}

// lastLine returns the last non-empty line of s, trimmed. Carriage returns
// from the PTY are stripped first.
func lastLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// extractOutput strips the command echo and the trailing prompt from the
// raw capture, returning just the command's output.
func extractOutput(raw, command, prompt string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	lines := strings.Split(raw, "\n")

	start := 0
	if len(lines) > 0 && command != "" && strings.Contains(strings.TrimSpace(lines[0]), command) {
		start = 1
	}

	end := len(lines)
	for end > start {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" {
			end--
			continue
		}
		if prompt != "" && trimmed == prompt {
			end--
		} else if isPromptLike(trimmed) {
			end--
		}
		break
	}

	return strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
}

// isPromptLike is the fallback prompt test for trailing-line cleanup when
// the detected prompt changed mid-session, such as after entering
// privileged mode.
func isPromptLike(line string) bool {
	if len(line) >= 100 {
		return false
	}
	return strings.HasSuffix(line, ">") ||
		strings.HasSuffix(line, "#") ||
		strings.HasSuffix(line, "]") ||
		strings.HasSuffix(line, "$")
}

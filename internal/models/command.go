package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCommandTimeout is applied to commands that do not carry their own
// timeout and execute under a policy without a default.
const DefaultCommandTimeout = 60 * time.Second

// Command represents one instruction to run on a device. A Command is
// read-only once normalized and may be reused across batches.
type Command struct {
	Text           string `json:"command"`                   // The instruction sent to the device.
	Description    string `json:"description,omitempty"`     // Optional human-readable label for reports.
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // Per-command timeout; 0 falls back to the batch default.
	RequiresEnable bool   `json:"requires_enable,omitempty"` // Whether the device must be in privileged mode first.
	ExpectedPrompt string `json:"expected_prompt,omitempty"` // Optional prompt override for interactive transports.
}

// Normalize trims the command text and validates it, returning the canonical
// copy. Empty text after trimming or a negative timeout is an error.
func (c Command) Normalize() (Command, error) {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return Command{}, fmt.Errorf("command text must not be empty")
	}
	if c.TimeoutSeconds < 0 {
		return Command{}, fmt.Errorf("command %q has negative timeout %d", c.Text, c.TimeoutSeconds)
	}
	return c, nil
}

// Timeout returns the effective execution timeout for this command, falling
// back to the supplied batch default, then to DefaultCommandTimeout.
func (c Command) Timeout(batchDefault time.Duration) time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	if batchDefault > 0 {
		return batchDefault
	}
	return DefaultCommandTimeout
}

// Label returns the description when present, else the command text.
func (c Command) Label() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Text
}

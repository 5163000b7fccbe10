package session

import (
	"testing"
	"time"

	"github.com/netsweep/netsweep/internal/constants"
	"github.com/stretchr/testify/assert"
)

// TestConnectionPolicy_WithDefaults tests zero-value defaulting.
func TestConnectionPolicy_WithDefaults(t *testing.T) {
	var policy ConnectionPolicy

	filled := policy.withDefaults()

	assert.Equal(t, constants.DefaultConnectTimeout, filled.ConnectTimeout)
	assert.Equal(t, constants.DefaultMaxConnectAttempts, filled.MaxAttempts)
	assert.Equal(t, constants.DefaultRetryDelay, filled.RetryDelay)
	assert.Equal(t, constants.DefaultMaxRetryDelay, filled.MaxRetryDelay)
	assert.Equal(t, constants.DefaultCommandTimeout, filled.CommandTimeout)
	assert.Equal(t, constants.DefaultOutputSizeLimit, filled.OutputSizeLimit)
	assert.False(t, filled.RetryOnError)
}

// TestConnectionPolicy_WithDefaults_KeepsExplicitValues tests that set
// fields survive defaulting.
func TestConnectionPolicy_WithDefaults_KeepsExplicitValues(t *testing.T) {
	policy := ConnectionPolicy{
		MaxAttempts:   5,
		RetryDelay:    2 * time.Second,
		TranscriptDir: "/var/log/transcripts",
	}

	filled := policy.withDefaults()

	assert.Equal(t, 5, filled.MaxAttempts)
	assert.Equal(t, 2*time.Second, filled.RetryDelay)
	assert.Equal(t, "/var/log/transcripts", filled.TranscriptDir)
	assert.Equal(t, constants.DefaultConnectTimeout, filled.ConnectTimeout)
}

// TestConnectionPolicy_DialOptions tests the mapping onto the transport
// contract.
func TestConnectionPolicy_DialOptions(t *testing.T) {
	policy := ConnectionPolicy{
		ConnectTimeout: 10 * time.Second,
		TranscriptDir:  "/var/log/transcripts",
		KnownHostsFile: "/home/admin/.ssh/known_hosts",
	}

	opts := policy.dialOptions()

	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, "/var/log/transcripts", opts.TranscriptDir)
	assert.Equal(t, "/home/admin/.ssh/known_hosts", opts.KnownHostsFile)
}

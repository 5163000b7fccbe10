package inventory

import (
	"errors"
	"testing"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadCommands_SkipsCommentsAndBlankLines tests the basic file shape:
// one command per line, comments and padding ignored, order preserved.
func TestLoadCommands_SkipsCommentsAndBlankLines(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	content := `# Inventory audit set
show version

  show ip interface brief
# trailing comment
show ip route
`
	mockFile.On("ReadFile", "commands.txt").Return(content, nil)

	// Test
	commands, err := LoadCommands("commands.txt", mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, commands, 3)
	assert.Equal(t, "show version", commands[0].Text)
	assert.Equal(t, "show ip interface brief", commands[1].Text)
	assert.Equal(t, "show ip route", commands[2].Text)
	mockFile.AssertExpectations(t)
}

// TestLoadCommands_ParsesDirectives tests the ## directive suffix for
// per-command timeout and privileged mode.
func TestLoadCommands_ParsesDirectives(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	content := "show running-config ## timeout=120 enable\nshow version\n"
	mockFile.On("ReadFile", "commands.txt").Return(content, nil)

	// Test
	commands, err := LoadCommands("commands.txt", mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.Equal(t, "show running-config", commands[0].Text)
	assert.Equal(t, 120, commands[0].TimeoutSeconds)
	assert.True(t, commands[0].RequiresEnable)
	assert.Equal(t, 0, commands[1].TimeoutSeconds)
	assert.False(t, commands[1].RequiresEnable)
}

// TestLoadCommands_KeepsSingleHashInsideCommandText tests that a lone #
// inside a command survives; only the ## marker starts directives.
func TestLoadCommands_KeepsSingleHashInsideCommandText(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	content := "show running-config | include #hash\n"
	mockFile.On("ReadFile", "commands.txt").Return(content, nil)

	// Test
	commands, err := LoadCommands("commands.txt", mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "show running-config | include #hash", commands[0].Text)
}

// TestLoadCommands_RejectsBadDirectives tests directive validation with
// file line numbers in the errors.
func TestLoadCommands_RejectsBadDirectives(t *testing.T) {
	mockFile := new(mockFileOps)
	mockFile.On("ReadFile", "commands.txt").Return("show version\nshow clock ## timeout=zero\n", nil)

	_, err := LoadCommands("commands.txt", mockFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "invalid timeout directive")

	mockFile = new(mockFileOps)
	mockFile.On("ReadFile", "commands.txt").Return("show clock ## retry=3\n", nil)

	_, err = LoadCommands("commands.txt", mockFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown directive "retry=3"`)
}

// TestLoadCommands_RejectsEmptyFile tests that a file of comments only is
// refused.
func TestLoadCommands_RejectsEmptyFile(t *testing.T) {
	mockFile := new(mockFileOps)
	mockFile.On("ReadFile", "commands.txt").Return("# nothing here\n\n", nil)

	_, err := LoadCommands("commands.txt", mockFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid commands found")
}

// TestLoadCommands_PropagatesReadError tests the unreadable-file path.
func TestLoadCommands_PropagatesReadError(t *testing.T) {
	mockFile := new(mockFileOps)
	mockFile.On("ReadFile", "missing.txt").Return("", errors.New("no such file"))

	_, err := LoadCommands("missing.txt", mockFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read commands file")
}

// TestFilterCommands tests include and exclude pattern narrowing.
func TestFilterCommands(t *testing.T) {
	commands := []models.Command{
		{Text: "show version"},
		{Text: "show ip route"},
		{Text: "show ip bgp summary"},
		{Text: "show interfaces"},
	}

	// Test
	ipOnly := FilterCommands(commands, []string{"ip"}, nil)
	noBGP := FilterCommands(commands, nil, []string{"bgp"})
	combined := FilterCommands(commands, []string{"ip"}, []string{"bgp"})
	untouched := FilterCommands(commands, nil, nil)

	// Verify
	require.Len(t, ipOnly, 2)
	assert.Equal(t, "show ip route", ipOnly[0].Text)
	require.Len(t, noBGP, 3)
	require.Len(t, combined, 1)
	assert.Equal(t, "show ip route", combined[0].Text)
	assert.Len(t, untouched, 4)
}

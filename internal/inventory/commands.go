package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/pkg/file"
)

// LoadCommands reads commands from a text file, one per line. Blank lines
// and lines starting with # are skipped. A line may carry directives after
// a ## marker:
//
//	show running-config ## timeout=120 enable
//
// timeout=N overrides the per-command timeout in seconds and enable marks
// the command as requiring privileged mode. The marker is ## rather than a
// single # so that pipe filters inside command text stay untouched.
func LoadCommands(path string, fileClient file.Operations) ([]models.Command, error) {
	content, err := fileClient.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read commands file %s: %w", path, err)
	}

	var commands []models.Command
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		command, err := parseCommandLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		commands = append(commands, command)
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no valid commands found in %s", path)
	}
	return commands, nil
}

func parseCommandLine(line string) (models.Command, error) {
	text := line
	var directives string
	if idx := strings.Index(line, "##"); idx >= 0 {
		text = strings.TrimSpace(line[:idx])
		directives = line[idx+2:]
	}

	command := models.Command{Text: text}
	for _, directive := range strings.Fields(directives) {
		switch {
		case directive == "enable":
			command.RequiresEnable = true
		case strings.HasPrefix(directive, "timeout="):
			seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "timeout="))
			if err != nil || seconds <= 0 {
				return models.Command{}, fmt.Errorf("invalid timeout directive %q", directive)
			}
			command.TimeoutSeconds = seconds
		default:
			return models.Command{}, fmt.Errorf("unknown directive %q", directive)
		}
	}
	return command.Normalize()
}

// FilterCommands keeps commands whose text contains any include pattern and
// drops those matching any exclude pattern. Nil pattern lists are no-ops.
func FilterCommands(commands []models.Command, include, exclude []string) []models.Command {
	filtered := commands
	if len(include) > 0 {
		kept := make([]models.Command, 0, len(filtered))
		for _, cmd := range filtered {
			for _, pattern := range include {
				if strings.Contains(cmd.Text, pattern) {
					kept = append(kept, cmd)
					break
				}
			}
		}
		filtered = kept
	}
	if len(exclude) > 0 {
		kept := make([]models.Command, 0, len(filtered))
		for _, cmd := range filtered {
			matched := false
			for _, pattern := range exclude {
				if strings.Contains(cmd.Text, pattern) {
					matched = true
					break
				}
			}
			if !matched {
				kept = append(kept, cmd)
			}
		}
		filtered = kept
	}
	return filtered
}

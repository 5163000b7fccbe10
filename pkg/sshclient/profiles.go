package sshclient

import (
	"regexp"
	"strings"

	"github.com/netsweep/netsweep/internal/models"
)

// deviceProfile describes how to drive one device platform: whether it
// needs an interactive PTY session, how its prompt looks, how to disable
// output pagination, and how to enter privileged mode.
type deviceProfile struct {
	// interactive selects a single PTY shell with prompt detection instead
	// of one exec session per command.
	interactive bool

	// promptPatterns match a trimmed terminal line that ends a command.
	promptPatterns []*regexp.Regexp

	// paginationOff commands run once after login so large outputs are not
	// paged interactively.
	paginationOff []string

	// enableCommand enters privileged mode; empty when the platform has
	// no separate privileged mode.
	enableCommand string
}

var (
	ciscoPrompt   = regexp.MustCompile(`^[a-zA-Z0-9._/-]+(\([a-zA-Z0-9._-]+\))?[>#]\s?$`)
	comwarePrompt = regexp.MustCompile(`^<[^>]+>\s?$`)
	comwareSystem = regexp.MustCompile(`^\[[^\]]+\]\s?$`)
	junosPrompt   = regexp.MustCompile(`^[a-zA-Z0-9._@-]+[>#%]\s?$`)
	genericPrompt = regexp.MustCompile(`^[^\s]+[>#$%]\s?$`)
	passwordHint  = regexp.MustCompile(`(?i)password\s*:\s*$`)
)

// profiles maps each device type to its platform behavior. Types not listed
// fall back to the generic profile: plain exec sessions, no pagination
// handling, no privileged mode.
var profiles = map[models.DeviceType]deviceProfile{
	models.DeviceTypeCiscoIOS: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
		enableCommand:  "enable",
	},
	models.DeviceTypeCiscoXE: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
		enableCommand:  "enable",
	},
	models.DeviceTypeCiscoNXOS: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
	},
	models.DeviceTypeCiscoXR: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
	},
	models.DeviceTypeAristaEOS: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
		enableCommand:  "enable",
	},
	models.DeviceTypeJuniperJunos: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{junosPrompt},
		paginationOff:  []string{"set cli screen-length 0"},
	},
	models.DeviceTypeHPComware: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{comwarePrompt, comwareSystem},
		paginationOff:  []string{"screen-length disable"},
	},
	models.DeviceTypeHPProcurve: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"no page"},
	},
	models.DeviceTypePaloAlto: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{junosPrompt},
		paginationOff:  []string{"set cli pager off"},
	},
	models.DeviceTypeDellOS10: {
		interactive:    true,
		promptPatterns: []*regexp.Regexp{ciscoPrompt},
		paginationOff:  []string{"terminal length 0"},
		enableCommand:  "enable",
	},
}

// profileFor returns the platform profile for a device type, falling back to
// the generic exec-mode profile.
func profileFor(deviceType models.DeviceType) deviceProfile {
	if profile, ok := profiles[deviceType]; ok {
		return profile
	}
	return deviceProfile{
		promptPatterns: []*regexp.Regexp{genericPrompt},
	}
}

// matchesPrompt reports whether a trimmed line looks like the platform's
// command prompt. An explicit expected prompt takes precedence over the
// profile patterns.
func (p deviceProfile) matchesPrompt(line, expected string) bool {
	if line == "" {
		return false
	}
	if expected != "" {
		return strings.Contains(line, expected)
	}
	for _, pattern := range p.promptPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

package models

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// DeviceType identifies the vendor platform of a network device. It selects
// the prompt handling and pagination behavior used by interactive transports.
type DeviceType string

const (
	DeviceTypeCiscoIOS     DeviceType = "cisco_ios"
	DeviceTypeCiscoNXOS    DeviceType = "cisco_nxos"
	DeviceTypeCiscoXE      DeviceType = "cisco_xe"
	DeviceTypeCiscoXR      DeviceType = "cisco_xr"
	DeviceTypeAristaEOS    DeviceType = "arista_eos"
	DeviceTypeJuniperJunos DeviceType = "juniper_junos"
	DeviceTypeHPComware    DeviceType = "hp_comware"
	DeviceTypeHPProcurve   DeviceType = "hp_procurve"
	DeviceTypePaloAlto     DeviceType = "paloalto_panos"
	DeviceTypeFortinet     DeviceType = "fortinet"
	DeviceTypeDellOS10     DeviceType = "dell_os10"
	DeviceTypeGeneric      DeviceType = "generic"
)

// deviceTypes holds every recognized DeviceType value.
var deviceTypes = map[DeviceType]struct{}{
	DeviceTypeCiscoIOS:     {},
	DeviceTypeCiscoNXOS:    {},
	DeviceTypeCiscoXE:      {},
	DeviceTypeCiscoXR:      {},
	DeviceTypeAristaEOS:    {},
	DeviceTypeJuniperJunos: {},
	DeviceTypeHPComware:    {},
	DeviceTypeHPProcurve:   {},
	DeviceTypePaloAlto:     {},
	DeviceTypeFortinet:     {},
	DeviceTypeDellOS10:     {},
	DeviceTypeGeneric:      {},
}

// DeviceTypeFromString converts a free-form platform string into a DeviceType.
// Case, hyphens and spaces are normalized; unrecognized values fall back to
// DeviceTypeGeneric rather than failing, so inventories with unknown platform
// tags still load.
func DeviceTypeFromString(value string) DeviceType {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if _, ok := deviceTypes[DeviceType(normalized)]; ok {
		return DeviceType(normalized)
	}
	return DeviceTypeGeneric
}

// Valid reports whether the value is one of the recognized device types.
func (t DeviceType) Valid() bool {
	_, ok := deviceTypes[t]
	return ok
}

// AuthMethod selects how the SSH transport authenticates to a device.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodKey      AuthMethod = "key"
	AuthMethodAgent    AuthMethod = "agent"
)

// AuthMethodFromString converts a free-form string into an AuthMethod,
// falling back to AuthMethodPassword for unrecognized values.
func AuthMethodFromString(value string) AuthMethod {
	switch AuthMethod(strings.ToLower(strings.TrimSpace(value))) {
	case AuthMethodKey:
		return AuthMethodKey
	case AuthMethodAgent:
		return AuthMethodAgent
	default:
		return AuthMethodPassword
	}
}

// DefaultSSHPort is used when a device entry does not specify a port.
const DefaultSSHPort = 22

// hostnameRegex matches RFC 1123 hostnames: dot-separated labels of up to 63
// alphanumeric-or-hyphen characters, not starting or ending with a hyphen.
var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidateHostname reports whether value is an RFC 1123 hostname or an IP
// address. The total length is capped at 253 characters.
func ValidateHostname(value string) bool {
	if value == "" || len(value) > 253 {
		return false
	}
	if net.ParseIP(value) != nil {
		return true
	}
	return hostnameRegex.MatchString(value)
}

// Device represents one target host to connect to and run commands against.
// A Device is treated as read-only once normalized; it is safe to share
// across concurrently executing workers.
type Device struct {
	// Target address
	Hostname string     `json:"hostname"`
	Port     int        `json:"port"`
	Type     DeviceType `json:"device_type"`

	// Credentials, resolved before the engine is invoked
	Username   string     `json:"username,omitempty"`
	Password   string     `json:"-"`
	Auth       AuthMethod `json:"auth_method"`
	KeyFile    string     `json:"key_file,omitempty"`
	Passphrase string     `json:"-"`

	// Connection routing
	JumpHost      string `json:"jump_host,omitempty"`
	SSHConfigFile string `json:"ssh_config_file,omitempty"`

	// Free-form grouping tags
	Tags []string `json:"tags,omitempty"`
}

// Normalize applies defaults and validates the device, returning the
// canonical copy used for the rest of the batch. The zero port becomes
// DefaultSSHPort, a zero device type becomes generic, and a zero auth method
// becomes password. An empty or malformed hostname or an out-of-range port
// is an immediate error.
func (d Device) Normalize() (Device, error) {
	d.Hostname = strings.TrimSpace(d.Hostname)
	if d.Hostname == "" {
		return Device{}, fmt.Errorf("device hostname must not be empty")
	}
	if !ValidateHostname(d.Hostname) {
		return Device{}, fmt.Errorf("invalid hostname %q", d.Hostname)
	}

	if d.Port == 0 {
		d.Port = DefaultSSHPort
	}
	if d.Port < 1 || d.Port > 65535 {
		return Device{}, fmt.Errorf("invalid port %d for device %q: must be between 1 and 65535", d.Port, d.Hostname)
	}

	if d.Type == "" {
		d.Type = DeviceTypeGeneric
	} else if !d.Type.Valid() {
		d.Type = DeviceTypeFromString(string(d.Type))
	}

	if d.Auth == "" {
		d.Auth = AuthMethodPassword
	}

	return d, nil
}

// Addr returns the host:port dial target.
func (d Device) Addr() string {
	return net.JoinHostPort(d.Hostname, fmt.Sprintf("%d", d.Port))
}

// DisplayName returns the hostname, suffixed with the port when it is not
// the SSH default. Used for logging and report rows.
func (d Device) DisplayName() string {
	if d.Port != DefaultSSHPort && d.Port != 0 {
		return fmt.Sprintf("%s:%d", d.Hostname, d.Port)
	}
	return d.Hostname
}

// Key returns the hostname+port identity used for duplicate detection by
// inventory loaders. The engine itself never deduplicates devices.
func (d Device) Key() string {
	return d.Addr()
}

// HasTag reports whether the device carries the given grouping tag.
func (d Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

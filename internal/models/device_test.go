package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDeviceTypeFromString_Normalization tests that free-form platform
// strings map onto recognized device types.
func TestDeviceTypeFromString_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  DeviceType
	}{
		{"canonical value", "cisco_ios", DeviceTypeCiscoIOS},
		{"uppercase with hyphens", "CISCO-IOS", DeviceTypeCiscoIOS},
		{"spaces", "Cisco IOS", DeviceTypeCiscoIOS},
		{"padded", "  juniper_junos  ", DeviceTypeJuniperJunos},
		{"unknown vendor", "acme_rtos", DeviceTypeGeneric},
		{"empty", "", DeviceTypeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceTypeFromString(tt.input))
		})
	}
}

// TestAuthMethodFromString_Fallback tests that unrecognized auth strings
// fall back to password authentication.
func TestAuthMethodFromString_Fallback(t *testing.T) {
	assert.Equal(t, AuthMethodKey, AuthMethodFromString("key"))
	assert.Equal(t, AuthMethodKey, AuthMethodFromString(" KEY "))
	assert.Equal(t, AuthMethodAgent, AuthMethodFromString("agent"))
	assert.Equal(t, AuthMethodPassword, AuthMethodFromString("password"))
	assert.Equal(t, AuthMethodPassword, AuthMethodFromString("certificate"))
	assert.Equal(t, AuthMethodPassword, AuthMethodFromString(""))
}

// TestValidateHostname covers RFC 1123 names and IP addresses.
func TestValidateHostname(t *testing.T) {
	valid := []string{"router1", "core-sw-01.example.com", "10.0.0.1", "2001:db8::1", "a"}
	for _, v := range valid {
		assert.True(t, ValidateHostname(v), "expected %q to be valid", v)
	}

	invalid := []string{"", "-leading", "trailing-", "under_score", "double..dot", strings.Repeat("a", 254)}
	for _, v := range invalid {
		assert.False(t, ValidateHostname(v), "expected %q to be invalid", v)
	}
}

// TestDevice_Normalize_AppliesDefaults tests zero-value defaulting during
// normalization.
func TestDevice_Normalize_AppliesDefaults(t *testing.T) {
	device, err := Device{Hostname: "  switch1  "}.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, "switch1", device.Hostname)
	assert.Equal(t, DefaultSSHPort, device.Port)
	assert.Equal(t, DeviceTypeGeneric, device.Type)
	assert.Equal(t, AuthMethodPassword, device.Auth)
}

// TestDevice_Normalize_CoercesUnrecognizedType tests that a raw platform
// string carried in the type field is normalized rather than rejected.
func TestDevice_Normalize_CoercesUnrecognizedType(t *testing.T) {
	device, err := Device{Hostname: "switch1", Type: DeviceType("Cisco-IOS")}.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, DeviceTypeCiscoIOS, device.Type)

	device, err = Device{Hostname: "switch1", Type: DeviceType("unknown-os")}.Normalize()

	assert.NoError(t, err)
	assert.Equal(t, DeviceTypeGeneric, device.Type)
}

// TestDevice_Normalize_Rejections tests the validation failures.
func TestDevice_Normalize_Rejections(t *testing.T) {
	_, err := Device{}.Normalize()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hostname must not be empty")

	_, err = Device{Hostname: "bad host!"}.Normalize()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid hostname")

	_, err = Device{Hostname: "switch1", Port: 70000}.Normalize()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")

	_, err = Device{Hostname: "switch1", Port: -1}.Normalize()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

// TestDevice_AddressForms tests the dial, display and identity renderings
// of a device address.
func TestDevice_AddressForms(t *testing.T) {
	standard := Device{Hostname: "switch1", Port: 22}
	assert.Equal(t, "switch1:22", standard.Addr())
	assert.Equal(t, "switch1", standard.DisplayName())
	assert.Equal(t, "switch1:22", standard.Key())

	alternate := Device{Hostname: "switch1", Port: 2222}
	assert.Equal(t, "switch1:2222", alternate.DisplayName())

	v6 := Device{Hostname: "2001:db8::1", Port: 22}
	assert.Equal(t, "[2001:db8::1]:22", v6.Addr())
}

// TestDevice_HasTag tests grouping tag membership.
func TestDevice_HasTag(t *testing.T) {
	device := Device{Hostname: "switch1", Tags: []string{"core", "critical"}}

	assert.True(t, device.HasTag("core"))
	assert.False(t, device.HasTag("edge"))
}

// Package inventory loads device and command definitions from operator
// supplied files. Loaders resolve batch-wide defaults into each entry, so
// the execution engine only ever sees fully populated devices.
package inventory

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/netsweep/netsweep/internal/utils"
	"github.com/netsweep/netsweep/pkg/file"
)

func init() {
	// Header names are matched after lowercasing and trimming, so files
	// with "Hostname" or padded columns still load. This is the only
	// process-wide gocsv setting and it is written exactly once, here;
	// loaders build their own csv.Reader per call, which keeps concurrent
	// loads race-free.
	gocsv.SetHeaderNormalizer(func(name string) string {
		return strings.ToLower(strings.TrimSpace(name))
	})
}

// Defaults carries batch-wide fallbacks applied to inventory entries that
// omit their own values. Resolution happens here, before execution starts.
type Defaults struct {
	Username   string
	Password   string
	Auth       models.AuthMethod
	KeyFile    string
	DeviceType models.DeviceType
	JumpHost   string
	SSHConfig  string
}

// deviceRow is one CSV record. Only hostname is required; everything else
// falls back to the batch defaults.
type deviceRow struct {
	Hostname   string `csv:"hostname"`
	IP         string `csv:"ip"`
	Port       string `csv:"port"`
	DeviceType string `csv:"device_type"`
	Username   string `csv:"username"`
	Password   string `csv:"password"`
	AuthMethod string `csv:"auth_method"`
	KeyFile    string `csv:"key_file"`
	JumpHost   string `csv:"jump_host"`
	Tags       string `csv:"tags"`
}

// LoadDevices reads a device inventory file, dispatching on the extension:
// .yaml and .yml files are parsed as YAML, everything else as CSV.
func LoadDevices(path string, defaults Defaults, fileClient file.Operations) ([]models.Device, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return LoadDevicesYAML(path, defaults, fileClient)
	}
	return LoadDevicesCSV(path, defaults, fileClient)
}

// LoadDevicesCSV reads devices from a CSV file. Column order does not
// matter, and both comma and semicolon delimiters are accepted. Rows are
// reported with their file line number on error.
func LoadDevicesCSV(path string, defaults Defaults, fileClient file.Operations) ([]models.Device, error) {
	data, err := fileClient.ReadFileRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device inventory %s: %w", path, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.TrimLeadingSpace = true

	var rows []deviceRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse device inventory %s: %w", path, err)
	}

	devices := make([]models.Device, 0, len(rows))
	for i, row := range rows {
		device, err := row.toDevice(defaults)
		if err != nil {
			// Header occupies line 1.
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		devices = append(devices, device)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices found in %s", path)
	}
	return devices, nil
}

// sniffDelimiter picks the field separator from the header line. Comma wins
// when present; otherwise semicolon-delimited exports are accepted as is.
func sniffDelimiter(data []byte) rune {
	header := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		header = data[:idx]
	}
	if !bytes.ContainsRune(header, ',') && bytes.ContainsRune(header, ';') {
		return ';'
	}
	return ','
}

func (r deviceRow) toDevice(defaults Defaults) (models.Device, error) {
	hostname := strings.TrimSpace(r.Hostname)
	if hostname == "" {
		return models.Device{}, errors.New("hostname is required")
	}

	// A populated ip column overrides the hostname as the dial target.
	if ip := strings.TrimSpace(r.IP); ip != "" {
		hostname = ip
	}

	port := 0
	if p := strings.TrimSpace(r.Port); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return models.Device{}, fmt.Errorf("invalid port number %q", p)
		}
		port = n
	}

	device := models.Device{
		Hostname:      hostname,
		Port:          port,
		Type:          defaults.DeviceType,
		Username:      defaults.Username,
		Password:      defaults.Password,
		Auth:          defaults.Auth,
		KeyFile:       defaults.KeyFile,
		JumpHost:      defaults.JumpHost,
		SSHConfigFile: defaults.SSHConfig,
		Tags:          splitTags(r.Tags),
	}
	if v := strings.TrimSpace(r.DeviceType); v != "" {
		device.Type = models.DeviceTypeFromString(v)
	}
	if v := strings.TrimSpace(r.Username); v != "" {
		device.Username = v
	}
	if v := strings.TrimSpace(r.Password); v != "" {
		device.Password = v
	}
	if v := strings.TrimSpace(r.AuthMethod); v != "" {
		device.Auth = models.AuthMethodFromString(v)
	}
	if v := strings.TrimSpace(r.KeyFile); v != "" {
		device.KeyFile = v
	}
	if v := strings.TrimSpace(r.JumpHost); v != "" {
		device.JumpHost = v
	}
	return device.Normalize()
}

// splitTags parses a semicolon or space separated tag cell.
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(c rune) bool {
		return c == ';' || c == ' '
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// yamlDevice is one entry in a YAML inventory.
type yamlDevice struct {
	Hostname   string   `yaml:"hostname"`
	IP         string   `yaml:"ip"`
	Port       int      `yaml:"port"`
	DeviceType string   `yaml:"device_type"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	AuthMethod string   `yaml:"auth_method"`
	KeyFile    string   `yaml:"key_file"`
	JumpHost   string   `yaml:"jump_host"`
	Tags       []string `yaml:"tags"`
}

type yamlInventory struct {
	Devices []yamlDevice `yaml:"devices"`
}

// LoadDevicesYAML reads devices from a YAML inventory with a top-level
// devices list, applying the same defaulting rules as the CSV loader.
func LoadDevicesYAML(path string, defaults Defaults, fileClient file.Operations) ([]models.Device, error) {
	var doc yamlInventory
	if err := fileClient.ReadYamlFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read device inventory %s: %w", path, err)
	}
	if len(doc.Devices) == 0 {
		return nil, fmt.Errorf("no devices found in %s", path)
	}

	devices := make([]models.Device, 0, len(doc.Devices))
	for i, entry := range doc.Devices {
		hostname := strings.TrimSpace(entry.Hostname)
		if hostname == "" {
			return nil, fmt.Errorf("%s devices[%d]: hostname is required", path, i)
		}
		if ip := strings.TrimSpace(entry.IP); ip != "" {
			hostname = ip
		}

		device := models.Device{
			Hostname:      hostname,
			Port:          entry.Port,
			Type:          defaults.DeviceType,
			Username:      defaults.Username,
			Password:      defaults.Password,
			Auth:          defaults.Auth,
			KeyFile:       defaults.KeyFile,
			JumpHost:      defaults.JumpHost,
			SSHConfigFile: defaults.SSHConfig,
			Tags:          entry.Tags,
		}
		if v := strings.TrimSpace(entry.DeviceType); v != "" {
			device.Type = models.DeviceTypeFromString(v)
		}
		if v := strings.TrimSpace(entry.Username); v != "" {
			device.Username = v
		}
		if v := strings.TrimSpace(entry.Password); v != "" {
			device.Password = v
		}
		if v := strings.TrimSpace(entry.AuthMethod); v != "" {
			device.Auth = models.AuthMethodFromString(v)
		}
		if v := strings.TrimSpace(entry.KeyFile); v != "" {
			device.KeyFile = v
		}
		if v := strings.TrimSpace(entry.JumpHost); v != "" {
			device.JumpHost = v
		}

		normalized, err := device.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%s devices[%d]: %w", path, i, err)
		}
		devices = append(devices, normalized)
	}
	return devices, nil
}

// ValidateDevices checks cross-device concerns the loaders cannot see row
// by row: duplicate targets and missing credentials. It returns one message
// per problem; an empty slice means the inventory is ready to run.
func ValidateDevices(devices []models.Device) []string {
	var problems []string
	if len(devices) == 0 {
		return []string{"no devices provided"}
	}

	seen := make(map[string]int, len(devices))
	for _, d := range devices {
		seen[d.Key()]++
	}
	var duplicates []string
	for key, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, key)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		problems = append(problems, fmt.Sprintf("duplicate devices found: %s", strings.Join(duplicates, ", ")))
	}

	for _, d := range devices {
		if d.Username == "" {
			problems = append(problems, fmt.Sprintf("device %s: username is required", d.Hostname))
		}
		switch d.Auth {
		case models.AuthMethodPassword:
			if d.Password == "" {
				problems = append(problems, fmt.Sprintf("device %s: password required for password auth", d.Hostname))
			}
		case models.AuthMethodKey:
			if d.KeyFile == "" {
				problems = append(problems, fmt.Sprintf("device %s: key file required for key auth", d.Hostname))
			}
		}
	}
	return problems
}

// FilterByTags keeps devices carrying at least one of the given tags. An
// empty tag list keeps everything.
func FilterByTags(devices []models.Device, tags []string) []models.Device {
	if len(tags) == 0 {
		return devices
	}
	wanted := utils.SliceToSet(tags)

	filtered := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		for _, tag := range d.Tags {
			if _, ok := wanted[tag]; ok {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

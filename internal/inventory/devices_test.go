package inventory

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/netsweep/netsweep/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// mockFileOps implements file.Operations for loader tests.
type mockFileOps struct {
	mock.Mock
}

func (m *mockFileOps) IsFileExists(filePath string) (bool, error) {
	args := m.Called(filePath)
	return args.Bool(0), args.Error(1)
}

func (m *mockFileOps) ReadFile(filePath string) (string, error) {
	args := m.Called(filePath)
	return args.String(0), args.Error(1)
}

func (m *mockFileOps) ReadFileRaw(filePath string) ([]byte, error) {
	args := m.Called(filePath)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFileOps) ReadYamlFile(filePath string, v any) error {
	args := m.Called(filePath, v)
	return args.Error(0)
}

func (m *mockFileOps) WriteFile(filePath string, data string) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func (m *mockFileOps) WriteFileRaw(filePath string, data []byte) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func (m *mockFileOps) WriteJsonFile(filePath string, data any) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func (m *mockFileOps) WriteYamlFile(filePath string, data any) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func testDefaults() Defaults {
	return Defaults{
		Username:   "netops",
		Password:   "default-pass",
		Auth:       models.AuthMethodPassword,
		DeviceType: models.DeviceTypeCiscoIOS,
	}
}

// TestLoadDevicesCSV_AppliesDefaultsAndOverrides tests that row values win
// over batch defaults and missing cells inherit them.
func TestLoadDevicesCSV_AppliesDefaultsAndOverrides(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := `hostname,device_type,username,password,port
switch1,,,,
switch2,juniper_junos,admin,other-pass,2222
`
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	devices, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "switch1", devices[0].Hostname)
	assert.Equal(t, models.DefaultSSHPort, devices[0].Port)
	assert.Equal(t, models.DeviceTypeCiscoIOS, devices[0].Type)
	assert.Equal(t, "netops", devices[0].Username)
	assert.Equal(t, "default-pass", devices[0].Password)

	assert.Equal(t, "switch2", devices[1].Hostname)
	assert.Equal(t, 2222, devices[1].Port)
	assert.Equal(t, models.DeviceTypeJuniperJunos, devices[1].Type)
	assert.Equal(t, "admin", devices[1].Username)
	assert.Equal(t, "other-pass", devices[1].Password)
	mockFile.AssertExpectations(t)
}

// TestLoadDevicesCSV_IPOverridesHostname tests that a populated ip column
// replaces the hostname as the dial target.
func TestLoadDevicesCSV_IPOverridesHostname(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := `hostname,ip
switch1,10.0.0.5
switch2,
`
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	devices, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", devices[0].Hostname)
	assert.Equal(t, "switch2", devices[1].Hostname)
}

// TestLoadDevicesCSV_AcceptsSemicolonDelimiter tests delimiter sniffing on
// spreadsheet exports.
func TestLoadDevicesCSV_AcceptsSemicolonDelimiter(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := "hostname;username;port\nswitch1;admin;2201\n"
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	devices, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "switch1", devices[0].Hostname)
	assert.Equal(t, "admin", devices[0].Username)
	assert.Equal(t, 2201, devices[0].Port)
}

// TestLoadDevicesCSV_NormalizesHeaders tests that padded or capitalized
// column names still map onto fields.
func TestLoadDevicesCSV_NormalizesHeaders(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := "Hostname, Device_Type ,USERNAME\nswitch1,arista-eos,admin\n"
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	devices, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, models.DeviceTypeAristaEOS, devices[0].Type)
	assert.Equal(t, "admin", devices[0].Username)
}

// TestLoadDevicesCSV_ParsesTagsAndAuth tests the tag cell and per-row auth
// method handling.
func TestLoadDevicesCSV_ParsesTagsAndAuth(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := `hostname,auth_method,key_file,tags
switch1,key,/home/netops/.ssh/id_ed25519,core;critical
`
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	devices, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, models.AuthMethodKey, devices[0].Auth)
	assert.Equal(t, "/home/netops/.ssh/id_ed25519", devices[0].KeyFile)
	assert.Equal(t, []string{"core", "critical"}, devices[0].Tags)
}

// TestLoadDevicesCSV_ReportsRowErrorsWithLineNumbers tests that a bad row
// fails the load and names its file line.
func TestLoadDevicesCSV_ReportsRowErrorsWithLineNumbers(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	csv := "hostname,port\nswitch1,22\nswitch2,not-a-port\n"
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte(csv), nil)

	// Test
	_, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "invalid port number")
}

// TestLoadDevicesCSV_RejectsEmptyInventory tests the refusal of a file
// with a header and no rows.
func TestLoadDevicesCSV_RejectsEmptyInventory(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	mockFile.On("ReadFileRaw", "devices.csv").Return([]byte("hostname,port\n"), nil)

	// Test
	_, err := LoadDevicesCSV("devices.csv", testDefaults(), mockFile)

	// Verify
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devices found")
}

// TestLoadDevicesCSV_ConcurrentLoads tests that simultaneous loads with
// different delimiters do not disturb each other's parser configuration.
func TestLoadDevicesCSV_ConcurrentLoads(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	mockFile.On("ReadFileRaw", "comma.csv").Return([]byte("hostname,port\nswitch1,2201\n"), nil)
	mockFile.On("ReadFileRaw", "semicolon.csv").Return([]byte("hostname;port\nswitch2;2202\n"), nil)

	load := func(path string, wantPort int) error {
		devices, err := LoadDevicesCSV(path, testDefaults(), mockFile)
		if err != nil {
			return err
		}
		if devices[0].Port != wantPort {
			return fmt.Errorf("%s parsed wrong: %+v", path, devices[0])
		}
		return nil
	}

	// Test
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- load("comma.csv", 2201)
		}()
		go func() {
			defer wg.Done()
			errs <- load("semicolon.csv", 2202)
		}()
	}
	wg.Wait()
	close(errs)

	// Verify
	for err := range errs {
		assert.NoError(t, err)
	}
}

// TestLoadDevicesCSV_PropagatesReadError tests the error path for an
// unreadable inventory file.
func TestLoadDevicesCSV_PropagatesReadError(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	mockFile.On("ReadFileRaw", "missing.csv").Return(nil, errors.New("no such file"))

	// Test
	_, err := LoadDevicesCSV("missing.csv", testDefaults(), mockFile)

	// Verify
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read device inventory")
}

// TestLoadDevicesYAML_AppliesDefaults tests the YAML inventory loader with
// the same defaulting rules as CSV.
func TestLoadDevicesYAML_AppliesDefaults(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	doc := `devices:
  - hostname: switch1
  - hostname: fw1
    ip: 192.0.2.9
    device_type: fortinet
    username: secadmin
    port: 2222
    tags: [edge, firewall]
`
	mockFile.On("ReadYamlFile", "devices.yml", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, yaml.Unmarshal([]byte(doc), args.Get(1)))
		}).
		Return(nil)

	// Test
	devices, err := LoadDevicesYAML("devices.yml", testDefaults(), mockFile)

	// Verify
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "switch1", devices[0].Hostname)
	assert.Equal(t, models.DeviceTypeCiscoIOS, devices[0].Type)
	assert.Equal(t, "netops", devices[0].Username)

	assert.Equal(t, "192.0.2.9", devices[1].Hostname)
	assert.Equal(t, 2222, devices[1].Port)
	assert.Equal(t, models.DeviceTypeFortinet, devices[1].Type)
	assert.Equal(t, "secadmin", devices[1].Username)
	assert.Equal(t, []string{"edge", "firewall"}, devices[1].Tags)
}

// TestLoadDevicesYAML_RejectsEntryWithoutHostname tests per-entry
// validation with the entry index in the error.
func TestLoadDevicesYAML_RejectsEntryWithoutHostname(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	doc := "devices:\n  - hostname: switch1\n  - username: admin\n"
	mockFile.On("ReadYamlFile", "devices.yml", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, yaml.Unmarshal([]byte(doc), args.Get(1)))
		}).
		Return(nil)

	// Test
	_, err := LoadDevicesYAML("devices.yml", testDefaults(), mockFile)

	// Verify
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devices[1]")
	assert.Contains(t, err.Error(), "hostname is required")
}

// TestLoadDevices_DispatchesOnExtension tests that .yml paths take the
// YAML loader and everything else parses as CSV.
func TestLoadDevices_DispatchesOnExtension(t *testing.T) {
	// Setup mocks
	mockFile := new(mockFileOps)
	mockFile.On("ReadYamlFile", "devices.yml", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, yaml.Unmarshal([]byte("devices:\n  - hostname: switch1\n"), args.Get(1)))
		}).
		Return(nil)
	mockFile.On("ReadFileRaw", "devices.txt").Return([]byte("hostname\nswitch2\n"), nil)

	// Test
	fromYAML, yamlErr := LoadDevices("devices.yml", testDefaults(), mockFile)
	fromCSV, csvErr := LoadDevices("devices.txt", testDefaults(), mockFile)

	// Verify
	require.NoError(t, yamlErr)
	require.NoError(t, csvErr)
	assert.Equal(t, "switch1", fromYAML[0].Hostname)
	assert.Equal(t, "switch2", fromCSV[0].Hostname)
	mockFile.AssertExpectations(t)
}

// TestValidateDevices_FindsDuplicatesAndMissingCredentials tests the
// cross-device checks the engine itself never performs.
func TestValidateDevices_FindsDuplicatesAndMissingCredentials(t *testing.T) {
	devices := []models.Device{
		{Hostname: "switch1", Port: 22, Username: "admin", Password: "pass", Auth: models.AuthMethodPassword},
		{Hostname: "switch1", Port: 22, Username: "admin", Password: "pass", Auth: models.AuthMethodPassword},
		{Hostname: "switch2", Port: 22, Auth: models.AuthMethodPassword},
		{Hostname: "switch3", Port: 22, Username: "admin", Auth: models.AuthMethodKey},
	}

	// Test
	problems := ValidateDevices(devices)

	// Verify
	require.Len(t, problems, 4)
	assert.Contains(t, problems[0], "duplicate devices found: switch1:22")
	assert.Contains(t, problems[1], "switch2: username is required")
	assert.Contains(t, problems[2], "switch2: password required")
	assert.Contains(t, problems[3], "switch3: key file required")
}

// TestValidateDevices_AcceptsCleanInventory tests the no-problem path.
func TestValidateDevices_AcceptsCleanInventory(t *testing.T) {
	devices := []models.Device{
		{Hostname: "switch1", Port: 22, Username: "admin", Password: "pass", Auth: models.AuthMethodPassword},
		{Hostname: "switch1", Port: 2222, Username: "admin", KeyFile: "/keys/id_rsa", Auth: models.AuthMethodKey},
	}

	assert.Empty(t, ValidateDevices(devices))
	assert.Equal(t, []string{"no devices provided"}, ValidateDevices(nil))
}

// TestFilterByTags tests tag-based inventory narrowing.
func TestFilterByTags(t *testing.T) {
	devices := []models.Device{
		{Hostname: "switch1", Tags: []string{"core"}},
		{Hostname: "switch2", Tags: []string{"edge"}},
		{Hostname: "switch3", Tags: []string{"edge", "lab"}},
		{Hostname: "switch4"},
	}

	// Test
	edge := FilterByTags(devices, []string{"edge"})
	all := FilterByTags(devices, nil)

	// Verify
	require.Len(t, edge, 2)
	assert.Equal(t, "switch2", edge[0].Hostname)
	assert.Equal(t, "switch3", edge[1].Hostname)
	assert.Len(t, all, 4)
}

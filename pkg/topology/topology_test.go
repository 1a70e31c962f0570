package topology_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/topology"
)

const validConfig = `
server:
  port: 8080
tuyaDeviceTypes:
  thermometer:
    dataPoints:
      1:
        name: temperature
        multiplier: 0.1
        floatPrecision: 1
        unit: "°C"
      2:
        name: humidity
        unit: "%"
  empty: {}
tuyaDevices:
  hub:
    deviceType: gateway
    deviceId: hub-id
    address: 192.168.1.10
    localKey: secret
    version: 3.3
  bedroom:
    deviceType: thermometer
    deviceId: bedroom-id
    cid: a4c138
    parent: hub
  placeholder:
    deviceType: empty
    deviceId: placeholder-id
prometheusExporter:
  tuyaDevices:
    bedroom:
      measurements: [temperature, humidity]
  requestEverySec: 30
`

func load(t *testing.T, cfg string) (*topology.Document, error) {
	t.Helper()
	return topology.Load(strings.NewReader(cfg))
}

func TestLoad(t *testing.T) {
	doc, err := load(t, validConfig)
	require.NoError(t, err)

	topo := doc.Topology
	require.Len(t, topo.Devices, 3)
	require.Len(t, topo.DeviceTypes, 2)

	bedroom, ok := topo.Device("bedroom")
	require.True(t, ok)
	assert.Equal(t, "bedroom", bedroom.Name)
	assert.Equal(t, "hub", bedroom.Parent)
	assert.Equal(t, "a4c138", bedroom.CID)

	hub, _ := topo.Device("hub")
	require.NotNil(t, hub.Version)
	assert.InDelta(t, 3.3, *hub.Version, 1e-9)
	assert.True(t, hub.IsSentinel())

	dps := topo.DataPoints("bedroom")
	require.Len(t, dps, 2)
	assert.Equal(t, 1, dps[0].Index)
	assert.Equal(t, "temperature", dps[0].Name)
	assert.InDelta(t, 0.1, *dps[0].Multiplier, 1e-9)
	assert.Equal(t, 1, *dps[0].FloatPrecision)
	assert.Equal(t, "°C", *dps[0].Unit)
	assert.Equal(t, 2, dps[1].Index)
	assert.Nil(t, dps[1].Multiplier)

	assert.Empty(t, topo.DataPoints("hub"))
	assert.Empty(t, topo.DataPoints("placeholder"))
	assert.Empty(t, topo.DataPoints("missing"))

	require.NotNil(t, doc.Exporter)
	assert.Equal(t, 30*time.Second, doc.Exporter.Interval())
	assert.Equal(t, []string{"bedroom"}, doc.Exporter.DeviceNames())
}

func TestLoadDeterministic(t *testing.T) {
	first, err := load(t, validConfig)
	require.NoError(t, err)
	second, err := load(t, validConfig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadWithoutExporter(t *testing.T) {
	doc, err := load(t, `
tuyaDevices:
  hub:
    deviceType: gateway
    deviceId: hub-id
`)
	require.NoError(t, err)
	assert.Nil(t, doc.Exporter)
}

func TestLoadEmpty(t *testing.T) {
	doc, err := load(t, "")
	require.NoError(t, err)
	assert.Empty(t, doc.Topology.Devices)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	doc, err := topology.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Topology.Devices, 3)

	_, err = topology.LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestLoadExampleConfig(t *testing.T) {
	doc, err := topology.LoadFile(filepath.Join("..", "..", "config.example.yml"))
	require.NoError(t, err)

	chain, ok := doc.Topology.ParentChain("bedroom")
	require.True(t, ok)
	require.Len(t, chain, 2)
	assert.Equal(t, "hub", chain[0].Name)
	assert.Equal(t, []string{"bedroom"}, doc.Exporter.DeviceNames())
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name     string
		config   string
		contains string
	}{
		{
			name: "unknown_device_type",
			config: `
tuyaDevices:
  bedroom:
    deviceType: thermometer
    deviceId: id
`,
			contains: "unknown type 'thermometer'",
		},
		{
			name: "unknown_parent",
			config: `
tuyaDevices:
  bedroom:
    deviceType: gateway
    deviceId: id
    parent: hub
`,
			contains: "unknown parent 'hub'",
		},
		{
			name: "parent_cycle",
			config: `
tuyaDevices:
  a:
    deviceType: gateway
    deviceId: a
    parent: b
  b:
    deviceType: gateway
    deviceId: b
    parent: a
`,
			contains: "parent cycle",
		},
		{
			name: "self_parent",
			config: `
tuyaDevices:
  a:
    deviceType: gateway
    deviceId: a
    parent: a
`,
			contains: "parent cycle",
		},
		{
			name: "missing_device_id",
			config: `
tuyaDevices:
  a:
    deviceType: gateway
`,
			contains: "device 'a'",
		},
		{
			name: "unknown_field",
			config: `
tuyaDevices:
  a:
    deviceType: gateway
    deviceId: a
    colour: red
`,
			contains: "colour",
		},
		{
			name: "duplicate_index",
			config: `
tuyaDeviceTypes:
  t:
    dataPoints:
      1: {name: a}
      1: {name: b}
`,
			contains: "already defined",
		},
		{
			name: "duplicate_data_point_name",
			config: `
tuyaDeviceTypes:
  t:
    dataPoints:
      1: {name: a}
      2: {name: a}
`,
			contains: "duplicate data point name 'a'",
		},
		{
			name: "reserved_type_name",
			config: `
tuyaDeviceTypes:
  gateway:
    dataPoints:
      1: {name: a}
`,
			contains: "reserved",
		},
		{
			name: "negative_precision",
			config: `
tuyaDeviceTypes:
  t:
    dataPoints:
      1: {name: a, floatPrecision: -1}
`,
			contains: "data point 1",
		},
		{
			name: "exporter_unknown_device",
			config: `
prometheusExporter:
  tuyaDevices:
    ghost:
      measurements: [temperature]
  requestEverySec: 10
`,
			contains: "unknown device 'ghost'",
		},
		{
			name: "exporter_unknown_measurement",
			config: `
tuyaDeviceTypes:
  t:
    dataPoints:
      1: {name: temperature}
tuyaDevices:
  a:
    deviceType: t
    deviceId: a
prometheusExporter:
  tuyaDevices:
    a:
      measurements: [pressure]
  requestEverySec: 10
`,
			contains: "no data point 'pressure'",
		},
		{
			name: "exporter_zero_interval",
			config: `
tuyaDevices:
  a:
    deviceType: gateway
    deviceId: a
prometheusExporter:
  tuyaDevices:
    a:
      measurements: [x]
`,
			contains: "prometheusExporter",
		},
		{
			name:     "malformed_yaml",
			config:   "tuyaDevices: [",
			contains: "decode config",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := load(t, tc.config)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, errors.ErrConfig), "expected config error, got %v", err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestParentChain(t *testing.T) {
	doc, err := load(t, `
tuyaDevices:
  root:
    deviceType: gateway
    deviceId: root
  middle:
    deviceType: gateway
    deviceId: middle
    parent: root
  leaf:
    deviceType: unknown
    deviceId: leaf
    parent: middle
`)
	require.NoError(t, err)

	chain, ok := doc.Topology.ParentChain("leaf")
	require.True(t, ok)
	var names []string
	for _, d := range chain {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"root", "middle", "leaf"}, names)

	_, ok = doc.Topology.ParentChain("missing")
	assert.False(t, ok)
}

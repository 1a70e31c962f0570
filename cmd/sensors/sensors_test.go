package sensors

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuya-sensors/pkg/errors"
)

const configTemplate = `
tuya:
  bridge_url: %s
  timeout: 2s
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
        unit: "%%"
tuyaDevices:
  hub:
    deviceType: gateway
    deviceId: hub-id
    address: 10.0.0.2
  bedroom:
    deviceType: thermometer
    deviceId: bedroom-id
    cid: c1
    parent: hub
%s`

func setupBridge(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dps": {"1": 215, "2": 48}}`))
	})
	mux.HandleFunc("/subdev-query", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"online": ["c1"]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, bridgeURL, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, bridgeURL, extra)), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := execute(context.Background(), root, args)
	return stdout.String(), stderr.String(), err
}

func TestGetTuya(t *testing.T) {
	bridge := setupBridge(t)
	path := writeConfig(t, bridge.URL, "")

	stdout, _, err := run(t, "-c", path, "get-tuya", "bedroom")
	require.NoError(t, err)
	assert.Equal(t, "temperature: 21.5°C\nhumidity: 48%\n", stdout)
}

func TestGetTuyaNoUnit(t *testing.T) {
	bridge := setupBridge(t)
	path := writeConfig(t, bridge.URL, "")

	stdout, _, err := run(t, "-c", path, "get-tuya", "bedroom", "--no-unit")
	require.NoError(t, err)
	assert.Equal(t, "temperature: 21.5\nhumidity: 48\n", stdout)
}

func TestGetTuyaNoUnitKeepsPrecision(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dps": {"1": 3, "2": 48}}`))
	})
	bridge := httptest.NewServer(mux)
	t.Cleanup(bridge.Close)
	path := writeConfig(t, bridge.URL, "")

	// 3 * 0.1 按 floatPrecision 1 输出，不出现浮点误差
	stdout, _, err := run(t, "-c", path, "get-tuya", "bedroom", "--no-unit")
	require.NoError(t, err)
	assert.Equal(t, "temperature: 0.3\nhumidity: 48\n", stdout)

	stdout, _, err = run(t, "-c", path, "get-tuya", "bedroom")
	require.NoError(t, err)
	assert.Equal(t, "temperature: 0.3°C\nhumidity: 48%\n", stdout)
}

func TestGetTuyaGateway(t *testing.T) {
	bridge := setupBridge(t)
	path := writeConfig(t, bridge.URL, "")

	stdout, _, err := run(t, "-c", path, "get-tuya", "hub")
	require.NoError(t, err)
	assert.JSONEq(t, `{"online": ["c1"]}`, stdout)
}

func TestGetTuyaUnknownDevice(t *testing.T) {
	bridge := setupBridge(t)
	path := writeConfig(t, bridge.URL, "")

	stdout, stderr, err := run(t, "-c", path, "get-tuya", "attic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArgument))
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Tuya device 'attic' doesn't exist")
}

func TestGetTuyaBridgeDown(t *testing.T) {
	bridge := setupBridge(t)
	path := writeConfig(t, bridge.URL, "")
	bridge.Close()

	_, _, err := run(t, "-c", path, "get-tuya", "bedroom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeviceIO))
}

func TestInvalidTopology(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:1", "  orphan:\n    deviceType: thermometer\n    deviceId: x\n    parent: nowhere\n")

	_, stderr, err := run(t, "-c", path, "get-tuya", "bedroom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, stderr, "nowhere")
}

func TestMissingConfigFile(t *testing.T) {
	_, stderr, err := run(t, "-c", filepath.Join(t.TempDir(), "absent.yml"), "get-tuya", "bedroom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, stderr, "Error:")
}

func TestExporterRequiresSection(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:1", "")

	_, stderr, err := run(t, "-c", path, "prometheus-exporter")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, stderr, "prometheusExporter")
}

func TestGetTuyaRequiresDevice(t *testing.T) {
	_, _, err := run(t, "get-tuya")
	assert.Error(t, err)
}

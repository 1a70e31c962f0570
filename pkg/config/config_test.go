package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuya-sensors/pkg/config"
	"github.com/tuya-sensors/pkg/errors"
)

const fileConfig = `
server:
  host: 0.0.0.0
  read_timeout: 5s
tuya:
  bridge_url: http://bridge.local:6668
  timeout: 3s
log:
  level: warn
tuyaDeviceTypes: {}
tuyaDevices: {}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newCmd(path string, args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringP("config", "c", path, "")
	cmd.Flags().Bool("debug", false, "")
	cmd.Flags().String("host", "127.0.0.1", "")
	cmd.Flags().Int("port", 8092, "")
	_ = cmd.Flags().Parse(args)
	return cmd
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 10, cfg.Server.Workers)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, fileConfig)

	cfg, err := config.LoadConfigWithCli(newCmd(path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8092, cfg.Server.Port, "flag default applies when the file has no port")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "http://bridge.local:6668", cfg.Tuya.BridgeURL)
	assert.Equal(t, 3*time.Second, cfg.Tuya.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, fileConfig)
	t.Setenv("TUYA_SENSORS_TUYA_TIMEOUT", "7s")
	t.Setenv("TUYA_SENSORS_SERVER_WORKERS", "3")

	cfg, err := config.LoadConfigWithCli(newCmd(path, "--host", "10.1.1.1", "--port", "9100", "--debug"))
	require.NoError(t, err)

	assert.Equal(t, "10.1.1.1:9100", cfg.Server.Addr())
	assert.Equal(t, 7*time.Second, cfg.Tuya.Timeout)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing_file", missing: true},
		{name: "bad_level", content: "log:\n  level: loud\n"},
		{name: "bad_port", content: "server:\n  port: 70000\n"},
		{name: "bad_bridge", content: "tuya:\n  bridge_url: ftp://bridge\n"},
		{name: "zero_workers", content: "server:\n  workers: 0\n"},
		{name: "bad_duration", content: "tuya:\n  timeout: soon\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.yml")
			if !tc.missing {
				path = writeConfig(t, tc.content)
			}
			_, err := config.LoadConfigWithCli(newCmd(path))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfig), "got %v", err)
		})
	}
}

func TestLogConfigCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = dir

	require.NoError(t, cfg.Validate())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

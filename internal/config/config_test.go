package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.FlushInterval)
	assert.Equal(t, filepath.Join(DefaultDir(), "aquarium.db"), cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Usage.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.Usage.Window)
	assert.Equal(t, time.Minute, cfg.Water.MonitorInterval)
	assert.Equal(t, 100.0, cfg.Water.ResetTurbidity)
	assert.Equal(t, 2.0, cfg.Water.IncreaseRate)
	assert.Equal(t, 0.5, cfg.Water.DecreaseRate)
	assert.Equal(t, 2*time.Second, cfg.Fish.PositionInterval)
	assert.Equal(t, 10*time.Second, cfg.Fish.PhaseInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Telemetry.Dir)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: file
water:
  reset_turbidity: 0
  increase_rate: 3
log:
  level: debug
`), 0644))

	t.Setenv("CALMAQUARIUM_WATER_INCREASE_RATE", "4")
	t.Setenv("CALMAQUARIUM_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "error"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver, "from file")
	assert.Equal(t, 0.0, cfg.Water.ResetTurbidity, "zero is a valid reset value")
	assert.Equal(t, 4.0, cfg.Water.IncreaseRate, "env beats file")
	assert.Equal(t, "error", cfg.Log.Level, "flag beats env")
}

func TestLoad_UnsetFlagKeepsDefault(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("CALMAQUARIUM_TELEMETRY_DIR", "~/ticks")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "ticks"), cfg.Telemetry.Dir)
}

func TestWriteYAML(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "poll_interval: 30s")

	var back map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "sqlite", back["store"]["driver"])
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "component", "water")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json format")
	assert.Contains(t, out, `"component":"water"`)
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aquarium.log")
	f, err := OpenLogFile(LogConfig{File: path})
	require.NoError(t, err)
	defer f.Close()

	SetupLogger(LogConfig{}, f).Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmaquarium/internal/aquarium"
	"calmaquarium/internal/config"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/store"
)

const testFeed = `permission: true
apps:
  - package: com.zhiliaoapp.musically
    name: TikTok
    foreground: 12m
installed:
  - package: com.zhiliaoapp.musically
    name: TikTok
  - package: org.wikipedia
    name: Wikipedia
  - package: com.android.settings
    name: Settings
    system: true
`

// cli runs commands against one data directory
type cli struct {
	t     *testing.T
	flags []string
}

func newCLI(t *testing.T, driver string) *cli {
	t.Helper()
	dir := t.TempDir()
	feed := filepath.Join(dir, "usage.yaml")
	require.NoError(t, os.WriteFile(feed, []byte(testFeed), 0644))

	return &cli{t: t, flags: []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--driver", driver,
		"--db", filepath.Join(dir, "aquarium.db"),
		"--usage-feed", feed,
		"--log-file", filepath.Join(dir, "aquarium.log"),
	}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(append([]string{}, c.flags...), args...), &stdout, &stderr)
	return stdout.String() + stderr.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestAdoptAndStatus(t *testing.T) {
	for _, driver := range []string{store.DriverFile, store.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c := newCLI(t, driver)

			out := c.mustRun("status")
			assert.Contains(t, out, "empty")

			out = c.mustRun("adopt", "Nemo", "--personality", "Calm")
			assert.Contains(t, out, "Welcome, Nemo! (calm)")

			out = c.mustRun("status")
			assert.Contains(t, out, "Nemo")
			assert.Contains(t, out, "calm")

			_, err := c.run("adopt", "Dory")
			assert.ErrorIs(t, err, aquarium.ErrPetAlive)
		})
	}
}

func TestAdoptValidation(t *testing.T) {
	c := newCLI(t, store.DriverFile)

	_, err := c.run("adopt")
	assert.ErrorIs(t, err, errUsage)

	_, err = c.run("adopt", "Nemo", "--personality", "grumpy")
	assert.ErrorIs(t, err, pet.ErrInvalidPersonality)

	_, err = c.run("adopt", "   ")
	assert.ErrorIs(t, err, pet.ErrInvalidName)
}

func TestRestrictAndApps(t *testing.T) {
	c := newCLI(t, store.DriverFile)

	out := c.mustRun("restrict", "com.zhiliaoapp.musically", "--daily", "45m")
	assert.Contains(t, out, "45m0s a day")

	// Limits are clamped to the offered range
	out = c.mustRun("restrict", "com.example.game", "--daily", "5m")
	assert.Contains(t, out, "15m0s a day")

	out = c.mustRun("apps")
	assert.Contains(t, out, "Wikipedia")
	assert.NotContains(t, out, "Settings", "system apps are hidden")
	assert.Contains(t, out, "🔒 45m0s/day")
	assert.Contains(t, out, "com.example.game")
	assert.Contains(t, out, "not installed")

	out = c.mustRun("restrict", "com.example.game", "--off")
	assert.Contains(t, out, "no longer restricted")

	_, err := c.run("restrict", "com.example.game", "--off")
	assert.ErrorIs(t, err, aquarium.ErrUnknownApp)
}

func TestStatusShowsRestrictedUsage(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	c.mustRun("adopt", "Nemo")
	c.mustRun("restrict", "com.zhiliaoapp.musically")

	out := c.mustRun("status")
	assert.Contains(t, out, "TikTok 12m / 30m")
}

func TestWaterChange(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	out := c.mustRun("water-change")
	assert.Contains(t, out, "Turbidity 100%")
}

func TestMemorialEmpty(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	out := c.mustRun("memorial")
	assert.Contains(t, out, "No fish have died yet")
}

func TestNotifications(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	assert.Contains(t, c.mustRun("notifications", "off"), "Alerts off")
	assert.Contains(t, c.mustRun("notifications", "on"), "Alerts on")

	_, err := c.run("notifications", "maybe")
	assert.ErrorIs(t, err, errUsage)
}

func TestConfigCommand(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	out := c.mustRun("config", "--log-level", "debug")
	assert.Contains(t, out, "driver: file")
	assert.Contains(t, out, "level: debug")
}

func TestUnknownCommand(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	out, err := c.run("feed")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, `unknown command "feed"`)
	assert.Contains(t, out, "water-change")
}

func TestRunDefaultsToTUI(t *testing.T) {
	orig := runTUI
	t.Cleanup(func() { runTUI = orig })

	var got *aquarium.Session
	runTUI = func(ctx context.Context, sess *aquarium.Session) error {
		got = sess
		return nil
	}

	c := newCLI(t, store.DriverFile)
	c.mustRun()
	require.NotNil(t, got)
	assert.Equal(t, 100.0, got.Status().Water.Turbidity, "fresh tank")
}

func TestStorePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "state.json"),
		storePath(config.StoreConfig{Driver: store.DriverFile, Path: filepath.Join("data", "aquarium.db")}))
	assert.Equal(t, "aquarium.db", storePath(config.StoreConfig{Driver: store.DriverSQLite, Path: "aquarium.db"}))
}

func TestLogsGoToFile(t *testing.T) {
	c := newCLI(t, store.DriverFile)
	c.mustRun("adopt", "Nemo")

	var logFile string
	for i, f := range c.flags {
		if f == "--log-file" {
			logFile = c.flags[i+1]
		}
	}
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "pet created"), string(data))
}

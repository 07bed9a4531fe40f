// Package config loads aquarium settings from defaults, an optional YAML file,
// CALMAQUARIUM_* environment variables and command-line flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppDir is the directory name under ~/.config
const AppDir = "calmaquarium"

// EnvPrefix for environment overrides, e.g. CALMAQUARIUM_STORE_DRIVER
const EnvPrefix = "CALMAQUARIUM"

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Usage     UsageConfig     `mapstructure:"usage" yaml:"usage"`
	Water     WaterConfig     `mapstructure:"water" yaml:"water"`
	Fish      FishConfig      `mapstructure:"fish" yaml:"fish"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// StoreConfig selects where the snapshot lives.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"` // sqlite or file
	Path          string        `mapstructure:"path" yaml:"path"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// UsageConfig configures the usage feed and poller.
type UsageConfig struct {
	FeedPath     string        `mapstructure:"feed_path" yaml:"feed_path"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Window       time.Duration `mapstructure:"window" yaml:"window"`
}

// WaterConfig holds the turbidity model parameters.
type WaterConfig struct {
	MonitorInterval time.Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
	ResetTurbidity  float64       `mapstructure:"reset_turbidity" yaml:"reset_turbidity"`
	IncreaseRate    float64       `mapstructure:"increase_rate" yaml:"increase_rate"` // per usage minute
	DecreaseRate    float64       `mapstructure:"decrease_rate" yaml:"decrease_rate"` // per idle minute
}

// FishConfig holds animation timer intervals.
type FishConfig struct {
	PositionInterval time.Duration `mapstructure:"position_interval" yaml:"position_interval"`
	PhaseInterval    time.Duration `mapstructure:"phase_interval" yaml:"phase_interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"` // empty logs to stderr
}

// TelemetryConfig enables the per-tick CSV.
type TelemetryConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// =============================================================================
// Config Loading
// =============================================================================

// DefaultDir returns ~/.config/calmaquarium, or a relative directory if the
// home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppDir
	}
	return filepath.Join(home, ".config", AppDir)
}

// DefaultPath is the config file read when --config is not given
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// flag name -> config key
var flagKeys = map[string]string{
	"driver":        "store.driver",
	"db":            "store.path",
	"usage-feed":    "usage.feed_path",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"telemetry-dir": "telemetry.dir",
}

// RegisterFlags adds the global flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default "+DefaultPath()+")")
	fs.String("driver", "", "storage driver: sqlite or file")
	fs.String("db", "", "storage path")
	fs.String("usage-feed", "", "usage feed YAML file")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text or json")
	fs.String("log-file", "", "log file path")
	fs.String("telemetry-dir", "", "directory for ticks.csv (empty disables)")
}

// Load loads configuration from file, environment and flags. Flags win over
// environment, which wins over the file. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	dir := DefaultDir()

	// Set defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(dir, "aquarium.db"))
	v.SetDefault("store.flush_interval", "5s")
	v.SetDefault("usage.feed_path", filepath.Join(dir, "usage.yaml"))
	v.SetDefault("usage.poll_interval", "30s")
	v.SetDefault("usage.window", "24h")
	v.SetDefault("water.monitor_interval", "60s")
	v.SetDefault("water.reset_turbidity", 100.0)
	v.SetDefault("water.increase_rate", 2.0)
	v.SetDefault("water.decrease_rate", 0.5)
	v.SetDefault("fish.position_interval", "2s")
	v.SetDefault("fish.phase_interval", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", filepath.Join(dir, "aquarium.log"))
	v.SetDefault("telemetry.dir", "")

	if configPath != "" {
		v.SetConfigFile(expandHome(configPath))
		if err := v.ReadInConfig(); err != nil {
			// A missing file means defaults; a broken one is an error
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Usage.FeedPath = expandHome(cfg.Usage.FeedPath)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Telemetry.Dir = expandHome(cfg.Telemetry.Dir)

	return &cfg, nil
}

// WriteYAML dumps the effective configuration
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return enc.Close()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing to w.
func SetupLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// OpenLogFile opens cfg.File for appending, creating its directory. The
// caller closes the file.
func OpenLogFile(cfg LogConfig) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

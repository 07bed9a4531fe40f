package usage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"calmaquarium/internal/clock"
)

var (
	// ErrNoPermission is returned when usage access has not been granted
	ErrNoPermission = errors.New("usage access permission not granted")

	// ErrUnavailable is returned when the usage service cannot be reached
	ErrUnavailable = errors.New("usage service unavailable")
)

// Source supplies usage samples from the platform
type Source interface {
	// HasPermission reports whether usage access is granted
	HasPermission(ctx context.Context) (bool, error)

	// UsageStats returns usage aggregated over [now-window, now].
	// Apps without foreground time are omitted.
	UsageStats(ctx context.Context, window time.Duration) ([]AppUsageData, error)

	// InstalledApps lists user (non-system) apps
	InstalledApps(ctx context.Context) ([]InstalledApp, error)
}

// feed is the on-disk format read by FileSource
type feed struct {
	Permission *bool          `yaml:"permission"`
	Apps       []feedApp      `yaml:"apps"`
	Installed  []InstalledApp `yaml:"installed"`
}

type feedApp struct {
	AppUsageData `yaml:",inline"`
	System       bool `yaml:"system"`
}

// FileSource reads usage from a YAML feed written by an external collector.
// It stands in for the OS usage-stats bridge on desktop.
type FileSource struct {
	path  string
	clock clock.Clock
}

// NewFileSource creates a source reading path
func NewFileSource(path string, clk clock.Clock) *FileSource {
	return &FileSource{path: path, clock: clk}
}

// Path returns the feed location
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) read() (*feed, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read usage feed %s: %w", s.path, errors.Join(ErrUnavailable, err))
	}
	var f feed
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse usage feed %s: %w", s.path, errors.Join(ErrUnavailable, err))
	}
	return &f, nil
}

// HasPermission implements Source. A feed without a permission key grants access.
func (s *FileSource) HasPermission(ctx context.Context) (bool, error) {
	f, err := s.read()
	if err != nil {
		return false, err
	}
	return f.Permission == nil || *f.Permission, nil
}

// UsageStats implements Source
func (s *FileSource) UsageStats(ctx context.Context, window time.Duration) ([]AppUsageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.read()
	if err != nil {
		return nil, err
	}
	if f.Permission != nil && !*f.Permission {
		return nil, ErrNoPermission
	}

	since := s.clock.Now().Add(-window)
	var out []AppUsageData
	for _, app := range f.Apps {
		if app.DailyUsage <= 0 {
			continue
		}
		if !app.LastUsed.IsZero() && app.LastUsed.Before(since) {
			continue
		}
		out = append(out, app.AppUsageData)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out, nil
}

// InstalledApps implements Source. Apps named in the usage list count as
// installed too.
func (s *FileSource) InstalledApps(ctx context.Context) ([]InstalledApp, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []InstalledApp
	add := func(app InstalledApp) {
		if app.System || app.AppID == "" || seen[app.AppID] {
			return
		}
		seen[app.AppID] = true
		if app.AppName == "" {
			app.AppName = app.AppID
		}
		out = append(out, app)
	}
	for _, app := range f.Installed {
		add(app)
	}
	for _, app := range f.Apps {
		add(InstalledApp{AppID: app.AppID, AppName: app.AppName, System: app.System})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppName < out[j].AppName })
	return out, nil
}

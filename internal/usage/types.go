// Package usage models restricted-app usage samples and the sources that
// produce them.
package usage

import (
	"time"
)

// Restriction defaults and the bounds offered by the front end.
// The simulation itself consumes whatever limit it is given.
const (
	DefaultDailyLimit  = 30 * time.Minute
	DefaultWeeklyLimit = 3 * time.Hour

	MinDailyLimit  = 15 * time.Minute
	MaxDailyLimit  = 90 * time.Minute
	MinWeeklyLimit = 1 * time.Hour
	MaxWeeklyLimit = 10 * time.Hour

	DefaultPollInterval = 30 * time.Second
	DefaultWindow       = 24 * time.Hour
)

// AppUsageData is one point-in-time sample for an app.
// DailyUsage is cumulative foreground time, not a delta.
type AppUsageData struct {
	AppID       string        `json:"app_id" yaml:"package"`
	AppName     string        `json:"app_name,omitempty" yaml:"name"`
	DailyUsage  time.Duration `json:"daily_usage" yaml:"foreground"`
	WeeklyUsage time.Duration `json:"weekly_usage,omitempty" yaml:"weekly"`
	LastUsed    time.Time     `json:"last_used" yaml:"last_used"`
}

// DisplayName returns the app name, falling back to the package id
func (d AppUsageData) DisplayName() string {
	if d.AppName != "" {
		return d.AppName
	}
	return d.AppID
}

// AppRestriction is the per-app limit configuration
type AppRestriction struct {
	AppID       string        `json:"app_id"`
	AppName     string        `json:"app_name,omitempty"`
	DailyLimit  time.Duration `json:"daily_limit"`
	WeeklyLimit time.Duration `json:"weekly_limit"`
	IsActive    bool          `json:"is_active"`
}

// NewRestriction returns an active restriction with default limits
func NewRestriction(appID, appName string) AppRestriction {
	return AppRestriction{
		AppID:       appID,
		AppName:     appName,
		DailyLimit:  DefaultDailyLimit,
		WeeklyLimit: DefaultWeeklyLimit,
		IsActive:    true,
	}
}

// ClampLimits bounds the limits to the ranges offered by the front end
func (r AppRestriction) ClampLimits() AppRestriction {
	r.DailyLimit = clampDuration(r.DailyLimit, MinDailyLimit, MaxDailyLimit)
	r.WeeklyLimit = clampDuration(r.WeeklyLimit, MinWeeklyLimit, MaxWeeklyLimit)
	return r
}

// InstalledApp describes a user-installed application
type InstalledApp struct {
	AppID   string `json:"app_id" yaml:"package"`
	AppName string `json:"app_name" yaml:"name"`
	System  bool   `json:"-" yaml:"system"`
}

// DailyLimits returns appID -> daily limit for active restrictions
func DailyLimits(restrictions []AppRestriction) map[string]time.Duration {
	limits := make(map[string]time.Duration, len(restrictions))
	for _, r := range restrictions {
		if r.IsActive {
			limits[r.AppID] = r.DailyLimit
		}
	}
	return limits
}

// FilterRestricted keeps the samples of apps with an active restriction
func FilterRestricted(samples []AppUsageData, restrictions []AppRestriction) []AppUsageData {
	limits := DailyLimits(restrictions)
	var out []AppUsageData
	for _, s := range samples {
		if _, ok := limits[s.AppID]; ok {
			out = append(out, s)
		}
	}
	return out
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package pet

import (
	"calmaquarium/internal/health"
)

// DetermineDeath picks the reason and cause for a death from the usage
// analysis of the fatal tick. apps must be sorted by ratio, highest first,
// as health.AnalyzeUsage returns them.
func DetermineDeath(apps []health.AppUsage, usageDamage float64) (DeathReason, string) {
	for _, a := range apps {
		if a.State == health.LimitExceeded {
			return DeathTimeLimitExceeded, a.AppName
		}
	}

	if usageDamage > 0 {
		var top *health.AppUsage
		for i := range apps {
			if apps[i].Usage <= 0 {
				continue
			}
			if top == nil || apps[i].Usage > top.Usage {
				top = &apps[i]
			}
		}
		if top != nil {
			return DeathAppOveruse, top.AppName
		}
	}

	return DeathNeglect, NeglectCause
}

package pet

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LifetimeSummary aggregates memorial lifetimes
type LifetimeSummary struct {
	Count       int
	Mean        time.Duration
	StdDev      time.Duration
	Longest     time.Duration
	LongestName string
}

// SummarizeLifetimes computes lifetime statistics over the memorial
func SummarizeLifetimes(dead []DeadPet) LifetimeSummary {
	if len(dead) == 0 {
		return LifetimeSummary{}
	}

	minutes := make([]float64, len(dead))
	summary := LifetimeSummary{Count: len(dead)}
	for i, d := range dead {
		minutes[i] = d.TotalLifetime.Minutes()
		if d.TotalLifetime > summary.Longest || summary.LongestName == "" {
			summary.Longest = d.TotalLifetime
			summary.LongestName = d.Name
		}
	}

	mean, std := stat.MeanStdDev(minutes, nil)
	if math.IsNaN(std) {
		std = 0
	}
	summary.Mean = minutesToDuration(mean)
	summary.StdDev = minutesToDuration(std)
	return summary
}

func minutesToDuration(m float64) time.Duration {
	return time.Duration(math.Round(m * float64(time.Minute)))
}

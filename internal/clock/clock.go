// Package clock provides the time source and interval scheduler shared by the
// simulation managers. Production code uses Real; tests drive Manual.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// Scheduler runs fn every interval until the returned stop func is called.
// Stop is idempotent and safe to call from inside fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// Source is a Clock that can also schedule work
type Source interface {
	Clock
	Scheduler
}

// Real is backed by the system clock and time.Ticker
type Real struct{}

// NewReal creates a system clock
func NewReal() *Real {
	return &Real{}
}

// Now returns the local wall-clock time
func (r *Real) Now() time.Time {
	return time.Now()
}

// Every starts a goroutine that calls fn on each tick
func (r *Real) Every(interval time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A stop racing with a tick must not produce one more callback
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}

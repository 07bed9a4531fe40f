package clock

import "log/slog"

// Guarded wraps a scheduled task so a panic is logged instead of killing the
// ticker. The next interval runs as usual.
func Guarded(logger *slog.Logger, task string, fn func()) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("scheduled task panicked", "task", task, "panic", r)
			}
		}()
		fn()
	}
}

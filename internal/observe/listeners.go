// Package observe provides the subscription list used by the managers to
// publish state snapshots.
package observe

import (
	"log/slog"
	"sort"
	"sync"
)

// Listeners is a set of callbacks receiving values of type T.
// Callbacks are invoked in registration order, outside the internal lock.
type Listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
	logger *slog.Logger
}

// New creates an empty listener set. A panicking callback is logged to logger
// and does not prevent delivery to the others.
func New[T any](logger *slog.Logger) *Listeners[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listeners[T]{
		fns:    make(map[int]func(T)),
		logger: logger,
	}
}

// Add registers fn and returns a func removing it. The remover is idempotent.
func (l *Listeners[T]) Add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Len returns the number of registered callbacks
func (l *Listeners[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// Emit delivers v to every registered callback
func (l *Listeners[T]) Emit(v T) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		l.call(fn, v)
	}
}

func (l *Listeners[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("listener panicked", "panic", r)
		}
	}()
	fn(v)
}

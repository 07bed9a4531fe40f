package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"calmaquarium/internal/clock"
)

// DefaultFlushInterval between debounced writes
const DefaultFlushInterval = 5 * time.Second

// Writer batches snapshot writes. Queued snapshots are written on the next
// flush; only the latest one is kept. SaveAll writes synchronously. Writes
// never overlap, so a flush cannot land after a newer full save.
type Writer struct {
	store     Store
	scheduler clock.Scheduler
	interval  time.Duration
	logger    *slog.Logger
	writing   *semaphore.Weighted

	mu       sync.Mutex
	pending  *Snapshot
	sections map[Section]bool // nil means every section
	stop     func()
}

// NewWriter creates a writer for store
func NewWriter(store Store, scheduler clock.Scheduler, interval time.Duration, logger *slog.Logger) *Writer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:     store,
		scheduler: scheduler,
		interval:  interval,
		logger:    logger.With("component", "writer"),
		writing:   semaphore.NewWeighted(1),
	}
}

// Queue marks snap dirty. Sections accumulate until the next flush; no
// sections means all of them.
func (w *Writer) Queue(snap *Snapshot, sections ...Section) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all := w.pending != nil && w.sections == nil
	w.pending = snap
	if len(sections) == 0 || all {
		w.sections = nil
		return
	}
	if w.sections == nil {
		w.sections = make(map[Section]bool, len(sections))
	}
	for _, s := range sections {
		w.sections[s] = true
	}
}

// Dirty reports whether a queued snapshot is waiting
func (w *Writer) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// Flush writes the queued snapshot, if any. On failure the snapshot stays
// queued unless a newer one replaced it.
func (w *Writer) Flush(ctx context.Context) error {
	if err := w.writing.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.writing.Release(1)

	w.mu.Lock()
	snap, sections := w.pending, w.takeSectionsLocked()
	w.pending = nil
	w.mu.Unlock()

	if snap == nil {
		return nil
	}

	if err := w.store.Save(ctx, snap, sections...); err != nil {
		w.logger.Error("failed to flush snapshot", "error", err)
		w.mu.Lock()
		if w.pending == nil {
			w.pending = snap
			w.sections = nil
		}
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("snapshot flushed", "sections", len(sections))
	return nil
}

// SaveAll writes every section of snap and returns once it is stored. It
// waits for any write in flight.
func (w *Writer) SaveAll(ctx context.Context, snap *Snapshot) error {
	if err := w.writing.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.writing.Release(1)

	// The full save supersedes anything queued
	w.mu.Lock()
	w.pending = nil
	w.sections = nil
	w.mu.Unlock()

	if err := w.store.Save(ctx, snap); err != nil {
		w.logger.Error("failed to save snapshot", "error", err)
		return err
	}
	return nil
}

// Start flushes on every interval until Stop
func (w *Writer) Start() {
	w.Stop()
	stop := w.scheduler.Every(w.interval, clock.Guarded(w.logger, "flush", func() {
		_ = w.Flush(context.Background())
	}))

	w.mu.Lock()
	w.stop = stop
	w.mu.Unlock()
}

// Stop cancels periodic flushing. Safe to call when not started.
func (w *Writer) Stop() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Close stops the timer and writes anything still queued
func (w *Writer) Close(ctx context.Context) error {
	w.Stop()
	return w.Flush(ctx)
}

func (w *Writer) takeSectionsLocked() []Section {
	if w.sections == nil {
		return nil
	}
	out := make([]Section, 0, len(w.sections))
	for _, s := range AllSections {
		if w.sections[s] {
			out = append(out, s)
		}
	}
	w.sections = nil
	return out
}

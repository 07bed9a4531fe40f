package clock

import (
	"sync"
	"time"
)

type manualTask struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
	stopped  bool
}

// Manual is a controllable clock for tests. Scheduled functions fire
// synchronously from Advance and Set, in due-time order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []*manualTask
	nextID int
}

// NewManual creates a manual clock starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current mocked time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every registers fn to run each time the clock crosses a multiple of interval
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	task := &manualTask{
		id:       m.nextID,
		interval: interval,
		next:     m.now.Add(interval),
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.stopped = true
		for i, t := range m.tasks {
			if t == task {
				m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
				break
			}
		}
	}
}

// Advance moves the clock forward by d, firing every task that becomes due
func (m *Manual) Advance(d time.Duration) {
	m.Set(m.Now().Add(d))
}

// Set moves the clock to t. Moving backwards fires nothing.
func (m *Manual) Set(t time.Time) {
	for {
		m.mu.Lock()
		task := m.dueLocked(t)
		if task == nil {
			m.now = t
			m.mu.Unlock()
			return
		}
		m.now = task.next
		task.next = task.next.Add(task.interval)
		m.mu.Unlock()

		task.fn()
	}
}

// Pending returns the number of registered, unstopped tasks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) dueLocked(target time.Time) *manualTask {
	var due *manualTask
	for _, t := range m.tasks {
		if t.stopped || t.interval <= 0 || t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
			due = t
		}
	}
	return due
}

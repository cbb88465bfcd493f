package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance calls instead of the wall
// clock. Callbacks run synchronously inside Advance, in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending []*manualTimer
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) ScheduleOnce(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{
		owner:    m,
		id:       m.nextID,
		deadline: m.now.Add(d),
		fn:       fn,
	}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward and fires every timer whose deadline
// has passed. A callback may schedule or stop further timers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		sort.Slice(m.pending, func(i, j int) bool {
			return m.pending[i].deadline.Before(m.pending[j].deadline)
		})
		var due *manualTimer
		for _, t := range m.pending {
			if !t.deadline.After(target) {
				due = t
				break
			}
		}
		if due == nil {
			break
		}
		m.remove(due.id)
		if due.deadline.After(m.now) {
			m.now = due.deadline
		}
		m.mu.Unlock()
		due.fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// PendingCount reports how many timers are still scheduled.
func (m *Manual) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manual) remove(id int) {
	for i, t := range m.pending {
		if t.id == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	owner    *Manual
	id       int
	deadline time.Time
	fn       func()
}

func (t *manualTimer) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.owner.remove(t.id)
}

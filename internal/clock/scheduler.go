// Package clock wraps one-shot wall-clock timers behind an interface so
// TTL and grace-period behavior is testable without real waits.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending callback. Stop is idempotent: stopping an
// already-fired or already-stopped timer is a no-op.
type Timer interface {
	Stop()
}

type Scheduler interface {
	// ScheduleOnce runs fn once after d. fn runs on its own goroutine.
	ScheduleOnce(d time.Duration, fn func()) Timer
	Now() time.Time
}

type realScheduler struct{}

func New() Scheduler { return realScheduler{} }

func (realScheduler) ScheduleOnce(d time.Duration, fn func()) Timer {
	return &realTimer{t: time.AfterFunc(d, fn)}
}

func (realScheduler) Now() time.Time { return time.Now() }

type realTimer struct {
	once sync.Once
	t    *time.Timer
}

func (rt *realTimer) Stop() {
	rt.once.Do(func() { rt.t.Stop() })
}

package clock

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var order []string
	m.ScheduleOnce(2*time.Second, func() { order = append(order, "b") })
	m.ScheduleOnce(1*time.Second, func() { order = append(order, "a") })
	m.ScheduleOnce(10*time.Second, func() { order = append(order, "late") })

	m.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
	if m.PendingCount() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", m.PendingCount())
	}

	m.Advance(5 * time.Second)
	if len(order) != 3 || order[2] != "late" {
		t.Fatalf("expected late timer to fire, got %v", order)
	}
}

func TestManualStopIsIdempotent(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	fired := false
	timer := m.ScheduleOnce(time.Second, func() { fired = true })
	timer.Stop()
	timer.Stop()

	m.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if m.PendingCount() != 0 {
		t.Fatalf("expected no pending timers, got %d", m.PendingCount())
	}
}

func TestManualCallbackMaySchedule(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	fired := false
	m.ScheduleOnce(time.Second, func() {
		m.ScheduleOnce(time.Second, func() { fired = true })
	})

	m.Advance(3 * time.Second)
	if !fired {
		t.Fatal("timer scheduled from callback did not fire")
	}
}

func TestManualAdvanceMovesNow(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewManual(start)
	m.Advance(30 * time.Second)
	if got := m.Now(); !got.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(30*time.Second))
	}
}

func TestRealSchedulerFires(t *testing.T) {
	s := New()
	done := make(chan struct{})
	s.ScheduleOnce(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRealTimerStopIsIdempotent(t *testing.T) {
	s := New()
	timer := s.ScheduleOnce(time.Hour, func() { t.Error("should not fire") })
	timer.Stop()
	timer.Stop()
}

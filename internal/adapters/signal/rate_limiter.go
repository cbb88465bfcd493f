package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// RateLimiter is a per-peer sliding-window counter: at most limit
// allowed calls per interval.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.PeerID][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.PeerID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(pid domain.PeerID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[pid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[pid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[pid] = fresh
	return true
}

// Forget drops a peer's history once its connection is gone, so the map
// does not accumulate dead ids.
func (rl *RateLimiter) Forget(pid domain.PeerID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, pid)
}

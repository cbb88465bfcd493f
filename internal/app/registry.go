package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type connEntry struct {
	conn   core.SignalConnection
	cancel context.CancelFunc
}

// Registry tracks every live signal connection by peer id. Rooms and
// the relay resolve targets through it; they never hold transports.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.PeerID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.PeerID]*connEntry)}
}

// Bind registers a connection under pid. If the id was already bound
// the previous connection's context is canceled so its pumps wind down.
func (r *Registry) Bind(pid domain.PeerID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	prev := r.conns[pid]
	r.conns[pid] = &connEntry{conn: conn, cancel: cancel}
	r.mu.Unlock()
	if prev != nil && prev.cancel != nil {
		prev.cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("bound connection")
}

func (r *Registry) Get(pid domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[pid]; ok {
		return e.conn, true
	}
	return nil, false
}

// UnbindConn removes the binding only while it still points at conn. A
// replaced connection's teardown must not evict its successor.
func (r *Registry) UnbindConn(pid domain.PeerID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok || e.conn != conn {
		return
	}
	delete(r.conns, pid)
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("unbound connection")
}

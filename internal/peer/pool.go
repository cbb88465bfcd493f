package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// EngineFactory builds a fully wired engine for one remote peer.
type EngineFactory func(local, remote domain.PeerID) (*Engine, error)

// Pool maps remote peer ids to negotiation engines. It reacts to
// membership snapshots by creating and destroying engines, and fans
// local track changes out to every live engine.
type Pool struct {
	local   domain.PeerID
	tracks  *LocalTracks
	factory EngineFactory

	mu      sync.Mutex
	engines map[domain.PeerID]*Engine
}

func NewPool(local domain.PeerID, tracks *LocalTracks, factory EngineFactory) *Pool {
	return &Pool{
		local:   local,
		tracks:  tracks,
		factory: factory,
		engines: make(map[domain.PeerID]*Engine),
	}
}

// UpdateMembers diffs the authoritative snapshot against the current
// engine set: new peers get an engine and an immediate offer, departed
// peers are torn down.
func (p *Pool) UpdateMembers(ids []domain.PeerID) {
	want := make(map[domain.PeerID]bool, len(ids))
	for _, id := range ids {
		if id != p.local {
			want[id] = true
		}
	}

	p.mu.Lock()
	var added, removed []*Engine
	for id := range want {
		if _, ok := p.engines[id]; ok {
			continue
		}
		e, err := p.createLocked(id)
		if err != nil {
			log.Error().Err(err).Str("module", "peer.pool").Str("remote", string(id)).Msg("create engine")
			continue
		}
		added = append(added, e)
	}
	for id, e := range p.engines {
		if !want[id] {
			removed = append(removed, e)
			delete(p.engines, id)
		}
	}
	p.mu.Unlock()

	for _, e := range removed {
		log.Info().Str("module", "peer.pool").Str("remote", string(e.Remote())).Msg("peer left, tearing down")
		e.Close()
	}
	for _, e := range added {
		if err := e.Negotiate(); err != nil {
			log.Warn().Err(err).Str("module", "peer.pool").Str("remote", string(e.Remote())).Msg("initial offer")
		}
	}
}

// HandleOffer routes an inbound offer, creating an engine reactively
// for a peer we have not observed in membership yet.
func (p *Pool) HandleOffer(from domain.PeerID, sdp string) {
	p.mu.Lock()
	e, ok := p.engines[from]
	if !ok {
		var err error
		e, err = p.createLocked(from)
		if err != nil {
			p.mu.Unlock()
			log.Error().Err(err).Str("module", "peer.pool").Str("remote", string(from)).Msg("create engine for offer")
			return
		}
	}
	p.mu.Unlock()

	if err := e.HandleOffer(sdp); err != nil {
		log.Warn().Err(err).Str("module", "peer.pool").Str("remote", string(from)).Msg("handle offer")
	}
}

func (p *Pool) HandleAnswer(from domain.PeerID, sdp string) {
	e, ok := p.engine(from)
	if !ok {
		log.Warn().Str("module", "peer.pool").Str("remote", string(from)).Msg("answer from unknown peer, dropping")
		return
	}
	if err := e.HandleAnswer(sdp); err != nil {
		log.Warn().Err(err).Str("module", "peer.pool").Str("remote", string(from)).Msg("handle answer")
	}
}

func (p *Pool) HandleCandidate(from domain.PeerID, ci webrtc.ICECandidateInit) {
	e, ok := p.engine(from)
	if !ok {
		log.Debug().Str("module", "peer.pool").Str("remote", string(from)).Msg("candidate from unknown peer, dropping")
		return
	}
	e.HandleCandidate(ci)
}

// RenegotiateAll triggers a fresh offer on every live engine. Any
// mutation of the local track set must go through here so no peer keeps
// receiving a stale binding.
func (p *Pool) RenegotiateAll() {
	for _, e := range p.snapshot() {
		if err := e.Negotiate(); err != nil {
			log.Warn().Err(err).Str("module", "peer.pool").Str("remote", string(e.Remote())).Msg("renegotiate")
		}
	}
}

// Tracks exposes the shared local track set the engines read.
func (p *Pool) Tracks() *LocalTracks { return p.tracks }

// Track mutations go through the pool so the change and the fan-out
// renegotiation cannot be separated.

func (p *Pool) SetAudio(track webrtc.TrackLocal) {
	p.tracks.SetAudio(track)
	p.RenegotiateAll()
}

func (p *Pool) SetCamera(track webrtc.TrackLocal) {
	p.tracks.SetCamera(track)
	p.RenegotiateAll()
}

func (p *Pool) StartScreen(track webrtc.TrackLocal) {
	p.tracks.StartScreen(track)
	p.RenegotiateAll()
}

func (p *Pool) StopScreen() {
	p.tracks.StopScreen()
	p.RenegotiateAll()
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.engines)
}

func (p *Pool) CloseAll() {
	p.mu.Lock()
	engines := make([]*Engine, 0, len(p.engines))
	for _, e := range p.engines {
		engines = append(engines, e)
	}
	p.engines = make(map[domain.PeerID]*Engine)
	p.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}

// createLocked wires a new engine, including the failure path that
// drops the peer until membership re-adds it. Caller holds the lock.
func (p *Pool) createLocked(remote domain.PeerID) (*Engine, error) {
	e, err := p.factory(p.local, remote)
	if err != nil {
		return nil, err
	}
	e.OnFailure(func(id domain.PeerID) { p.drop(id) })
	p.engines[remote] = e
	return e, nil
}

func (p *Pool) drop(id domain.PeerID) {
	p.mu.Lock()
	e, ok := p.engines[id]
	if ok {
		delete(p.engines, id)
	}
	p.mu.Unlock()
	if ok {
		e.Close()
	}
}

func (p *Pool) engine(id domain.PeerID) (*Engine, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.engines[id]
	return e, ok
}

func (p *Pool) snapshot() []*Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Engine, 0, len(p.engines))
	for _, e := range p.engines {
		out = append(out, e)
	}
	return out
}

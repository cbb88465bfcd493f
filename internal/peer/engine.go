package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// Polite reports which side of a pairing yields on offer collision.
// Both ends compute the same comparison, so exactly one of any two
// peers is polite toward the other; that determinism replaces a
// leader-election handshake.
func Polite(local, remote domain.PeerID) bool {
	return string(local) < string(remote)
}

// Engine runs perfect negotiation against one remote peer. It owns one
// media connection and serializes overlapping asynchronous work through
// the makingOffer flag and the connection's signaling state; the
// polite/impolite role is the tie-break for simultaneous offers, the
// one case flags alone cannot resolve.
type Engine struct {
	local  domain.PeerID
	remote domain.PeerID
	polite bool

	mu          sync.Mutex
	conn        MediaConn
	send        Sender
	tracks      *LocalTracks
	makingOffer bool
	ignoreOffer bool
	restarted   bool
	closed      bool

	remoteTracks  []*webrtc.TrackRemote
	onRemoteTrack func(domain.PeerID, *webrtc.TrackRemote)
	onAudioTrack  func(domain.PeerID, *webrtc.TrackRemote)
	onFailure     func(domain.PeerID)
}

func NewEngine(local, remote domain.PeerID, conn MediaConn, send Sender, tracks *LocalTracks) *Engine {
	return &Engine{
		local:  local,
		remote: remote,
		polite: Polite(local, remote),
		conn:   conn,
		send:   send,
		tracks: tracks,
	}
}

func (e *Engine) Remote() domain.PeerID { return e.remote }
func (e *Engine) Polite() bool          { return e.polite }

// OnRemoteTrack sets the callback for every arriving remote track.
func (e *Engine) OnRemoteTrack(fn func(domain.PeerID, *webrtc.TrackRemote)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRemoteTrack = fn
}

// OnAudioTrack is the audio-level observer hook: invoked when the
// remote bundle gains an audio track, for UI-level speaking indication.
func (e *Engine) OnAudioTrack(fn func(domain.PeerID, *webrtc.TrackRemote)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAudioTrack = fn
}

// OnFailure sets the callback fired when the connection is given up on
// after a failed ICE restart.
func (e *Engine) OnFailure(fn func(domain.PeerID)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFailure = fn
}

// Negotiate sends a fresh offer reflecting the current local track set.
// Called when local tracks change or when the remote peer first
// appears. If a negotiation is already in flight the call is a no-op:
// offer creation reads track bindings at call time, so the in-flight
// round picks up the change.
func (e *Engine) Negotiate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if e.makingOffer || e.conn.SignalingState() != webrtc.SignalingStateStable {
		log.Debug().Str("module", "peer").Str("remote", string(e.remote)).Msg("negotiation in flight, deferring")
		return nil
	}
	if err := e.conn.SyncTracks(e.tracks); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("remote", string(e.remote)).Msg("sync tracks")
	}
	e.makingOffer = true
	defer func() { e.makingOffer = false }()

	offer, err := e.conn.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := e.conn.SetLocalDescription(offer); err != nil {
		return err
	}
	return e.send.SendOffer(e.remote, offer.SDP)
}

// HandleOffer applies a remote offer and answers it. On collision the
// impolite side drops the offer silently; the polite side rolls back
// its own in-flight offer first. Pion does not roll back implicitly on
// SetRemoteDescription the way browsers do, hence the explicit step.
func (e *Engine) HandleOffer(sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	collision := e.makingOffer || e.conn.SignalingState() != webrtc.SignalingStateStable
	e.ignoreOffer = !e.polite && collision
	if e.ignoreOffer {
		log.Warn().Str("module", "peer").Str("remote", string(e.remote)).Msg("offer collision, ignoring")
		return nil
	}

	if collision {
		if err := e.conn.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("remote", string(e.remote)).Msg("rollback")
		}
	}
	if err := e.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}
	if err := e.conn.SyncTracks(e.tracks); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("remote", string(e.remote)).Msg("sync tracks before answer")
	}
	answer, err := e.conn.CreateAnswer()
	if err != nil {
		return err
	}
	if err := e.conn.SetLocalDescription(answer); err != nil {
		return err
	}
	return e.send.SendAnswer(e.remote, answer.SDP)
}

// HandleAnswer applies a remote answer. Out-of-order or already
// resolved answers are logged and ignored, not fatal.
func (e *Engine) HandleAnswer(sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	switch e.conn.SignalingState() {
	case webrtc.SignalingStateHaveLocalOffer,
		webrtc.SignalingStateHaveLocalPranswer,
		webrtc.SignalingStateHaveRemoteOffer:
	default:
		log.Warn().Str("module", "peer").Str("remote", string(e.remote)).Str("state", e.conn.SignalingState().String()).Msg("answer in unexpected signaling state, ignoring")
		return nil
	}
	return e.conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// HandleCandidate applies a remote ICE candidate. Failures are
// swallowed: candidates may race ahead of description exchange, and an
// unusable one is simply dropped.
func (e *Engine) HandleCandidate(ci webrtc.ICECandidateInit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if err := e.conn.AddICECandidate(ci); err != nil {
		log.Debug().Err(err).Str("module", "peer").Str("remote", string(e.remote)).Msg("add ice candidate")
	}
}

// HandleConnectionFailure attempts a single ICE restart; a second
// failure tears the engine down and reports the peer as unreachable.
func (e *Engine) HandleConnectionFailure() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if !e.restarted {
		e.restarted = true
		log.Warn().Str("module", "peer").Str("remote", string(e.remote)).Msg("connection failed, restarting ICE")
		if err := e.restartICELocked(); err == nil {
			e.mu.Unlock()
			return
		}
	}
	onFailure := e.onFailure
	e.mu.Unlock()

	log.Warn().Str("module", "peer").Str("remote", string(e.remote)).Msg("connection failed after restart, tearing down")
	e.Close()
	if onFailure != nil {
		onFailure(e.remote)
	}
}

func (e *Engine) restartICELocked() error {
	offer, err := e.conn.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		return err
	}
	if err := e.conn.SetLocalDescription(offer); err != nil {
		return err
	}
	return e.send.SendOffer(e.remote, offer.SDP)
}

func (e *Engine) handleRemoteTrack(track *webrtc.TrackRemote) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.remoteTracks = append(e.remoteTracks, track)
	onTrack := e.onRemoteTrack
	onAudio := e.onAudioTrack
	e.mu.Unlock()

	if onTrack != nil {
		onTrack(e.remote, track)
	}
	if track.Kind() == webrtc.RTPCodecTypeAudio && onAudio != nil {
		onAudio(e.remote, track)
	}
}

// RemoteTracks returns the observed media bundle for this peer.
func (e *Engine) RemoteTracks() []*webrtc.TrackRemote {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(e.remoteTracks))
	copy(out, e.remoteTracks)
	return out
}

// Close tears the engine down. Idempotent: closing an already-closed
// engine is a no-op, and any in-flight operation observes the closed
// flag and bails instead of erroring.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.remoteTracks = nil
	conn := e.conn
	e.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("remote", string(e.remote)).Msg("close")
		}
	}
}

// Closed reports whether the engine has been torn down.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

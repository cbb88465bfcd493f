package peer

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// Sender pushes negotiation messages toward one target peer. The signal
// client satisfies it.
type Sender interface {
	SendOffer(target domain.PeerID, sdp string) error
	SendAnswer(target domain.PeerID, sdp string) error
	SendCandidate(target domain.PeerID, cand webrtc.ICECandidateInit) error
}

// MediaConn is the slice of a PeerConnection the negotiation engine
// drives. Kept narrow so the state machine is testable without a
// network stack.
type MediaConn interface {
	SignalingState() webrtc.SignalingState
	CreateOffer(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	SyncTracks(*LocalTracks) error
	Close() error
}

// PionConn adapts a pion PeerConnection to MediaConn.
type PionConn struct {
	pc *webrtc.PeerConnection
}

func NewPionConn(cfg webrtc.Configuration) (*PionConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &PionConn{pc: pc}, nil
}

func (c *PionConn) SignalingState() webrtc.SignalingState { return c.pc.SignalingState() }

func (c *PionConn) CreateOffer(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(opts)
}

func (c *PionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *PionConn) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *PionConn) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *PionConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *PionConn) Close() error { return c.pc.Close() }

// SyncTracks makes the outgoing senders match the current local track
// set: one audio sender, one video sender carrying the active video
// (screen wins over camera while sharing). Existing senders are reused
// via ReplaceTrack so audio is not interrupted by a video swap.
func (c *PionConn) SyncTracks(ts *LocalTracks) error {
	if a := ts.Audio(); a != nil {
		if err := c.upsertTrack(webrtc.RTPCodecTypeAudio, a); err != nil {
			return err
		}
	}
	if v := ts.ActiveVideo(); v != nil {
		if err := c.upsertTrack(webrtc.RTPCodecTypeVideo, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *PionConn) upsertTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	for _, s := range c.pc.GetSenders() {
		if s.Track() != nil && s.Track().Kind() == kind {
			return s.ReplaceTrack(track)
		}
	}
	_, err := c.pc.AddTrack(track)
	return err
}

// NewPionFactory builds engines backed by real PeerConnections, wiring
// candidate gathering, remote tracks and failure detection into the
// engine.
func NewPionFactory(cfg webrtc.Configuration, send Sender, tracks *LocalTracks) EngineFactory {
	return func(local, remote domain.PeerID) (*Engine, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		conn := &PionConn{pc: pc}
		e := NewEngine(local, remote, conn, send, tracks)

		pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
			if cand == nil {
				return
			}
			if err := send.SendCandidate(remote, cand.ToJSON()); err != nil {
				log.Warn().Err(err).Str("module", "peer").Str("remote", string(remote)).Msg("send candidate")
			}
		})
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			e.handleRemoteTrack(track)
		})
		pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
			log.Info().Str("module", "peer").Str("remote", string(remote)).Str("state", s.String()).Msg("connection state")
			if s == webrtc.PeerConnectionStateFailed {
				e.HandleConnectionFailure()
			}
		})
		return e, nil
	}
}

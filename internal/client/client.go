// Package client is the peer-side signal channel: a websocket to the
// server carrying the JSON message catalogue.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Handler consumes the server → client half of the catalogue. The
// connection pool (plus a thin session wrapper) implements it.
type Handler interface {
	HandleWelcome(id domain.PeerID)
	HandleMembers(room string, members []core.MemberDTO)
	HandleOffer(from domain.PeerID, sdp string)
	HandleAnswer(from domain.PeerID, sdp string)
	HandleCandidate(from domain.PeerID, cand webrtc.ICECandidateInit)
	HandleJoinDenied(reason string)
	HandleRoomExpired()
}

type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu sync.RWMutex
	id domain.PeerID

	// OnEvent receives messages the Handler does not cover (chat,
	// presence, lock state). Optional.
	OnEvent func(msgType string, raw []byte)
}

// Dial connects to the signal endpoint, e.g.
// ws://localhost:8080/api/ws/signal.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signal server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// ID returns the peer id assigned by the server; empty until the
// welcome message arrives.
func (c *Client) ID() domain.PeerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Run reads and dispatches messages until the connection drops or ctx
// is canceled. Cancellation closes the connection so the blocked read
// returns instead of waiting for the next frame.
func (c *Client) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.dispatch(h, data)
	}
}

func (c *Client) dispatch(h Handler, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad json from server")
		return
	}

	switch env.Type {
	case protocol.TypeWelcome:
		var p protocol.Welcome
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		c.mu.Lock()
		c.id = domain.PeerID(p.ID)
		c.mu.Unlock()
		h.HandleWelcome(domain.PeerID(p.ID))
	case protocol.TypeMembers:
		var p protocol.Members
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.HandleMembers(p.Room, p.Members)
	case protocol.TypeOffer:
		var p protocol.SDP
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.HandleOffer(domain.PeerID(p.From), p.SDP)
	case protocol.TypeAnswer:
		var p protocol.SDP
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.HandleAnswer(domain.PeerID(p.From), p.SDP)
	case protocol.TypeCandidate:
		var p protocol.Candidate
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.HandleCandidate(domain.PeerID(p.From), candidateInit(p))
	case protocol.TypeRoomJoinDenied:
		var p protocol.JoinDenied
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.HandleJoinDenied(p.Reason)
	case protocol.TypeRoomExpired:
		h.HandleRoomExpired()
	default:
		if c.OnEvent != nil {
			c.OnEvent(env.Type, data)
		}
	}
}

func candidateInit(p protocol.Candidate) webrtc.ICECandidateInit {
	ci := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		mid := p.SDPMid
		ci.SDPMid = &mid
	}
	idx := p.SDPMLineIndex
	ci.SDPMLineIndex = &idx
	return ci
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

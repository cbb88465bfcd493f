package client

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func (c *Client) Join(room, name string) error {
	return c.writeJSON(protocol.Join{Type: protocol.TypeJoin, Room: room, Name: name})
}

func (c *Client) Leave(room string) error {
	return c.writeJSON(protocol.Leave{Type: protocol.TypeLeave, Room: room})
}

func (c *Client) SetUsername(room, name string) error {
	return c.writeJSON(protocol.SetUsername{Type: protocol.TypeSetUsername, Room: room, Name: name})
}

func (c *Client) SetMuted(room string, muted bool) error {
	return c.writeJSON(protocol.SetMuted{Type: protocol.TypeSetMuted, Room: room, Muted: muted})
}

func (c *Client) SetRoomLocked(room string, locked bool) error {
	return c.writeJSON(protocol.SetRoomLocked{Type: protocol.TypeSetRoomLocked, Room: room, Locked: locked})
}

func (c *Client) RaiseHand(room string) error {
	return c.writeJSON(protocol.RoomEvent{Type: protocol.TypeRaiseHand, Room: room})
}

func (c *Client) ScreenShareStarted(room string) error {
	return c.writeJSON(protocol.RoomEvent{Type: protocol.TypeScreenShareStarted, Room: room})
}

func (c *Client) ScreenShareStopped(room string) error {
	return c.writeJSON(protocol.RoomEvent{Type: protocol.TypeScreenShareStopped, Room: room})
}

func (c *Client) ChatSend(room, text string, ts int64) error {
	return c.writeJSON(protocol.ChatSend{Type: protocol.TypeChatSend, Room: room, Text: text, Ts: ts})
}

func (c *Client) ChatGetHistory(room string) error {
	return c.writeJSON(protocol.RoomEvent{Type: protocol.TypeChatGetHistory, Room: room})
}

func (c *Client) GetRoomState(room string) error {
	return c.writeJSON(protocol.RoomEvent{Type: protocol.TypeGetRoomState, Room: room})
}

func (c *Client) Ping() error {
	return c.writeJSON(protocol.Envelope{Type: protocol.TypePing})
}

// SendOffer, SendAnswer and SendCandidate satisfy the negotiation
// engine's Sender.

func (c *Client) SendOffer(target domain.PeerID, sdp string) error {
	return c.writeJSON(protocol.SDP{Type: protocol.TypeOfferTo, Target: string(target), SDP: sdp})
}

func (c *Client) SendAnswer(target domain.PeerID, sdp string) error {
	return c.writeJSON(protocol.SDP{Type: protocol.TypeAnswer, Target: string(target), SDP: sdp})
}

func (c *Client) SendCandidate(target domain.PeerID, cand webrtc.ICECandidateInit) error {
	msg := protocol.Candidate{
		Type:      protocol.TypeCandidateTo,
		Target:    string(target),
		Candidate: cand.Candidate,
	}
	if cand.SDPMid != nil {
		msg.SDPMid = *cand.SDPMid
	}
	if cand.SDPMLineIndex != nil {
		msg.SDPMLineIndex = *cand.SDPMLineIndex
	}
	return c.writeJSON(msg)
}

// Package protocol defines the JSON envelopes exchanged over the signal
// channel. Every message carries a "type" discriminator; the rest of
// the payload depends on it.
package protocol

import (
	"github.com/dkeye/Meet/internal/core"
)

// Client → server message types.
const (
	TypeJoin               = "join"
	TypeLeave              = "leave"
	TypeSetUsername        = "set-username"
	TypeSetMuted           = "set-muted"
	TypeSetRoomLocked      = "set-room-locked"
	TypeRaiseHand          = "raise-hand"
	TypeScreenShareStarted = "screen-share-started"
	TypeScreenShareStopped = "screen-share-stopped"
	TypeChatSend           = "chat-send"
	TypeChatGetHistory     = "chat-get-history"
	TypeGetRoomState       = "get-room-state"
	TypeOfferTo            = "offer-to"
	TypeCandidateTo        = "candidate-to"
	TypePing               = "ping"
)

// Server → client message types. TypeAnswer is used in both directions:
// targeted when sent by a client, tagged with the origin when relayed.
const (
	TypeWelcome           = "welcome"
	TypeRoomJoinOK        = "room-join-ok"
	TypeRoomJoinDenied    = "room-join-denied"
	TypeMembers           = "members"
	TypeRoomLockState     = "room-lock-state"
	TypeRoomState         = "room-state"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
	TypeChatMessage       = "chat-message"
	TypeChatHistory       = "chat-history"
	TypeRoomExpired       = "room-expired"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeCandidate         = "candidate"
	TypePong              = "pong"
)

// Join denial reasons.
const (
	DeniedLocked = "locked"
	DeniedError  = "error"
)

// Envelope is the minimal view used to dispatch an inbound frame.
type Envelope struct {
	Type string `json:"type"`
}

type Join struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Name string `json:"name,omitempty"`
}

type Leave struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type SetUsername struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Name string `json:"name"`
}

type SetMuted struct {
	Type  string `json:"type"`
	Room  string `json:"room"`
	Muted bool   `json:"muted"`
}

type SetRoomLocked struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	Locked bool   `json:"locked"`
}

type RoomEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type ChatSend struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Text string `json:"text"`
	Ts   int64  `json:"ts,omitempty"`
}

// SDP carries an offer or answer. Target addresses the message on the
// way in; From tags the origin on the way out.
type SDP struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	From   string `json:"from,omitempty"`
	SDP    string `json:"sdp"`
}

type Candidate struct {
	Type          string `json:"type"`
	Target        string `json:"target,omitempty"`
	From          string `json:"from,omitempty"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

type Welcome struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type JoinOK struct {
	Type        string `json:"type"`
	Locked      bool   `json:"locked"`
	TTLMs       int64  `json:"ttlMs"`
	RemainingMs int64  `json:"remainingMs"`
}

type JoinDenied struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type Members struct {
	Type    string           `json:"type"`
	Room    string           `json:"room"`
	Members []core.MemberDTO `json:"members"`
}

type RoomLockState struct {
	Type   string `json:"type"`
	Locked bool   `json:"locked"`
}

type RoomState struct {
	Type        string `json:"type"`
	Locked      bool   `json:"locked"`
	RemainingMs int64  `json:"remainingMs"`
}

// Presence covers participant-joined/left, raise-hand and the
// screen-share notices: sender id and name plus a server timestamp.
type Presence struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Ts   int64  `json:"ts"`
}

type ChatMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

type ChatHistory struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

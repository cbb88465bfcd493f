package domain

import "time"

const (
	MaxChatTextLen = 1000
	// ChatHistoryCap bounds the per-room history ring.
	ChatHistoryCap = 500
	// ChatTsMaxSkew is how far a client-supplied timestamp may deviate
	// from server time before it is replaced.
	ChatTsMaxSkew = 5 * time.Minute
)

// ChatMessage is one entry of a room's in-memory history.
type ChatMessage struct {
	ID   PeerID `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

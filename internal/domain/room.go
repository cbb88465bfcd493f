// Package domain contains entities without logic, just meta-data.
package domain

import "time"

type RoomID string

const (
	// RoomTTL is the fixed room lifetime, counted from the join that
	// started the room's current life. Repopulating within the empty
	// grace does not reset the countdown.
	RoomTTL = 2 * time.Hour
	// RoomEmptyGrace is how long a memberless room keeps its state
	// before it is purged.
	RoomEmptyGrace = 60 * time.Second
)

// Room is the metadata half of a room record. Membership, chat history
// and timers live in the registry.
type Room struct {
	ID        RoomID
	Locked    bool
	CreatedAt time.Time
}

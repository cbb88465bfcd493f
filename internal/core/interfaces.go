package core

import "github.com/dkeye/Meet/internal/domain"

// MemberDTO is a read-only membership view for APIs (no transport fields).
type MemberDTO struct {
	ID    domain.PeerID `json:"id"`
	Name  string        `json:"name"`
	Muted bool          `json:"muted"`
}

// RoomStateDTO is the pre-join view of a room: lock flag plus the
// remaining TTL window in milliseconds.
type RoomStateDTO struct {
	Locked      bool  `json:"locked"`
	RemainingMs int64 `json:"remainingMs"`
}

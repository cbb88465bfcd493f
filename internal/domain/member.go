package domain

import "strings"

// PeerID is an opaque per-connection identifier. It is not stable
// across reconnects.
type PeerID string

const MaxUsernameLen = 36

// Member represents a peer's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	ID    PeerID
	Name  string
	Muted bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// An empty name falls back to the peer id.
func NewMember(id PeerID, name string) *Member {
	m := &Member{ID: id}
	m.SetName(name)
	return m
}

func (m *Member) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = string(m.ID)
	}
	if len(name) > MaxUsernameLen {
		name = name[:MaxUsernameLen]
	}
	m.Name = name
}

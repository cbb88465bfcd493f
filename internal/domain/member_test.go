package domain

import (
	"strings"
	"testing"
)

func TestNewMemberNameHandling(t *testing.T) {
	testCases := []struct {
		name     string
		id       PeerID
		username string
		want     string
	}{
		{name: "plain name", id: "p1", username: "alice", want: "alice"},
		{name: "trimmed", id: "p1", username: "  bob  ", want: "bob"},
		{name: "empty falls back to id", id: "p1", username: "", want: "p1"},
		{name: "whitespace falls back to id", id: "p1", username: "   ", want: "p1"},
		{name: "capped", id: "p1", username: strings.Repeat("x", 50), want: strings.Repeat("x", MaxUsernameLen)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMember(tc.id, tc.username)
			if m.Name != tc.want {
				t.Fatalf("Name = %q, want %q", m.Name, tc.want)
			}
		})
	}
}

func TestSetNameMutates(t *testing.T) {
	m := NewMember("p2", "old")
	m.SetName("new")
	if m.Name != "new" {
		t.Fatalf("Name = %q, want %q", m.Name, "new")
	}
	m.SetName("")
	if m.Name != "p2" {
		t.Fatalf("Name = %q, want fallback to id", m.Name)
	}
}

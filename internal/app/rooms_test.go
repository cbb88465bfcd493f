package app_test

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/clock"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// fakeSignalConn records every frame pushed to one peer.
type fakeSignalConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeSignalConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeSignalConn) Close() {}

func (c *fakeSignalConn) ofType(t *testing.T, msgType string) [][]byte {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, f := range c.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		if env.Type == msgType {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeSignalConn) lastOfType(t *testing.T, msgType string) ([]byte, bool) {
	t.Helper()
	frames := c.ofType(t, msgType)
	if len(frames) == 0 {
		return nil, false
	}
	return frames[len(frames)-1], true
}

type fixture struct {
	conns *app.Registry
	rooms *app.RoomRegistry
	sched *clock.Manual
	peers map[domain.PeerID]*fakeSignalConn
}

func newFixture(t *testing.T, ids ...domain.PeerID) *fixture {
	t.Helper()
	f := &fixture{
		conns: app.NewRegistry(),
		sched: clock.NewManual(time.Unix(1_000_000, 0)),
		peers: make(map[domain.PeerID]*fakeSignalConn),
	}
	f.rooms = app.NewRoomRegistry(f.conns, f.sched, domain.RoomTTL, domain.RoomEmptyGrace)
	for _, id := range ids {
		conn := &fakeSignalConn{}
		f.peers[id] = conn
		f.conns.Bind(id, conn, nil)
	}
	return f
}

func (f *fixture) lastMembers(t *testing.T, id domain.PeerID) protocol.Members {
	t.Helper()
	raw, ok := f.peers[id].lastOfType(t, protocol.TypeMembers)
	if !ok {
		t.Fatalf("peer %s received no members snapshot", id)
	}
	var msg protocol.Members
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestJoinCreatesRoomAndBroadcastsSnapshot(t *testing.T) {
	f := newFixture(t, "A")

	res, err := f.rooms.Join("r1", "A", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Locked {
		t.Fatal("fresh room must be unlocked")
	}
	if res.RemainingMs != domain.RoomTTL.Milliseconds() {
		t.Fatalf("RemainingMs = %d, want full TTL %d", res.RemainingMs, domain.RoomTTL.Milliseconds())
	}

	if _, ok := f.peers["A"].lastOfType(t, protocol.TypeParticipantJoined); !ok {
		t.Fatal("joiner did not receive participant-joined")
	}
	snap := f.lastMembers(t, "A")
	if len(snap.Members) != 1 || snap.Members[0].ID != "A" || snap.Members[0].Name != "alice" {
		t.Fatalf("unexpected snapshot %+v", snap.Members)
	}
}

func TestLockedOccupiedRoomDeniesJoin(t *testing.T) {
	f := newFixture(t, "A", "B", "C")

	if _, err := f.rooms.Join("r1", "A", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.rooms.Join("r1", "B", "bob"); err != nil {
		t.Fatal(err)
	}
	snap := f.lastMembers(t, "B")
	if len(snap.Members) != 2 {
		t.Fatalf("expected members list of size 2, got %d", len(snap.Members))
	}

	if err := f.rooms.SetLocked("r1", "A", true); err != nil {
		t.Fatal(err)
	}
	raw, ok := f.peers["B"].lastOfType(t, protocol.TypeRoomLockState)
	if !ok {
		t.Fatal("B did not receive room-lock-state")
	}
	var lock protocol.RoomLockState
	if err := json.Unmarshal(raw, &lock); err != nil {
		t.Fatal(err)
	}
	if !lock.Locked {
		t.Fatal("room-lock-state should report locked")
	}

	if _, err := f.rooms.Join("r1", "C", "carol"); !errors.Is(err, app.ErrRoomLocked) {
		t.Fatalf("expected ErrRoomLocked, got %v", err)
	}
}

func TestEmptyGracePurgesAllRoomState(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r1", "B", "bob")
	f.rooms.SetLocked("r1", "A", true)
	f.rooms.Leave("r1", "A")
	f.rooms.Leave("r1", "B")

	if !f.rooms.HasRoom("r1") {
		t.Fatal("room state must survive until grace elapses")
	}

	f.sched.Advance(domain.RoomEmptyGrace + time.Second)
	if f.rooms.HasRoom("r1") {
		t.Fatal("room state must be purged after the grace window")
	}

	// A later join with the same id starts a fresh, unlocked room with
	// a new TTL window.
	res, err := f.rooms.Join("r1", "A", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Locked {
		t.Fatal("rejoined room must be unlocked")
	}
	if res.RemainingMs != domain.RoomTTL.Milliseconds() {
		t.Fatalf("RemainingMs = %d, want full TTL", res.RemainingMs)
	}
}

func TestRepopulateWithinGraceKeepsLockAndTTL(t *testing.T) {
	f := newFixture(t, "A")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.SetLocked("r1", "A", true)
	f.rooms.Leave("r1", "A")

	f.sched.Advance(30 * time.Second)

	res, err := f.rooms.Join("r1", "A", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Locked {
		t.Fatal("lock flag must survive a within-grace repopulation")
	}
	want := (domain.RoomTTL - 30*time.Second).Milliseconds()
	if res.RemainingMs != want {
		t.Fatalf("RemainingMs = %d, want countdown unchanged (%d)", res.RemainingMs, want)
	}

	// Grace deletion must have been canceled.
	f.sched.Advance(domain.RoomEmptyGrace * 2)
	if !f.rooms.HasRoom("r1") {
		t.Fatal("repopulated room was purged by a stale grace timer")
	}
}

func TestTTLExpiryEvictsEveryMember(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.sched.Advance(domain.RoomTTL - time.Minute)
	// B joins in the final minute and is still evicted this cycle.
	f.rooms.Join("r1", "B", "bob")

	f.sched.Advance(time.Minute)

	for _, id := range []domain.PeerID{"A", "B"} {
		if _, ok := f.peers[id].lastOfType(t, protocol.TypeRoomExpired); !ok {
			t.Fatalf("peer %s did not receive room-expired", id)
		}
	}
	if f.rooms.HasRoom("r1") {
		t.Fatal("room state must be purged on TTL expiry")
	}
}

func TestSetMutedBroadcastsRefreshedSnapshot(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r1", "B", "bob")

	if err := f.rooms.SetMuted("r1", "A", true); err != nil {
		t.Fatal(err)
	}
	snap := f.lastMembers(t, "B")
	for _, m := range snap.Members {
		if m.ID == "A" && !m.Muted {
			t.Fatal("snapshot does not reflect A's muted flag")
		}
		if m.ID == "B" && m.Muted {
			t.Fatal("B must not be muted")
		}
	}
}

func TestSetUsernameMutatesOwnRecordOnly(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r1", "B", "bob")

	if err := f.rooms.SetUsername("r1", "A", "  overlong"+strings.Repeat("x", 50)); err != nil {
		t.Fatal(err)
	}
	snap := f.lastMembers(t, "B")
	for _, m := range snap.Members {
		switch m.ID {
		case "A":
			if len(m.Name) != domain.MaxUsernameLen {
				t.Fatalf("A's name not capped: %q", m.Name)
			}
		case "B":
			if m.Name != "bob" {
				t.Fatalf("B's record mutated: %q", m.Name)
			}
		}
	}

	if err := f.rooms.SetUsername("r1", "C", "mallory"); !errors.Is(err, app.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestPresenceRequiresMembership(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r1", "B", "bob")

	if err := f.rooms.NotifyPresence("r1", "C", protocol.TypeRaiseHand); !errors.Is(err, app.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}

	if err := f.rooms.NotifyPresence("r1", "A", protocol.TypeRaiseHand); err != nil {
		t.Fatal(err)
	}
	raw, ok := f.peers["B"].lastOfType(t, protocol.TypeRaiseHand)
	if !ok {
		t.Fatal("B did not receive raise-hand")
	}
	var p protocol.Presence
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "A" || p.Name != "alice" {
		t.Fatalf("unexpected presence payload %+v", p)
	}
}

func TestChatHistoryLifecycle(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r1", "B", "bob")

	// Blank messages are dropped without broadcast.
	if err := f.rooms.AppendChat("r1", "A", "   ", 0); err != nil {
		t.Fatal(err)
	}
	if frames := f.peers["B"].ofType(t, protocol.TypeChatMessage); len(frames) != 0 {
		t.Fatal("blank chat message was broadcast")
	}

	long := strings.Repeat("y", domain.MaxChatTextLen+100)
	if err := f.rooms.AppendChat("r1", "A", long, 0); err != nil {
		t.Fatal(err)
	}
	raw, ok := f.peers["B"].lastOfType(t, protocol.TypeChatMessage)
	if !ok {
		t.Fatal("B did not receive chat-message")
	}
	var msg protocol.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Text) != domain.MaxChatTextLen {
		t.Fatalf("chat text not capped: %d chars", len(msg.Text))
	}

	history, err := f.rooms.ChatHistory("r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}

	if _, err := f.rooms.ChatHistory("r1", "C"); !errors.Is(err, app.ErrNotMember) {
		t.Fatalf("expected ErrNotMember for outsider, got %v", err)
	}

	// History is room state: gone after the room is purged.
	f.rooms.Leave("r1", "A")
	f.rooms.Leave("r1", "B")
	f.sched.Advance(domain.RoomEmptyGrace + time.Second)
	f.rooms.Join("r1", "A", "alice")
	history, err = f.rooms.ChatHistory("r1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("history survived the purge: %d entries", len(history))
	}
}

func TestChatClientTimestampSkew(t *testing.T) {
	f := newFixture(t, "A")
	f.rooms.Join("r1", "A", "alice")

	now := f.sched.Now().UnixMilli()
	nearby := now - (time.Minute).Milliseconds()
	if err := f.rooms.AppendChat("r1", "A", "hi", nearby); err != nil {
		t.Fatal(err)
	}
	raw, _ := f.peers["A"].lastOfType(t, protocol.TypeChatMessage)
	var msg protocol.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Ts != nearby {
		t.Fatalf("Ts = %d, want accepted client ts %d", msg.Ts, nearby)
	}

	farOff := now - (time.Hour).Milliseconds()
	if err := f.rooms.AppendChat("r1", "A", "hi again", farOff); err != nil {
		t.Fatal(err)
	}
	raw, _ = f.peers["A"].lastOfType(t, protocol.TypeChatMessage)
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Ts != now {
		t.Fatalf("Ts = %d, want server time %d for skewed client ts", msg.Ts, now)
	}
}

func TestDisconnectRemovesFromEveryRoom(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.rooms.Join("r1", "A", "alice")
	f.rooms.Join("r2", "A", "alice")
	f.rooms.Join("r1", "B", "bob")

	f.rooms.DisconnectPeer("A")

	snap := f.lastMembers(t, "B")
	if len(snap.Members) != 1 || snap.Members[0].ID != "B" {
		t.Fatalf("unexpected snapshot after disconnect %+v", snap.Members)
	}
	if members := f.rooms.Members("r2"); len(members) != 0 {
		t.Fatalf("A still present in r2: %+v", members)
	}
}

func TestRoomStateForUnknownRoom(t *testing.T) {
	f := newFixture(t)
	st := f.rooms.RoomState("nope")
	if st.Locked {
		t.Fatal("unknown room reads as locked")
	}
	if st.RemainingMs != domain.RoomTTL.Milliseconds() {
		t.Fatalf("RemainingMs = %d, want full window", st.RemainingMs)
	}
}

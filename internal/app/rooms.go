package app

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/clock"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

var (
	ErrRoomLocked = errors.New("room locked")
	ErrNotMember  = errors.New("not a member of room")
)

// JoinResult is what a successful join reports back to the caller.
type JoinResult struct {
	Locked      bool
	TTLMs       int64
	RemainingMs int64
}

type roomState struct {
	meta    domain.Room
	members map[domain.PeerID]*domain.Member
	order   []domain.PeerID
	history []domain.ChatMessage

	ttlTimer   clock.Timer
	graceTimer clock.Timer
}

// RoomRegistry owns every active room: membership, lock flag, chat
// history and the TTL / empty-grace timers. A room is addressable only
// while it has an active TTL timer or at least one member; once both
// are gone the record is purged and a later join starts fresh.
//
// All mutation goes through one mutex, so each inbound message is
// handled to completion before the next touches room state. Timer
// callbacks re-enter through the same mutex.
type RoomRegistry struct {
	mu    sync.Mutex
	sched clock.Scheduler
	conns *Registry
	ttl   time.Duration
	grace time.Duration
	rooms map[domain.RoomID]*roomState
}

func NewRoomRegistry(conns *Registry, sched clock.Scheduler, ttl, grace time.Duration) *RoomRegistry {
	if ttl <= 0 {
		ttl = domain.RoomTTL
	}
	if grace <= 0 {
		grace = domain.RoomEmptyGrace
	}
	return &RoomRegistry{
		sched: sched,
		conns: conns,
		ttl:   ttl,
		grace: grace,
		rooms: make(map[domain.RoomID]*roomState),
	}
}

// Join admits a peer, creating the room on first use. A locked room
// with at least one member denies the join.
func (r *RoomRegistry) Join(roomID domain.RoomID, pid domain.PeerID, name string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs := r.rooms[roomID]
	if rs != nil && rs.meta.Locked && len(rs.members) > 0 {
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("peer", string(pid)).Msg("join denied: locked")
		return JoinResult{}, ErrRoomLocked
	}
	if rs == nil {
		rs = &roomState{
			meta:    domain.Room{ID: roomID},
			members: make(map[domain.PeerID]*domain.Member),
		}
		r.rooms[roomID] = rs
	}

	m := domain.NewMember(pid, name)
	if _, known := rs.members[pid]; !known {
		rs.order = append(rs.order, pid)
	}
	rs.members[pid] = m
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("peer", string(pid)).Str("name", m.Name).Msg("member joined")

	r.broadcast(rs, protocol.Presence{
		Type: protocol.TypeParticipantJoined,
		ID:   string(pid),
		Name: m.Name,
		Ts:   r.sched.Now().UnixMilli(),
	})
	r.afterMembershipChange(rs)

	return JoinResult{
		Locked:      rs.meta.Locked,
		TTLMs:       r.ttl.Milliseconds(),
		RemainingMs: r.remainingMs(rs),
	}, nil
}

// Leave removes the peer from one room. Absent rooms and non-members
// are no-ops.
func (r *RoomRegistry) Leave(roomID domain.RoomID, pid domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.rooms[roomID]
	if rs == nil {
		return
	}
	r.removeMember(rs, pid)
}

// DisconnectPeer removes the peer from every room it occupies. Called
// by the transport when the underlying connection drops.
func (r *RoomRegistry) DisconnectPeer(pid domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rs := range r.rooms {
		if _, ok := rs.members[pid]; ok {
			r.removeMember(rs, pid)
		}
	}
}

// SetLocked toggles the lock flag. Requires membership.
func (r *RoomRegistry) SetLocked(roomID domain.RoomID, pid domain.PeerID, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return ErrNotMember
	}
	rs.meta.Locked = locked
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Bool("locked", locked).Msg("lock state changed")
	r.broadcast(rs, protocol.RoomLockState{Type: protocol.TypeRoomLockState, Locked: locked})
	return nil
}

// SetUsername renames the calling peer's own member record and
// rebroadcasts the member list.
func (r *RoomRegistry) SetUsername(roomID domain.RoomID, pid domain.PeerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return ErrNotMember
	}
	rs.members[pid].SetName(name)
	r.broadcastMembers(rs)
	return nil
}

// SetMuted flips the calling peer's own muted flag and rebroadcasts
// the member list.
func (r *RoomRegistry) SetMuted(roomID domain.RoomID, pid domain.PeerID, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return ErrNotMember
	}
	rs.members[pid].Muted = muted
	r.broadcastMembers(rs)
	return nil
}

// NotifyPresence broadcasts raise-hand or a screen-share notice tagged
// with the sender. Requires membership; msgType is one of the presence
// message types.
func (r *RoomRegistry) NotifyPresence(roomID domain.RoomID, pid domain.PeerID, msgType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return ErrNotMember
	}
	r.broadcast(rs, protocol.Presence{
		Type: msgType,
		ID:   string(pid),
		Name: rs.members[pid].Name,
		Ts:   r.sched.Now().UnixMilli(),
	})
	return nil
}

// AppendChat validates, stores and broadcasts one chat message. The
// history ring is part of room state and is purged with the room.
func (r *RoomRegistry) AppendChat(roomID domain.RoomID, pid domain.PeerID, text string, clientTs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return ErrNotMember
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) > domain.MaxChatTextLen {
		text = text[:domain.MaxChatTextLen]
	}
	now := r.sched.Now().UnixMilli()
	ts := now
	if clientTs != 0 {
		if skew := time.Duration(now-clientTs) * time.Millisecond; skew < domain.ChatTsMaxSkew && skew > -domain.ChatTsMaxSkew {
			ts = clientTs
		}
	}
	msg := domain.ChatMessage{ID: pid, Name: rs.members[pid].Name, Text: text, Ts: ts}
	rs.history = append(rs.history, msg)
	if len(rs.history) > domain.ChatHistoryCap {
		rs.history = rs.history[len(rs.history)-domain.ChatHistoryCap:]
	}
	r.broadcast(rs, protocol.ChatMessage{
		Type: protocol.TypeChatMessage,
		ID:   string(msg.ID),
		Name: msg.Name,
		Text: msg.Text,
		Ts:   msg.Ts,
	})
	return nil
}

// ChatHistory returns a copy of the room's history. Requires membership.
func (r *RoomRegistry) ChatHistory(roomID domain.RoomID, pid domain.PeerID) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.memberRoom(roomID, pid)
	if !ok {
		return nil, ErrNotMember
	}
	out := make([]domain.ChatMessage, len(rs.history))
	copy(out, rs.history)
	return out, nil
}

// RoomState reports lock flag and remaining TTL without requiring
// membership; unknown rooms read as unlocked with a full window.
func (r *RoomRegistry) RoomState(roomID domain.RoomID) core.RoomStateDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.rooms[roomID]
	if rs == nil {
		return core.RoomStateDTO{Locked: false, RemainingMs: r.ttl.Milliseconds()}
	}
	return core.RoomStateDTO{Locked: rs.meta.Locked, RemainingMs: r.remainingMs(rs)}
}

// Members returns the current snapshot of a room, join order preserved.
func (r *RoomRegistry) Members(roomID domain.RoomID) []core.MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.rooms[roomID]
	if rs == nil {
		return nil
	}
	return r.snapshot(rs)
}

// HasRoom reports whether any state for the id is still held.
func (r *RoomRegistry) HasRoom(roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// removeMember drops the peer and runs the empty-room bookkeeping.
// Caller holds the lock.
func (r *RoomRegistry) removeMember(rs *roomState, pid domain.PeerID) {
	m, ok := rs.members[pid]
	if !ok {
		return
	}
	delete(rs.members, pid)
	for i, id := range rs.order {
		if id == pid {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.rooms").Str("room", string(rs.meta.ID)).Str("peer", string(pid)).Msg("member left")
	r.broadcast(rs, protocol.Presence{
		Type: protocol.TypeParticipantLeft,
		ID:   string(pid),
		Name: m.Name,
		Ts:   r.sched.Now().UnixMilli(),
	})
	r.afterMembershipChange(rs)
}

// afterMembershipChange rebroadcasts the member list and keeps the
// timers consistent with the new count. Caller holds the lock.
func (r *RoomRegistry) afterMembershipChange(rs *roomState) {
	r.broadcastMembers(rs)
	if len(rs.members) == 0 {
		if rs.graceTimer == nil {
			id := rs.meta.ID
			log.Info().Str("module", "app.rooms").Str("room", string(id)).Dur("grace", r.grace).Msg("room empty, scheduling purge")
			rs.graceTimer = r.sched.ScheduleOnce(r.grace, func() { r.onGraceElapsed(id) })
		}
		return
	}
	if rs.graceTimer != nil {
		rs.graceTimer.Stop()
		rs.graceTimer = nil
		log.Info().Str("module", "app.rooms").Str("room", string(rs.meta.ID)).Msg("room repopulated, purge canceled")
	}
	// An already-running TTL window is kept; repopulating within grace
	// does not reset the countdown.
	if rs.ttlTimer == nil {
		r.scheduleTTL(rs)
	}
}

func (r *RoomRegistry) scheduleTTL(rs *roomState) {
	id := rs.meta.ID
	rs.meta.CreatedAt = r.sched.Now()
	rs.ttlTimer = r.sched.ScheduleOnce(r.ttl, func() { r.onTTLExpired(id) })
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Dur("ttl", r.ttl).Msg("TTL scheduled")
}

// onTTLExpired force-notifies every member present at expiry and purges
// the room regardless of membership at that instant.
func (r *RoomRegistry) onTTLExpired(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.rooms[roomID]
	if rs == nil {
		return
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Int("members", len(rs.members)).Msg("TTL expired, evicting room")
	r.broadcast(rs, protocol.Envelope{Type: protocol.TypeRoomExpired})
	r.purge(rs)
}

func (r *RoomRegistry) onGraceElapsed(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.rooms[roomID]
	if rs == nil {
		return
	}
	rs.graceTimer = nil
	if len(rs.members) > 0 {
		return
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("empty grace elapsed, purging room")
	r.purge(rs)
}

// purge discards all room state. Caller holds the lock.
func (r *RoomRegistry) purge(rs *roomState) {
	if rs.ttlTimer != nil {
		rs.ttlTimer.Stop()
	}
	if rs.graceTimer != nil {
		rs.graceTimer.Stop()
	}
	delete(r.rooms, rs.meta.ID)
}

func (r *RoomRegistry) memberRoom(roomID domain.RoomID, pid domain.PeerID) (*roomState, bool) {
	rs := r.rooms[roomID]
	if rs == nil {
		return nil, false
	}
	if _, ok := rs.members[pid]; !ok {
		return nil, false
	}
	return rs, true
}

func (r *RoomRegistry) remainingMs(rs *roomState) int64 {
	if rs.meta.CreatedAt.IsZero() {
		return r.ttl.Milliseconds()
	}
	left := r.ttl - r.sched.Now().Sub(rs.meta.CreatedAt)
	if left < 0 {
		left = 0
	}
	return left.Milliseconds()
}

func (r *RoomRegistry) snapshot(rs *roomState) []core.MemberDTO {
	out := make([]core.MemberDTO, 0, len(rs.order))
	for _, pid := range rs.order {
		m := rs.members[pid]
		out = append(out, core.MemberDTO{ID: m.ID, Name: m.Name, Muted: m.Muted})
	}
	return out
}

func (r *RoomRegistry) broadcastMembers(rs *roomState) {
	r.broadcast(rs, protocol.Members{
		Type:    protocol.TypeMembers,
		Room:    string(rs.meta.ID),
		Members: r.snapshot(rs),
	})
}

func (r *RoomRegistry) broadcast(rs *roomState, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Msg("broadcast marshal")
		return
	}
	for _, pid := range rs.order {
		conn, ok := r.conns.Get(pid)
		if !ok {
			continue
		}
		if err := conn.TrySend(core.Frame(b)); err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("peer", string(pid)).Msg("broadcast dropped")
		}
	}
}

package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func (ctl *Controller) handleJoin(pid domain.PeerID, conn *WsSignalConn, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, protocol.JoinDenied{Type: protocol.TypeRoomJoinDenied, Reason: protocol.DeniedError})
		return
	}
	roomID := domain.RoomID(p.Room)
	if roomID == "" {
		roomID = "main"
	}

	if !ctl.joinLimit.Allow(pid) {
		log.Warn().Str("module", "signal").Str("peer", string(pid)).Msg("join rate limited")
		ctl.sendJSON(conn, protocol.JoinDenied{Type: protocol.TypeRoomJoinDenied, Reason: protocol.DeniedError})
		return
	}

	res, err := ctl.Rooms.Join(roomID, pid, p.Name)
	if err != nil {
		reason := protocol.DeniedError
		if errors.Is(err, app.ErrRoomLocked) {
			reason = protocol.DeniedLocked
		}
		ctl.sendJSON(conn, protocol.JoinDenied{Type: protocol.TypeRoomJoinDenied, Reason: reason})
		return
	}
	ctl.sendJSON(conn, protocol.JoinOK{
		Type:        protocol.TypeRoomJoinOK,
		Locked:      res.Locked,
		TTLMs:       res.TTLMs,
		RemainingMs: res.RemainingMs,
	})
}

func (ctl *Controller) handleLeave(pid domain.PeerID, data []byte) {
	var p protocol.Leave
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		return
	}
	log.Info().Str("module", "signal").Str("peer", string(pid)).Str("room", p.Room).Msg("leave")
	ctl.Rooms.Leave(domain.RoomID(p.Room), pid)
}

func (ctl *Controller) handleSetUsername(pid domain.PeerID, data []byte) {
	var p protocol.SetUsername
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad set-username payload")
		return
	}
	if err := ctl.Rooms.SetUsername(domain.RoomID(p.Room), pid, p.Name); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("set-username rejected")
	}
}

func (ctl *Controller) handleSetMuted(pid domain.PeerID, data []byte) {
	var p protocol.SetMuted
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad set-muted payload")
		return
	}
	if err := ctl.Rooms.SetMuted(domain.RoomID(p.Room), pid, p.Muted); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("set-muted rejected")
	}
}

func (ctl *Controller) handleSetRoomLocked(pid domain.PeerID, data []byte) {
	var p protocol.SetRoomLocked
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad set-room-locked payload")
		return
	}
	if err := ctl.Rooms.SetLocked(domain.RoomID(p.Room), pid, p.Locked); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("set-room-locked rejected")
	}
}

func (ctl *Controller) handlePresence(pid domain.PeerID, msgType string, data []byte) {
	var p protocol.RoomEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad presence payload")
		return
	}
	if err := ctl.Rooms.NotifyPresence(domain.RoomID(p.Room), pid, msgType); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Str("type", msgType).Msg("presence rejected")
	}
}

func (ctl *Controller) handleChatSend(pid domain.PeerID, data []byte) {
	var p protocol.ChatSend
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat-send payload")
		return
	}
	if !ctl.chatLimit.Allow(pid) {
		log.Warn().Str("module", "signal").Str("peer", string(pid)).Msg("chat rate limited")
		return
	}
	if err := ctl.Rooms.AppendChat(domain.RoomID(p.Room), pid, p.Text, p.Ts); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("chat-send rejected")
	}
}

func (ctl *Controller) handleChatGetHistory(pid domain.PeerID, conn *WsSignalConn, data []byte) {
	var p protocol.RoomEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat-get-history payload")
		return
	}
	history, err := ctl.Rooms.ChatHistory(domain.RoomID(p.Room), pid)
	if err != nil {
		return
	}
	out := protocol.ChatHistory{Type: protocol.TypeChatHistory, Messages: make([]protocol.ChatMessage, 0, len(history))}
	for _, m := range history {
		out.Messages = append(out.Messages, protocol.ChatMessage{
			Type: protocol.TypeChatMessage,
			ID:   string(m.ID),
			Name: m.Name,
			Text: m.Text,
			Ts:   m.Ts,
		})
	}
	ctl.sendJSON(conn, out)
}

func (ctl *Controller) handleGetRoomState(conn *WsSignalConn, data []byte) {
	var p protocol.RoomEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad get-room-state payload")
		return
	}
	st := ctl.Rooms.RoomState(domain.RoomID(p.Room))
	ctl.sendJSON(conn, protocol.RoomState{
		Type:        protocol.TypeRoomState,
		Locked:      st.Locked,
		RemainingMs: st.RemainingMs,
	})
}

package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, pid domain.PeerID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("readPump closing")
		ctl.Rooms.DisconnectPeer(pid)
		ctl.Conns.UnbindConn(pid, c)
		ctl.joinLimit.Forget(pid)
		ctl.chatLimit.Forget(pid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(pid, c, data)
		}
	}
}

func (ctl *Controller) handleSignal(pid domain.PeerID, c *WsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(pid, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(pid, data)
	case protocol.TypeSetUsername:
		ctl.handleSetUsername(pid, data)
	case protocol.TypeSetMuted:
		ctl.handleSetMuted(pid, data)
	case protocol.TypeSetRoomLocked:
		ctl.handleSetRoomLocked(pid, data)
	case protocol.TypeRaiseHand, protocol.TypeScreenShareStarted, protocol.TypeScreenShareStopped:
		ctl.handlePresence(pid, env.Type, data)
	case protocol.TypeChatSend:
		ctl.handleChatSend(pid, data)
	case protocol.TypeChatGetHistory:
		ctl.handleChatGetHistory(pid, c, data)
	case protocol.TypeGetRoomState:
		ctl.handleGetRoomState(c, data)
	case protocol.TypeOfferTo:
		ctl.handleOfferTo(pid, data)
	case protocol.TypeAnswer:
		ctl.handleAnswer(pid, data)
	case protocol.TypeCandidateTo:
		ctl.handleCandidateTo(pid, data)
	case protocol.TypePing:
		ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypePong})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

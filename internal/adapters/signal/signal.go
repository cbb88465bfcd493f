package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

const (
	defaultReadLimit  = 32 << 10
	defaultPingPeriod = 54 * time.Second

	joinRateLimit  = 5
	joinRateWindow = 10 * time.Second
	chatRateLimit  = 10
	chatRateWindow = 10 * time.Second
)

// Controller terminates signal websockets and feeds the room registry
// and the relay.
type Controller struct {
	Conns *app.Registry
	Rooms *app.RoomRegistry
	Relay *app.Relay

	// ReadLimit and PingPeriod come from config; zero values fall back
	// to the defaults above.
	ReadLimit  int64
	PingPeriod time.Duration

	joinLimit *RateLimiter
	chatLimit *RateLimiter
}

func NewController(conns *app.Registry, rooms *app.RoomRegistry, relay *app.Relay) *Controller {
	return &Controller{
		Conns:     conns,
		Rooms:     rooms,
		Relay:     relay,
		joinLimit: NewRateLimiter(joinRateLimit, joinRateWindow),
		chatLimit: NewRateLimiter(chatRateLimit, chatRateWindow),
	}
}

func (ctl *Controller) readLimit() int64 {
	if ctl.ReadLimit > 0 {
		return ctl.ReadLimit
	}
	return defaultReadLimit
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return defaultPingPeriod
}

// pongWait is the read deadline window; pings go out at 9/10 of it.
func (ctl *Controller) pongWait() time.Duration {
	return ctl.pingPeriod() * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	// Peer ids are minted per connection, never reused across
	// reconnects. The session cookie identifies the browser, not the
	// socket.
	pid := domain.PeerID(uuid.NewString())
	log.Info().Str("module", "signal").Str("peer", string(pid)).Str("session", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	ws.SetReadLimit(ctl.readLimit())
	_ = ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Conns.Bind(pid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, pid, conn)

	ctl.sendJSON(conn, protocol.Welcome{Type: protocol.TypeWelcome, ID: string(pid)})
}

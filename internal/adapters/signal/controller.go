package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/app"
	"github.com/castform/castform/internal/auth"
	"github.com/castform/castform/internal/config"
	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the signaling WebSocket endpoint. One connection id per
// upgraded link, assigned here and never reused.
type Controller struct {
	Relay *app.Relay
	Auth  *auth.Service
	Cfg   *config.Config
}

func NewController(relay *app.Relay, authSvc *auth.Service, cfg *config.Config) *Controller {
	return &Controller{Relay: relay, Auth: authSvc, Cfg: cfg}
}

// WsConn adapts a gorilla connection to core.SignalConn. Writes go through
// a buffered channel drained by the write pump; a full buffer drops the
// frame instead of blocking the room's critical section.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
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

func (c *WsConn) Close() {
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

// Handle upgrades the request and starts the pumps. If the request carries
// a valid bearer token (header or ?token=), the resolved identity
// overrides whatever the client later asserts in join-session.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	cid := domain.ConnectionID(uuid.NewString())

	var identity *domain.User
	bearer := c.GetHeader("Authorization")
	if bearer == "" && c.Query("token") != "" {
		bearer = "Bearer " + c.Query("token")
	}
	if bearer != "" && ctl.Auth != nil {
		if u, err := ctl.Auth.Resolve(bearer); err == nil {
			identity = u
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg != nil && ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("new WS connection")

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Relay.Registry.Register(cid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cid, identity, conn)
}

func (ctl *Controller) sendEvent(c *WsConn, v any) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode event")
		return
	}
	_ = c.TrySend(frame)
}

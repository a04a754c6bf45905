package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades sockets and drives the connection lifecycle. One
// goroutine pair (read/write pump) per connection; the read pump owns
// teardown.
type Controller struct {
	Lifecycle *app.Lifecycle
	Presence  *app.PresenceRegistry

	ReadLimit  int64
	PingPeriod time.Duration
	SendQueue  int
}

func NewController(lifecycle *app.Lifecycle, presence *app.PresenceRegistry, readLimit int64, pingPeriod time.Duration, sendQueue int) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Lifecycle:  lifecycle,
		Presence:   presence,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		SendQueue:  sendQueue,
	}
}

// HandleWS upgrades the request. The connection id combines the browser
// client token with a per-socket uuid so reconnects get fresh ids.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	connID := core.ConnectionID(token + ":" + uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("new WS connection")

	conn := newWSConn(ws, ctl.SendQueue)
	go conn.writePump(ctl.PingPeriod)
	go ctl.readPump(ctx, connID, conn)
}

func (ctl *Controller) readPump(ctx context.Context, connID core.ConnectionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("read pump closing")
		ctl.Lifecycle.Disconnect(connID)
		c.Close()
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	pongWait := ctl.PingPeriod + writeWait
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("read pump exit")
				return
			}
			ctl.dispatch(ctx, connID, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, connID core.ConnectionID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad envelope")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, connID, c, data)
	case "leave":
		ctl.handleLeave(connID, c)
	case "toggle-media":
		ctl.handleToggleMedia(connID, c, data)
	case "send-message":
		ctl.handleSendMessage(ctx, connID, c, data)
	case "ping":
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	case "offer", "answer":
		ctl.forwardDescription(connID, c, env.Type, data)
	case "candidate":
		ctl.forwardCandidate(connID, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown envelope")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal reply")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("reply not delivered")
	}
}

func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, map[string]string{"type": string(core.EventRoomError), "error": msg})
}

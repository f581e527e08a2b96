package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/model"
)

// client is one websocket connection. Only writePump writes to conn after
// the join handshake.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// set once under hub.mu during register
	userID string
	role   string
	rooms  []string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
}

// awaitJoin reads the first frame, which must be a join envelope carrying a
// valid staff token. On failure the client is told why and disconnected.
func (c *client) awaitJoin() (*auth.Claims, []string, bool) {
	if c.hub.opts.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.hub.opts.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.JoinTimeout))

	var env model.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		zlog.Logger.Debug().Err(err).Str("client", c.id).Msg("no join received")
		c.close()
		return nil, nil, false
	}

	if env.Type != model.EnvelopeJoin {
		c.reject("expected join")
		return nil, nil, false
	}

	var join model.JoinPayload
	if err := env.Decode(&join); err != nil || join.Token == "" {
		c.reject("missing token")
		return nil, nil, false
	}

	claims, err := c.hub.verifier.Verify(join.Token)
	if err != nil {
		c.reject("invalid or expired token")
		return nil, nil, false
	}

	rooms := model.RoomsForRole(claims.Role, claims.UserID)
	if len(rooms) == 0 {
		c.reject("role may not receive order notifications")
		return nil, nil, false
	}

	return claims, rooms, true
}

// reject writes a rejected envelope directly and closes the connection.
func (c *client) reject(reason string) {
	zlog.Logger.Info().Str("client", c.id).Str("reason", reason).Msg("join rejected")

	env, err := model.NewEnvelope(model.EnvelopeRejected, model.RejectedPayload{Reason: reason})
	if err == nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
		_ = c.conn.WriteJSON(env)
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	}
	c.close()
}

// enqueue queues data without blocking. It returns false if the buffer is
// full or the client is closing.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump keeps the read deadline fresh and discards client frames.
// Clients only ever send the join; a repeated join is ignored.
func (c *client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Logger.Debug().Err(err).Str("client", c.id).Msg("read error")
			}
			return
		}

		var env model.Envelope
		if json.Unmarshal(data, &env) == nil && env.Type == model.EnvelopeJoin {
			zlog.Logger.Debug().Str("client", c.id).Msg("ignoring repeated join")
		}
	}
}

// writePump sends queued frames and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

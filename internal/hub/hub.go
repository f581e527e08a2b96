// Package hub is the server side of the notification transport. Staff
// clients connect over a websocket, identify themselves with a join message
// and are placed into rooms; order events are broadcast to rooms.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/bus"
	"github.com/nhle/orderbell/internal/config"
	"github.com/nhle/orderbell/internal/model"
)

// Verifier checks the token carried in a join message.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Options holds the websocket limits for a Hub.
type Options struct {
	JoinTimeout     time.Duration
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64

	// CheckOrigin is passed to the upgrader; nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// OptionsFrom converts the hub section of the server config.
func OptionsFrom(cfg config.Hub) Options {
	return Options{
		JoinTimeout:     cfg.JoinTimeout,
		SendBuffer:      cfg.SendBuffer,
		PingInterval:    cfg.PingInterval,
		PongWait:        cfg.PongWait,
		WriteWait:       cfg.WriteWait,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}
}

// Stats is a point-in-time view of hub membership.
type Stats struct {
	Clients int            `json:"clients"`
	Rooms   map[string]int `json:"rooms"`
}

// Hub tracks connected clients and their room membership.
type Hub struct {
	opts     Options
	verifier Verifier
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[string]map[*client]struct{}
	closed  bool
}

// New creates a Hub that verifies joins with v.
func New(v Verifier, opts Options) *Hub {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		opts:     opts,
		verifier: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*client]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		zlog.Logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	claims, rooms, ok := c.awaitJoin()
	if !ok {
		return
	}

	if !h.register(c, claims, rooms) {
		c.close()
		return
	}
	defer h.unregister(c)

	joined, err := model.NewEnvelope(model.EnvelopeJoined, model.JoinedPayload{
		Rooms:  rooms,
		UserID: claims.UserID,
		Role:   claims.Role,
	})
	if err == nil {
		if data, err := json.Marshal(joined); err == nil {
			c.enqueue(data)
		}
	}

	zlog.Logger.Info().
		Str("client", c.id).
		Str("user", claims.UserID).
		Str("role", claims.Role).
		Strs("rooms", rooms).
		Msg("client joined")

	go c.writePump()
	c.readPump()
}

// Broadcast sends env once to every client that belongs to at least one of
// rooms and returns the number of clients it was queued for. Clients whose
// send buffer is full are disconnected.
func (h *Hub) Broadcast(rooms []string, env model.Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("type", env.Type).Msg("failed to encode broadcast")
		return 0
	}

	h.mu.RLock()
	targets := make(map[*client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	sent := 0
	for c := range targets {
		if c.enqueue(data) {
			sent++
			continue
		}
		zlog.Logger.Warn().Str("client", c.id).Str("user", c.userID).Msg("send buffer full, dropping client")
		c.close()
	}
	return sent
}

// Subscriber is the receiving half of a bus.
type Subscriber interface {
	Subscribe(ctx context.Context, fn bus.Handler) error
}

// Relay broadcasts every message arriving on sub until ctx is done.
func (h *Hub) Relay(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, func(m bus.Message) {
		n := h.Broadcast(m.Rooms, m.Envelope)
		zlog.Logger.Debug().Str("type", m.Envelope.Type).Strs("rooms", m.Rooms).Int("clients", n).Msg("relayed")
	})
}

// Stats returns the current client and per-room counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Clients: len(h.clients), Rooms: make(map[string]int, len(h.rooms))}
	for name, members := range h.rooms {
		s.Rooms[name] = len(members)
	}
	return s
}

// Close disconnects every client and refuses new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client, claims *auth.Claims, rooms []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	c.userID = claims.UserID
	c.role = claims.Role
	c.rooms = rooms

	h.clients[c] = struct{}{}
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.close()
	zlog.Logger.Info().Str("client", c.id).Str("user", c.userID).Msg("client left")
}

// Package session keeps the client's websocket connection to the server
// alive and turns incoming envelopes into bubbletea messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/model"
)

// Kind identifies what an Event carries.
type Kind int

const (
	EventStatus Kind = iota
	EventNotification
	EventRejected
)

// State is the connection state shown in the header.
type State int

const (
	StateConnecting State = iota
	StateLive
	StateReconnecting
	StateRejected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateRejected:
		return "rejected"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is sent on the session channel. It is also the tea.Msg produced by
// WaitForEvent.
type Event struct {
	Kind  Kind
	State State

	// EventNotification
	Type  string
	Order model.OrderEvent

	// StateLive
	Rooms []string

	// EventRejected
	Reason string

	// StateReconnecting / StateStopped
	Err     error
	Attempt int
	RetryIn time.Duration
}

const (
	defaultBuffer      = 64
	defaultReadTimeout = 60 * time.Second
	defaultRetryDelay  = time.Second
	writeWait          = 10 * time.Second
	wsPath             = "/v1/ws"
)

// Options configures a Session.
type Options struct {
	// ServerURL is the http(s) or ws(s) base URL of the server.
	ServerURL string
	Token     string
	Reconnect model.ReconnectConfig

	// ReadTimeout closes the connection if neither a frame nor a ping
	// arrives in time. Zero uses a default.
	ReadTimeout time.Duration
	Buffer      int
	Dialer      *websocket.Dialer
}

// Session owns at most one websocket connection at a time.
type Session struct {
	opts   Options
	url    string
	dialer *websocket.Dialer
	events chan Event

	mu     sync.Mutex // guards cancel and closed
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup

	connMu sync.Mutex
	conn   *websocket.Conn
}

// New validates opts and returns an idle Session. Call Start to connect.
func New(opts Options) (*Session, error) {
	if opts.Token == "" {
		return nil, errors.New("session: token is required")
	}
	wsURL, err := WSURL(opts.ServerURL)
	if err != nil {
		return nil, err
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.Reconnect.Delay <= 0 {
		opts.Reconnect.Delay = defaultRetryDelay
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Session{
		opts:   opts,
		url:    wsURL,
		dialer: dialer,
		events: make(chan Event, opts.Buffer),
	}, nil
}

// WSURL derives the websocket endpoint from a server base URL.
func WSURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("session: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("session: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("session: server url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + wsPath
	u.RawQuery = ""
	return u.String(), nil
}

// Events exposes the event channel. It is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Start connects in the background, first tearing down any connection a
// previous Start opened. It returns the command that waits for the first
// event.
func (s *Session) Start() tea.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)

	return s.WaitForEvent()
}

// Close stops the connection loop, waits for it to exit and closes the event
// channel. Events still buffered are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopLocked()

	for {
		select {
		case <-s.events:
			continue
		default:
		}
		break
	}
	close(s.events)
}

// WaitForEvent returns a tea.Cmd that blocks until the next event. It must be
// re-issued after each event is handled.
func (s *Session) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.events
		if !ok {
			return nil
		}
		return ev
	}
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
}

// setConn records the live connection. It refuses once ctx is cancelled so a
// dial that races with stopLocked cannot leak.
func (s *Session) setConn(ctx context.Context, conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) clearConn(conn *websocket.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.connMu.Unlock()
	conn.Close()
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()

	strategy := s.opts.Reconnect.Strategy()
	delay := strategy.Delay
	failures := 0

	s.emit(ctx, Event{Kind: EventStatus, State: StateConnecting})

	for {
		joined, reason, err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}

		if reason != "" {
			zlog.Logger.Warn().Str("reason", reason).Msg("server rejected session")
			s.emit(ctx, Event{Kind: EventRejected, State: StateRejected, Reason: reason})
			return
		}

		if joined {
			failures = 0
			delay = strategy.Delay
		}
		failures++

		if strategy.Attempts > 0 && failures > strategy.Attempts {
			err = fmt.Errorf("giving up after %d attempts: %w", strategy.Attempts, err)
			zlog.Logger.Error().Err(err).Msg("session stopped")
			s.emit(ctx, Event{Kind: EventStatus, State: StateStopped, Err: err, Attempt: failures})
			return
		}

		zlog.Logger.Warn().Err(err).Int("attempt", failures).Dur("retry_in", delay).Msg("connection lost")
		s.emit(ctx, Event{Kind: EventStatus, State: StateReconnecting, Err: err, Attempt: failures, RetryIn: delay})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextDelay(delay, strategy.Backoff, s.opts.Reconnect.MaxDelay)
	}
}

// connect runs one connection until it drops. joined reports whether the
// server accepted the join; a non-empty reason means it was rejected.
func (s *Session) connect(ctx context.Context) (joined bool, reason string, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, "", fmt.Errorf("dial %s: %w", s.url, err)
	}
	if !s.setConn(ctx, conn) {
		conn.Close()
		return false, "", ctx.Err()
	}
	defer s.clearConn(conn)

	env, err := model.NewEnvelope(model.EnvelopeJoin, model.JoinPayload{Token: s.opts.Token})
	if err != nil {
		return false, "", err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return false, "", fmt.Errorf("send join: %w", err)
	}

	readTimeout := s.opts.ReadTimeout
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return joined, "", err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			zlog.Logger.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		switch {
		case env.Type == model.EnvelopeJoined:
			var p model.JoinedPayload
			if err := env.Decode(&p); err != nil {
				zlog.Logger.Warn().Err(err).Msg("malformed joined payload")
			}
			joined = true
			zlog.Logger.Info().Strs("rooms", p.Rooms).Msg("session live")
			s.emit(ctx, Event{Kind: EventStatus, State: StateLive, Rooms: p.Rooms})

		case env.Type == model.EnvelopeRejected:
			var p model.RejectedPayload
			_ = env.Decode(&p)
			if p.Reason == "" {
				p.Reason = "rejected by server"
			}
			return joined, p.Reason, nil

		case env.IsOrderEvent():
			var ev model.OrderEvent
			if err := env.Decode(&ev); err != nil {
				zlog.Logger.Warn().Err(err).Str("type", env.Type).Msg("malformed order event")
				continue
			}
			s.emit(ctx, Event{Kind: EventNotification, Type: env.Type, Order: ev})

		default:
			zlog.Logger.Debug().Str("type", env.Type).Msg("ignoring envelope")
		}
	}
}

func nextDelay(d time.Duration, backoff float64, max time.Duration) time.Duration {
	if backoff < 1 {
		backoff = 1
	}
	next := time.Duration(float64(d) * backoff)
	if max > 0 && next > max {
		return max
	}
	return next
}

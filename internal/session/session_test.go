package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/orderbell/internal/auth/authtest"
	"github.com/nhle/orderbell/internal/hub"
	"github.com/nhle/orderbell/internal/model"
)

func fastReconnect() model.ReconnectConfig {
	return model.ReconnectConfig{Delay: 10 * time.Millisecond, Backoff: 2, MaxDelay: 40 * time.Millisecond}
}

// next returns the first event matching match, failing after a timeout.
func next(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "event channel closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func isState(st State) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventStatus && ev.State == st }
}

func startHub(t *testing.T) (*hub.Hub, string, func(userID, role string) string) {
	t.Helper()
	p := authtest.NewProvider(t)
	h := hub.New(p, hub.Options{
		JoinTimeout:     time.Second,
		SendBuffer:      8,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteWait:       time.Second,
		MaxMessageBytes: 4096,
	})
	mux := http.NewServeMux()
	mux.Handle("/v1/ws", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv.URL, func(userID, role string) string { return authtest.Token(t, p, userID, role) }
}

// flakyServer accepts a join, answers joined, then drops the connection.
func flakyServer(t *testing.T, accepted *atomic.Int32) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var env model.Envelope
		if conn.ReadJSON(&env) != nil {
			return
		}
		accepted.Add(1)
		joined, _ := model.NewEnvelope(model.EnvelopeJoined, model.JoinedPayload{Rooms: []string{model.RoomAdmins}})
		_ = conn.WriteJSON(joined)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSession_JoinsAndReceivesOrders(t *testing.T) {
	h, url, token := startHub(t)

	s, err := New(Options{ServerURL: url, Token: token("a1", model.RoleAdmin), Reconnect: fastReconnect()})
	require.NoError(t, err)
	defer s.Close()
	s.Start()

	live := next(t, s, isState(StateLive))
	assert.Equal(t, []string{model.RoomAdmins}, live.Rooms)

	env, err := model.NewEnvelope(model.EnvelopeOrderCreated, model.OrderEvent{
		ID: "e1", OrderID: 7, OrderNumber: 10007, CustomerName: "Ada", Total: "12.50", ItemCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.Broadcast([]string{model.RoomAdmins}, env))

	ev := next(t, s, func(ev Event) bool { return ev.Kind == EventNotification })
	assert.Equal(t, model.EnvelopeOrderCreated, ev.Type)
	assert.Equal(t, "e1", ev.Order.ID)
	assert.Equal(t, int64(10007), ev.Order.OrderNumber)
}

func TestSession_RejectionIsTerminal(t *testing.T) {
	_, url, _ := startHub(t)

	s, err := New(Options{ServerURL: url, Token: "garbage", Reconnect: fastReconnect()})
	require.NoError(t, err)
	defer s.Close()
	s.Start()

	ev := next(t, s, func(ev Event) bool { return ev.Kind == EventRejected })
	assert.Equal(t, StateRejected, ev.State)
	assert.NotEmpty(t, ev.Reason)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event after rejection: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNew_ZeroReconnectDelayUsesDefault(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Options{ServerURL: srv.URL, Token: "t", Reconnect: model.ReconnectConfig{Backoff: 2}})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, defaultRetryDelay, s.opts.Reconnect.Delay)

	s.Start()
	next(t, s, isState(StateReconnecting))
	time.Sleep(300 * time.Millisecond)
	assert.LessOrEqual(t, dials.Load(), int32(2))
}

func TestSession_ReconnectsAfterDrop(t *testing.T) {
	var accepted atomic.Int32
	url := flakyServer(t, &accepted)

	s, err := New(Options{ServerURL: url, Token: "t", Reconnect: fastReconnect()})
	require.NoError(t, err)
	defer s.Close()
	s.Start()

	next(t, s, isState(StateLive))
	lost := next(t, s, isState(StateReconnecting))
	assert.Error(t, lost.Err)
	assert.Equal(t, 1, lost.Attempt)
	// the delay resets after every successful join
	assert.Equal(t, 10*time.Millisecond, lost.RetryIn)

	next(t, s, isState(StateLive))
	assert.GreaterOrEqual(t, accepted.Load(), int32(2))
}

func TestSession_GivesUpAfterAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rc := fastReconnect()
	rc.Attempts = 2
	s, err := New(Options{ServerURL: url, Token: "t", Reconnect: rc})
	require.NoError(t, err)
	defer s.Close()
	s.Start()

	first := next(t, s, isState(StateReconnecting))
	assert.Equal(t, 10*time.Millisecond, first.RetryIn)
	second := next(t, s, isState(StateReconnecting))
	assert.Equal(t, 20*time.Millisecond, second.RetryIn)

	stopped := next(t, s, isState(StateStopped))
	assert.ErrorContains(t, stopped.Err, "giving up after 2 attempts")
}

func TestSession_RestartKeepsSingleConnection(t *testing.T) {
	var active atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		active.Add(1)
		defer active.Add(-1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, err := New(Options{ServerURL: srv.URL, Token: "t", Reconnect: fastReconnect()})
	require.NoError(t, err)
	defer s.Close()

	s.Start()
	assert.Eventually(t, func() bool { return active.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return active.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return active.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestSession_CloseStopsEvents(t *testing.T) {
	var accepted atomic.Int32
	url := flakyServer(t, &accepted)

	s, err := New(Options{ServerURL: url, Token: "t", Reconnect: fastReconnect()})
	require.NoError(t, err)
	s.Start()
	next(t, s, isState(StateLive))

	s.Close()
	_, ok := <-s.Events()
	assert.False(t, ok)

	// idempotent, and Start after Close is a no-op
	s.Close()
	assert.Nil(t, s.Start())
	assert.Nil(t, s.WaitForEvent()())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{ServerURL: "http://localhost:8080"})
	assert.Error(t, err)

	_, err = New(Options{ServerURL: "ftp://x", Token: "t"})
	assert.Error(t, err)
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/v1/ws"},
		{"https://shop.example.com/", "wss://shop.example.com/v1/ws"},
		{"https://shop.example.com/api?x=1", "wss://shop.example.com/api/v1/ws"},
		{"ws://127.0.0.1:9000", "ws://127.0.0.1:9000/v1/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := WSURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := WSURL("localhost")
	assert.Error(t, err)
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, 2, 0))
	assert.Equal(t, 3*time.Second, nextDelay(2*time.Second, 2, 3*time.Second))
	assert.Equal(t, time.Second, nextDelay(time.Second, 0.5, 0))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "live", StateLive.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.True(t, strings.HasPrefix(State(99).String(), "unknown"))
}

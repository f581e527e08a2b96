package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/auth/authtest"
	"github.com/nhle/orderbell/internal/model"
)

func testOptions() Options {
	return Options{
		JoinTimeout:     time.Second,
		SendBuffer:      8,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteWait:       time.Second,
		MaxMessageBytes: 4096,
	}
}

func startHub(t *testing.T) (*Hub, *auth.Provider, string) {
	t.Helper()
	p := authtest.NewProvider(t)
	h := New(p, testOptions())
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, p, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJoin(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	env, err := model.NewEnvelope(model.EnvelopeJoin, model.JoinPayload{Token: token})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env model.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func join(t *testing.T, url, token string) (*websocket.Conn, model.JoinedPayload) {
	t.Helper()
	conn := dial(t, url)
	sendJoin(t, conn, token)
	env := readEnvelope(t, conn)
	require.Equal(t, model.EnvelopeJoined, env.Type)
	var joined model.JoinedPayload
	require.NoError(t, env.Decode(&joined))
	return conn, joined
}

func orderEnvelope(t *testing.T, id string) model.Envelope {
	t.Helper()
	env, err := model.NewEnvelope(model.EnvelopeOrderCreated, model.OrderEvent{
		ID: id, OrderID: 1, OrderNumber: 10001, CustomerName: "Ada", Total: "9.99", ItemCount: 2,
	})
	require.NoError(t, err)
	return env
}

func TestJoin_AdminReceivesBroadcast(t *testing.T) {
	h, p, url := startHub(t)

	conn, joined := join(t, url, authtest.Token(t, p, "a1", model.RoleAdmin))
	assert.Equal(t, []string{model.RoomAdmins}, joined.Rooms)
	assert.Equal(t, "a1", joined.UserID)

	n := h.Broadcast([]string{model.RoomAdmins}, orderEnvelope(t, "e1"))
	assert.Equal(t, 1, n)

	env := readEnvelope(t, conn)
	assert.Equal(t, model.EnvelopeOrderCreated, env.Type)
	var ev model.OrderEvent
	require.NoError(t, env.Decode(&ev))
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "9.99", ev.Total)
}

func TestBroadcast_RiderRoomIsPrivate(t *testing.T) {
	h, p, url := startHub(t)

	_, _ = join(t, url, authtest.Token(t, p, "a1", model.RoleAdmin))
	r1, joined := join(t, url, authtest.Token(t, p, "r1", model.RoleRider))
	assert.Equal(t, []string{"rider:r1"}, joined.Rooms)
	_, _ = join(t, url, authtest.Token(t, p, "r2", model.RoleRider))

	n := h.Broadcast([]string{model.RiderRoom("r1")}, orderEnvelope(t, "e2"))
	assert.Equal(t, 1, n)

	env := readEnvelope(t, r1)
	assert.Equal(t, model.EnvelopeOrderCreated, env.Type)
}

func TestBroadcast_OneCopyPerClientAcrossRooms(t *testing.T) {
	h, p, url := startHub(t)

	conn, joined := join(t, url, authtest.Token(t, p, "s1", model.RoleSuperAdmin))
	assert.ElementsMatch(t, []string{model.RoomAdmins, model.RoomSuperAdmins}, joined.Rooms)

	n := h.Broadcast([]string{model.RoomAdmins, model.RoomSuperAdmins}, orderEnvelope(t, "e3"))
	assert.Equal(t, 1, n)

	_ = readEnvelope(t, conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no second copy")
}

func TestJoin_RepeatedJoinIgnored(t *testing.T) {
	h, p, url := startHub(t)

	token := authtest.Token(t, p, "a1", model.RoleAdmin)
	conn, _ := join(t, url, token)
	sendJoin(t, conn, token)

	assert.Never(t, func() bool {
		stats := h.Stats()
		return stats.Clients != 1 || stats.Rooms[model.RoomAdmins] != 1
	}, 150*time.Millisecond, 10*time.Millisecond)

	assert.Equal(t, 1, h.Broadcast([]string{model.RoomAdmins}, orderEnvelope(t, "e4")))
	env := readEnvelope(t, conn)
	assert.Equal(t, model.EnvelopeOrderCreated, env.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected exactly one frame")
}

func TestJoin_InvalidTokenRejected(t *testing.T) {
	h, _, url := startHub(t)

	conn := dial(t, url)
	sendJoin(t, conn, "not-a-token")

	env := readEnvelope(t, conn)
	assert.Equal(t, model.EnvelopeRejected, env.Type)
	var rejected model.RejectedPayload
	require.NoError(t, env.Decode(&rejected))
	assert.Contains(t, rejected.Reason, "token")
	assert.Equal(t, 0, h.Stats().Clients)
}

func TestJoin_NonStaffRoleRejected(t *testing.T) {
	_, p, url := startHub(t)

	conn := dial(t, url)
	sendJoin(t, conn, authtest.Token(t, p, "c1", "customer"))

	env := readEnvelope(t, conn)
	assert.Equal(t, model.EnvelopeRejected, env.Type)
}

func TestJoin_FirstFrameMustBeJoin(t *testing.T) {
	_, _, url := startHub(t)

	conn := dial(t, url)
	env, err := model.NewEnvelope("hello", map[string]string{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))

	got := readEnvelope(t, conn)
	assert.Equal(t, model.EnvelopeRejected, got.Type)
}

func TestStats_TracksJoinAndLeave(t *testing.T) {
	h, p, url := startHub(t)

	conn, _ := join(t, url, authtest.Token(t, p, "a1", model.RoleAdmin))
	_, _ = join(t, url, authtest.Token(t, p, "r1", model.RoleRider))

	stats := h.Stats()
	assert.Equal(t, 2, stats.Clients)
	assert.Equal(t, 1, stats.Rooms[model.RoomAdmins])
	assert.Equal(t, 1, stats.Rooms["rider:r1"])

	conn.Close()
	assert.Eventually(t, func() bool {
		return h.Stats().Rooms[model.RoomAdmins] == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcast_FullBufferDropsClient(t *testing.T) {
	opts := testOptions()
	opts.SendBuffer = 1
	h := New(nil, opts)

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	defer srv.Close()

	_ = dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	c := newClient(h, <-conns)
	require.True(t, h.register(c, &auth.Claims{UserID: "a1", Role: model.RoleAdmin}, []string{model.RoomAdmins}))

	// no writePump is running, so the second frame cannot be queued
	assert.Equal(t, 1, h.Broadcast([]string{model.RoomAdmins}, orderEnvelope(t, "e1")))
	assert.Equal(t, 0, h.Broadcast([]string{model.RoomAdmins}, orderEnvelope(t, "e2")))

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("slow client was not closed")
	}
}

func TestClose_RefusesNewJoins(t *testing.T) {
	h, p, url := startHub(t)
	h.Close()

	conn := dial(t, url)
	sendJoin(t, conn, authtest.Token(t, p, "a1", model.RoleAdmin))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.Stats().Clients)
}

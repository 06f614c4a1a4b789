// internal/handlers/relay_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bridgeduel/internal/auth"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRelay(t *testing.T) (*RelayServer, *httptest.Server) {
	require.NoError(t, auth.Init())
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	rs := NewRelayServer(logger)
	srv := httptest.NewServer(rs.Handler())
	t.Cleanup(srv.Close)
	return rs, srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, ctx context.Context, c *websocket.Conn, msg models.Message) {
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func recv(t *testing.T, ctx context.Context, c *websocket.Conn) models.Message {
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := c.Read(rctx)
	require.NoError(t, err)
	var msg models.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func join(t *testing.T, ctx context.Context, srv *httptest.Server, room, passcode string) (*websocket.Conn, models.Message) {
	c := dial(t, ctx, srv)
	send(t, ctx, c, models.Message{Type: models.MsgJoinRoom, RoomID: room, Passcode: passcode})
	return c, recv(t, ctx, c)
}

func TestRelayPairsAndForwards(t *testing.T) {
	ctx := context.Background()
	rs, srv := setupRelay(t)

	host, assigned := join(t, ctx, srv, "abc", "")
	assert.Equal(t, models.MsgRoleAssigned, assigned.Type)
	assert.Equal(t, models.Host, assigned.Role)
	assert.NotEmpty(t, assigned.Token)

	peer, assigned := join(t, ctx, srv, "abc", "")
	assert.Equal(t, models.Peer, assigned.Role)

	assert.Equal(t, models.MsgPlayerConnected, recv(t, ctx, host).Type)
	assert.Equal(t, models.MsgPlayerConnected, recv(t, ctx, peer).Type)
	assert.Equal(t, 1, rs.Store.Count())

	action := models.BidAction(2, models.BidHearts, models.Peer)
	send(t, ctx, peer, models.Message{Type: models.MsgGameAction, RoomID: "abc", Action: &action})
	got := recv(t, ctx, host)
	assert.Equal(t, models.MsgGameAction, got.Type)
	require.NotNil(t, got.Action)
	assert.Equal(t, action, *got.Action)

	state := models.NewGameState()
	send(t, ctx, host, models.Message{Type: models.MsgSyncState, State: &state})
	got = recv(t, ctx, peer)
	assert.Equal(t, models.MsgSyncState, got.Type)
	require.NotNil(t, got.State)
	assert.True(t, state.Equal(*got.State), "snapshot survives the wire")

	send(t, ctx, peer, models.Message{Type: models.MsgSyncRequest})
	assert.Equal(t, models.MsgSyncRequest, recv(t, ctx, host).Type)
}

func TestRelayPing(t *testing.T) {
	ctx := context.Background()
	_, srv := setupRelay(t)
	c, _ := join(t, ctx, srv, "ping", "")

	send(t, ctx, c, models.Message{Type: models.MsgPing, Data: 12345})
	got := recv(t, ctx, c)
	assert.Equal(t, models.MsgPong, got.Type)
	assert.EqualValues(t, 12345, got.Data)
}

func TestRelayRoomFull(t *testing.T) {
	ctx := context.Background()
	_, srv := setupRelay(t)
	join(t, ctx, srv, "full", "")
	join(t, ctx, srv, "full", "")

	third, msg := join(t, ctx, srv, "full", "")
	assert.Equal(t, models.MsgError, msg.Type)
	assert.Equal(t, "Room is full.", msg.Message)

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _, err := third.Read(rctx)
	require.Error(t, err)
	assert.Equal(t, RoomFullError, websocket.CloseStatus(err))
}

func TestRelayBadPasscode(t *testing.T) {
	ctx := context.Background()
	_, srv := setupRelay(t)
	join(t, ctx, srv, "locked", "s3cret")

	c, msg := join(t, ctx, srv, "locked", "guess")
	assert.Equal(t, models.MsgError, msg.Type)

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _, err := c.Read(rctx)
	assert.Equal(t, BadPasscodeError, websocket.CloseStatus(err))
}

func TestRelayRequiresJoinFirst(t *testing.T) {
	ctx := context.Background()
	_, srv := setupRelay(t)
	c := dial(t, ctx, srv)
	send(t, ctx, c, models.Message{Type: models.MsgPing})

	assert.Equal(t, models.MsgError, recv(t, ctx, c).Type)
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _, err := c.Read(rctx)
	assert.Equal(t, InvalidJoinError, websocket.CloseStatus(err))
}

func TestRelayBadSubprotocol(t *testing.T) {
	ctx := context.Background()
	_, srv := setupRelay(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _, err = c.Read(rctx)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestRelayDisconnectNotifiesAndCleansUp(t *testing.T) {
	ctx := context.Background()
	rs, srv := setupRelay(t)

	host, _ := join(t, ctx, srv, "bye", "")
	peer, _ := join(t, ctx, srv, "bye", "")
	recv(t, ctx, host)
	recv(t, ctx, peer)

	peer.Close(websocket.StatusNormalClosure, "leaving")
	assert.Equal(t, models.MsgPlayerDisconnected, recv(t, ctx, host).Type)

	host.Close(websocket.StatusNormalClosure, "leaving")
	require.Eventually(t, func() bool { return rs.Store.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	_, srv := setupRelay(t)

	for _, path := range []string{"/health", "/"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body.Status)
		assert.Zero(t, body.Rooms)
		_, err = time.Parse(time.RFC3339Nano, body.Timestamp)
		assert.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanward/internal/auth"
	"github.com/cleanward/internal/types"
)

type staticRoles map[string]types.Role

func (s staticRoles) LookupRole(_ context.Context, userID string) (types.Role, bool, error) {
	r, ok := s[userID]
	return r, ok, nil
}

type hubFixture struct {
	hub    *Hub
	gate   *auth.Gate
	tokens *auth.TokenIssuer
	server *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	gate := auth.NewGate(tokens, nil, staticRoles{"u-1": types.RoleCitizen, "u-2": types.RoleAdmin}, nil)
	hub := NewHub(gate, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &hubFixture{hub: hub, gate: gate, tokens: tokens, server: server}
}

func (f *hubFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	want := f.hub.ClientCount() + 1
	issued, err := f.tokens.IssueSession(userID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + issued.Token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == want
	}, time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHub_RejectsUnauthenticated(t *testing.T) {
	f := newHubFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_BroadcastAndSendToUser(t *testing.T) {
	f := newHubFixture(t)
	citizen := f.dial(t, "u-1")
	admin := f.dial(t, "u-2")

	f.hub.Broadcast(TopicLeaderboard, nil)
	assert.Equal(t, TopicLeaderboard, readMessage(t, citizen).Type)
	assert.Equal(t, TopicLeaderboard, readMessage(t, admin).Type)

	f.hub.SendToUser("u-1", TopicLedger, map[string]string{"entryId": "e-1"})
	m := readMessage(t, citizen)
	assert.Equal(t, TopicLedger, m.Type)
	assert.Equal(t, map[string]interface{}{"entryId": "e-1"}, m.Data)

	f.hub.Broadcast(TopicReviewQueue, nil)
	assert.Equal(t, TopicReviewQueue, readMessage(t, admin).Type, "admin must not receive the citizen's ledger event")
}

func TestHub_SignOutClosesConnectionAndUnsubscribes(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "u-1")

	f.gate.Publish("u-1", auth.Unauthenticated())

	m := readMessage(t, conn)
	assert.Equal(t, TopicSession, m.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after sign-out")

	assert.Eventually(t, func() bool {
		return f.gate.SubscriberCount("u-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_DisconnectUnsubscribes(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "u-1")
	require.Equal(t, 1, f.gate.SubscriberCount("u-1"))

	_ = conn.Close()

	assert.Eventually(t, func() bool {
		return f.gate.SubscriberCount("u-1") == 0 && f.hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

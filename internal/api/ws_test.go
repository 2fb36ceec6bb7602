package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nvoloshyn/go-chathub/internal/auth"
	"github.com/nvoloshyn/go-chathub/internal/config"
	"github.com/nvoloshyn/go-chathub/internal/database"
	"github.com/nvoloshyn/go-chathub/internal/hub"
	"github.com/nvoloshyn/go-chathub/internal/stats"
	"github.com/nvoloshyn/go-chathub/internal/testutil"
	"github.com/nvoloshyn/go-chathub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// waitForEvent reads frames until the named event arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) wsEnvelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "expected event %q before deadline", event)

		var env wsEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Event == event {
			return env
		}
	}
}

func newWsTestServer(t *testing.T, db database.ChatHubRepository) (*ChatHubApp, *httptest.Server) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return(nil)
	su.On("Incr", mock.Anything).Return(nil)
	su.On("Decr", mock.Anything).Return(nil)

	h, err := hub.NewHub(testutil.TestLogger(t), db, su)
	require.NoError(t, err)

	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})

	cfg := &config.Config{
		ServerAddr:        "localhost:0",
		DatabaseDSN:       "unused",
		AccessSigningKey:  []byte("test-access-key"),
		RefreshSigningKey: []byte("test-refresh-key"),
		AuthRateLimit:     100,
		AuthRateBurst:     100,
	}
	app := NewChatHubApp(http.NewServeMux(), testutil.TestLogger(t), h, db, cfg)

	srv := httptest.NewServer(app.mux.Handler)
	t.Cleanup(srv.Close)

	return app, srv
}

func wsEndpoint(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialAs(t *testing.T, app *ChatHubApp, srv *httptest.Server, userId, username string) *websocket.Conn {
	t.Helper()

	token, err := app.verifier.IssueAccess(auth.Identity{UserId: userId, Username: username})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(srv)+"?token="+token, nil)
	require.NoError(t, err, "expected handshake to succeed for %q", username)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeWs_HandshakeRejected(t *testing.T) {
	app, srv := newWsTestServer(t, &database.MockChatHubRepository{})

	t.Run("no token", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsEndpoint(srv), nil)
		assert.Error(t, err, "expected handshake to fail without a token")
		assert.Nil(t, conn, "expected no connection to be established")
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsEndpoint(srv)+"?token=garbage", nil)
		assert.Error(t, err, "expected handshake to fail with a bad token")
		assert.Nil(t, conn)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("fresh token accepted after rejection", func(t *testing.T) {
		conn := dialAs(t, app, srv, "u1", "alice")
		waitForEvent(t, conn, hub.EventNewUser)
	})
}

func TestServeWs_PresenceFlow(t *testing.T) {
	app, srv := newWsTestServer(t, &database.MockChatHubRepository{})

	alice := dialAs(t, app, srv, "u1", "alice")
	env := waitForEvent(t, alice, hub.EventNewUser)

	var users []types.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1, "expected the first connection to see itself")
	assert.Equal(t, "u1", users[0].Id)

	bob := dialAs(t, app, srv, "u2", "bob")
	env = waitForEvent(t, bob, hub.EventNewUser)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2, "expected the second connection to see both users")

	// the first connection hears about the second
	env = waitForEvent(t, alice, hub.EventNewUser)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)

	// an explicit snapshot request goes to the caller only
	require.NoError(t, alice.WriteJSON(map[string]any{"event": hub.EventGetUsers}))
	env = waitForEvent(t, alice, hub.EventUsersList)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)

	// a disconnect broadcasts the shrunken snapshot to the remainder
	bob.Close()
	env = waitForEvent(t, alice, hub.EventNewUser)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1, "expected the snapshot to exclude the departed user")
	assert.Equal(t, "u1", users[0].Id)
}

func TestServeWs_PrivateMessage(t *testing.T) {
	db := &database.MockChatHubRepository{}
	defer db.AssertExpectations(t)
	app, srv := newWsTestServer(t, db)

	createdAt := time.Now().UTC().Round(time.Millisecond)
	db.On("CreateMessage", database.CreateMessageParams{
		SenderId:   "u1",
		ReceiverId: "u2",
		Content:    "hi",
	}).Return(database.Message{
		Id:         1,
		SenderId:   "u1",
		ReceiverId: "u2",
		Content:    "hi",
		CreatedAt:  createdAt,
	}, nil).Once()

	alice := dialAs(t, app, srv, "u1", "alice")
	waitForEvent(t, alice, hub.EventNewUser)
	bob := dialAs(t, app, srv, "u2", "bob")
	waitForEvent(t, bob, hub.EventNewUser)
	waitForEvent(t, alice, hub.EventNewUser)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": hub.EventPrivateMessage,
		"data":  map[string]string{"content": "hi", "to": "u2"},
	}))

	var got types.PrivateMessage

	env := waitForEvent(t, bob, hub.EventNewMessage)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "u1", got.SenderId)
	assert.Equal(t, "u2", got.ReceiverId)
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, 1, got.Id, "expected the delivery to carry the store-assigned id")

	env = waitForEvent(t, alice, hub.EventNewMessage)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "hi", got.Content, "expected a self-echo of the persisted record")
}

func TestServeWs_PublicBroadcast(t *testing.T) {
	app, srv := newWsTestServer(t, &database.MockChatHubRepository{})

	alice := dialAs(t, app, srv, "u1", "alice")
	waitForEvent(t, alice, hub.EventNewUser)
	bob := dialAs(t, app, srv, "u2", "bob")
	waitForEvent(t, bob, hub.EventNewUser)
	waitForEvent(t, alice, hub.EventNewUser)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": hub.EventMessage,
		"data":  map[string]string{"text": "hello everyone"},
	}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := waitForEvent(t, conn, hub.EventResponse)

		var msg hub.PublicMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, "hello everyone", msg.Text)
		assert.Equal(t, "alice", msg.Name)
		assert.NotEmpty(t, msg.SocketId)
	}
}

func TestServeWs_Typing(t *testing.T) {
	app, srv := newWsTestServer(t, &database.MockChatHubRepository{})

	alice := dialAs(t, app, srv, "u1", "alice")
	waitForEvent(t, alice, hub.EventNewUser)
	bob := dialAs(t, app, srv, "u2", "bob")
	waitForEvent(t, bob, hub.EventNewUser)

	require.NoError(t, alice.WriteJSON(map[string]any{"event": hub.EventTyping}))

	env := waitForEvent(t, bob, hub.EventTypingResponse)

	var notice string
	require.NoError(t, json.Unmarshal(env.Data, &notice))
	assert.Equal(t, "alice is typing", notice)
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/devicehub/internal/common/config"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startWSServer(t *testing.T, f *managerFixture) string {
	t.Helper()
	h := NewHandler(context.Background(), f.manager, config.DefaultWebSocketConfig(), logger.NewDiscard())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorillaWS.Conn {
	t.Helper()
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *gorillaWS.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Type: msgType, Payload: raw}))
}

func readFrame(t *testing.T, conn *gorillaWS.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestClient_IdentifyWarningAndDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	id := f.createUser(t, "alice", 3*day)
	url := startWSServer(t, f)

	conn := dial(t, url)
	sendFrame(t, conn, "user", string(id))

	got := readFrame(t, conn)
	assert.Equal(t, "warning", got.Type)
	assert.JSONEq(t, "3", string(got.Payload))

	sendFrame(t, conn, "openApp", "Navigator")
	require.Eventually(t, func() bool {
		app, err := f.repo.FindRunningApp(ctx, id)
		return err == nil && app.Name == "Navigator"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(gorillaWS.CloseMessage,
		gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, "")))

	require.Eventually(t, func() bool {
		user, err := f.repo.FindByID(ctx, id)
		return err == nil && !user.IsLogged && f.registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_InvalidFrameGetsErrorEvent(t *testing.T) {
	f := newSQLiteFixture(t)
	url := startWSServer(t, f)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(gorillaWS.TextMessage, []byte("{not json")))

	got := readFrame(t, conn)
	assert.Equal(t, "error", got.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "INVALID_PAYLOAD", payload.Code)

	sendFrame(t, conn, "openApp", "A")
	got = readFrame(t, conn)
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "INVALID_TRANSITION", payload.Code)
}

func TestClient_SupersededConnectionIsClosed(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	id := f.createUser(t, "alice", 30*day)
	url := startWSServer(t, f)

	first := dial(t, url)
	sendFrame(t, first, "user", string(id))
	require.Eventually(t, func() bool { return f.registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	second := dial(t, url)
	sendFrame(t, second, "user", string(id))

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorillaWS.IsCloseError(err, gorillaWS.CloseNormalClosure))

	user, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, user.IsLogged)
	assert.Equal(t, 1, f.registry.Count())
}

func TestSessionManager_CloseAllWaitsForTeardown(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	id := f.createUser(t, "alice", 30*day)
	url := startWSServer(t, f)

	conn := dial(t, url)
	sendFrame(t, conn, "user", string(id))
	require.Eventually(t, func() bool { return f.registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, f.manager.CloseAll(shutdownCtx))

	user, err := f.repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, user.IsLogged)
	assert.Equal(t, 0, f.registry.Count())
}

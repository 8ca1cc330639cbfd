package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/devicehub/internal/common/config"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

func testConfig() config.Config {
	return config.Config{
		StoreDriver:             config.StoreDriverSQLite,
		SQLitePath:              ":memory:",
		JWTSecret:               "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:          time.Hour,
		SubscriptionInitialDays: 365,
		AdminAuthRequired:       true,
		AdminName:               "root",
		AdminPassword:           "rootpw",
		RequestTimeout:          5 * time.Second,
		SessionStoreTimeout:     5 * time.Second,
		WebSocket:               config.DefaultWebSocketConfig(),
	}
}

func setupApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(), logger.NewDiscard())
	require.NoError(t, err)

	server := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Sessions.CloseAll(ctx)
		server.Close()
		app.Close()
	})
	return app, server
}

func postJSON(t *testing.T, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func registerAndLogin(t *testing.T, baseURL, name, password string) (guid, token string) {
	t.Helper()
	body := `{"name":"` + name + `","password":"` + password + `"}`

	resp := postJSON(t, baseURL+"/register", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, baseURL+"/login", body, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Name  string `json:"name"`
		GUID  string `json:"guid"`
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.Equal(t, name, login.Name)
	require.NotEmpty(t, login.Token)
	return login.GUID, login.Token
}

func dialDevice(t *testing.T, serverURL, guid string) *gorillaWS.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "user", "payload": guid}))
	return conn
}

func TestEndToEnd_FreshAccountSession(t *testing.T) {
	app, server := setupApp(t)

	guid, _ := registerAndLogin(t, server.URL, "alice", "pw123")
	conn := dialDevice(t, server.URL, guid)

	require.Eventually(t, func() bool {
		_, ok := app.Registry.Lookup(guid)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	user, err := app.Store.FindByID(context.Background(), domain.ID(guid))
	require.NoError(t, err)
	assert.True(t, user.IsLogged)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "fresh account must receive neither expired nor warning")

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		user, err := app.Store.FindByID(context.Background(), domain.ID(guid))
		return err == nil && !user.IsLogged
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := app.Registry.Lookup(guid)
	assert.False(t, ok)
}

func TestEndToEnd_AdminBlockRebootsDevice(t *testing.T) {
	app, server := setupApp(t)

	guid, userToken := registerAndLogin(t, server.URL, "bob", "pw123")
	conn := dialDevice(t, server.URL, guid)
	require.Eventually(t, func() bool {
		_, ok := app.Registry.Lookup(guid)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, server.URL+"/user/"+guid+"/block", `{"isBlocked":true}`, userToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminResp := postJSON(t, server.URL+"/login", `{"name":"root","password":"rootpw"}`, "")
	require.Equal(t, http.StatusOK, adminResp.StatusCode)
	var admin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(adminResp.Body).Decode(&admin))

	resp = postJSON(t, server.URL+"/user/"+guid+"/block", `{"isBlocked":true}`, admin.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "reboot", event.Type)

	user, err := app.Store.FindByID(context.Background(), domain.ID(guid))
	require.NoError(t, err)
	assert.True(t, user.IsBlocked)
}

func TestEndToEnd_UppercaseGUIDStillReceivesReboot(t *testing.T) {
	app, server := setupApp(t)

	guid, _ := registerAndLogin(t, server.URL, "carol", "pw123")
	conn := dialDevice(t, server.URL, strings.ToUpper(guid))
	require.Eventually(t, func() bool {
		_, ok := app.Registry.Lookup(guid)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	adminResp := postJSON(t, server.URL+"/login", `{"name":"root","password":"rootpw"}`, "")
	require.Equal(t, http.StatusOK, adminResp.StatusCode)
	var admin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(adminResp.Body).Decode(&admin))

	resp := postJSON(t, server.URL+"/user/"+guid+"/block", `{"isBlocked":true}`, admin.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "reboot", event.Type)
}

func TestEndToEnd_ExpiredDeviceCannotTripBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.CircuitBreakerThreshold = 3
	cfg.CircuitBreakerTimeout = 5 * time.Second
	cfg.CircuitBreakerReset = time.Minute

	app, err := NewApp(context.Background(), cfg, logger.NewDiscard())
	require.NoError(t, err)
	server := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Sessions.CloseAll(ctx)
		server.Close()
		app.Close()
	})

	conn := dialDevice(t, server.URL, uuid.NewString())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "expired", event.Type)

	for i := 0; i < 20; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "openApp", "payload": "A"}))
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, "error", event.Type)
	}

	registerAndLogin(t, server.URL, "dave", "pw123")
}

func TestEndToEnd_HealthAndMetrics(t *testing.T) {
	_, server := setupApp(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestNewApp_CreatesAdminAccount(t *testing.T) {
	app, _ := setupApp(t)

	users, err := app.Commands.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Name)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.False(t, users[0].IsLogged)
}

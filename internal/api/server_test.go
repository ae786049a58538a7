package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campusattend/console/internal/client"
	"github.com/campusattend/console/internal/config"
	"github.com/campusattend/console/internal/console"
	"github.com/campusattend/console/internal/notifier"
	"github.com/campusattend/console/internal/session"
	"github.com/campusattend/console/internal/types"
	"github.com/campusattend/console/internal/webui"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	mu      sync.Mutex
	replies map[string]string
	status  map[string]int
	logouts int
}

func newBackend() *backend {
	return &backend{
		replies: map[string]string{
			"GET /api/devices":       `{"ok":true,"devices":[{"id":"d1","name":"Camera 1","status":"online"}]}`,
			"GET /api/devices/stats": `{"ok":true,"stats":{"total":1,"online":1,"offline":0}}`,
			"GET /api/alerts":        `{"ok":true,"alerts":[]}`,
			"GET /api/users":         `{"ok":true,"users":[]}`,
			"GET /api/policies":      `{"ok":true,"policies":[]}`,
			"GET /api/ssa/modules":   `{"ok":true,"modules":[]}`,
		},
		status: map[string]int{},
	}
}

func (b *backend) fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[route] = body
	b.status[route] = status
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	b.mu.Lock()
	if route == "POST /api/auth/logout" {
		b.logouts++
	}
	body, ok := b.replies[route]
	status := b.status[route]
	b.mu.Unlock()

	if !ok {
		body = `{"ok":true}`
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

type fixture struct {
	app     *console.App
	backend *backend
	server  *Server
	url     string
	http    *http.Client
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	b := newBackend()
	api := httptest.NewServer(b)
	t.Cleanup(api.Close)

	cfg := &config.Config{}
	cfg.Backend.BaseURL = api.URL
	config.ApplyDefaults(cfg)

	c, err := client.New(client.Config{BaseURL: api.URL, Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	app, err := console.New(console.Options{Config: cfg, Client: c}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	sess := session.New(session.Operator{Email: "ops@campus.edu", Role: role}, types.RoleSystemAdmin, "/login", c, zerolog.Nop())
	srv := NewServer(app, sess, zerolog.Nop(), "0")
	srv.SetVersion("1.2.3", "abc123", "today")
	srv.SetLogBuffer(webui.NewLogBuffer(10))

	web := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		web.Close()
		srv.Shutdown(context.Background())
	})

	return &fixture{
		app:     app,
		backend: b,
		server:  srv,
		url:     web.URL,
		http: &http.Client{
			Timeout: 2 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.url+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func decodeResult(t *testing.T, body string) result {
	t.Helper()
	var res result
	require.NoError(t, json.Unmarshal([]byte(body), &res), body)
	return res
}

func TestPageRendersRegions(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)
	require.NoError(t, f.app.RefreshDevices(context.Background()))

	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Camera 1")
	assert.Contains(t, body, "ops@campus.edu")
	assert.Contains(t, body, "System Administrator")
	assert.Contains(t, body, "1.2.3")
}

func TestWrongRoleIsDenied(t *testing.T) {
	f := newFixture(t, types.RoleLecturer)

	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "Access denied. Insufficient permissions.")
	assert.Contains(t, body, `href="/login"`)

	resp, body = f.do(t, http.MethodPost, "/actions/devices/refresh", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, decodeResult(t, body).OK)

	resp, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestActionStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(b *backend)
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "refresh",
			path:   "/actions/devices/refresh",
			status: http.StatusOK,
		},
		{
			name:   "ping unknown device",
			setup:  func(b *backend) { b.fail("PUT /api/devices/x", 404, `{"ok":false,"error":"not_found"}`) },
			path:   "/actions/devices/x/ping",
			status: http.StatusBadGateway,
			code:   "server_error",
		},
		{
			name:   "invalid user",
			path:   "/actions/users",
			body:   `{"firstName":"Ada","lastName":"Lovelace","email":"nope","role":"lecturer"}`,
			status: http.StatusUnprocessableEntity,
			code:   "validation",
		},
		{
			name:   "duplicate user",
			setup:  func(b *backend) { b.fail("POST /api/users", 409, `{"ok":false,"error":"user_exists"}`) },
			path:   "/actions/users",
			body:   `{"firstName":"Ada","lastName":"Lovelace","email":"ada@campus.edu","role":"lecturer"}`,
			status: http.StatusConflict,
			code:   client.CodeUserExists,
		},
		{
			name:   "malformed policy",
			path:   "/actions/policies/4",
			body:   `{"moduleId":`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "delete policy",
			path:   "/actions/policies/4/delete",
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, types.RoleSystemAdmin)
			if tt.setup != nil {
				tt.setup(f.backend)
			}
			resp, body := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			res := decodeResult(t, body)
			assert.Equal(t, tt.status == http.StatusOK, res.OK)
			assert.Equal(t, tt.code, res.Error)
		})
	}
}

func TestValidationResponseCarriesMessage(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)
	_, body := f.do(t, http.MethodPost, "/actions/users", `{"firstName":"","lastName":"","email":"","role":""}`)
	res := decodeResult(t, body)
	assert.Equal(t, "First name, last name, and email are required", res.Message)
	assert.NotEmpty(t, res.Fields)
}

func TestRegionEndpoint(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)
	require.NoError(t, f.app.RefreshDevices(context.Background()))

	resp, body := f.do(t, http.MethodGet, "/regions/devices", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Camera 1")
	assert.NotContains(t, body, "<html")

	resp, _ = f.do(t, http.MethodGet, "/regions/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserFilterEndpoint(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)
	f.backend.fail("GET /api/users", http.StatusOK, `{"ok":true,"users":[
		{"id":1,"name":"Ada Admin","email":"ada@campus.edu","role":"system-admin"},
		{"id":2,"name":"Lee Lecturer","email":"lee@campus.edu","role":"lecturer"}]}`)
	require.NoError(t, f.app.UsersView.Load(context.Background()))

	resp, body := f.do(t, http.MethodGet, "/actions/users/filter?q=lee&role=lecturer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Lee Lecturer")
	assert.NotContains(t, body, "Ada Admin")

	// Other browsers keep the unfiltered table.
	_, shared := f.do(t, http.MethodGet, "/regions/users", "")
	assert.Contains(t, shared, "Ada Admin")
	assert.Contains(t, shared, "Lee Lecturer")

	_, page := f.do(t, http.MethodGet, "/?q=ada", "")
	assert.Contains(t, page, "Ada Admin")
	assert.NotContains(t, page, "Lee Lecturer")
	assert.Contains(t, page, `value="ada" data-filter="q"`)
}

func TestStatusReportsViews(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)
	require.NoError(t, f.app.RefreshDevices(context.Background()))

	resp, body := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Views       map[string]string `json:"views"`
		Devices     int               `json:"devices"`
		Version     string            `json:"version"`
		PollRunning bool              `json:"poll_running"`
		Fetching    []string          `json:"fetching"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.False(t, status.PollRunning)
	assert.NotNil(t, status.Fetching)
	assert.Empty(t, status.Fetching)
	assert.Equal(t, "rendered", status.Views["devices"])
	assert.Equal(t, "idle", status.Views["users"])
	assert.Equal(t, 1, status.Devices)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)

	resp, _ := f.do(t, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.backend.logouts)

	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Please sign in to continue.")
}

func TestWebSocketPushesRendersAndNotifications(t *testing.T) {
	f := newFixture(t, types.RoleSystemAdmin)

	wsURL := "ws" + strings.TrimPrefix(f.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// Every region is sent on connect.
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		msg := read()
		assert.Equal(t, MsgRender, msg.Type)
		seen[msg.Region] = true
	}
	assert.Len(t, seen, 3)

	require.NoError(t, f.app.RefreshDevices(context.Background()))

	var render, state bool
	for !(render && state) {
		msg := read()
		switch msg.Type {
		case MsgRender:
			if msg.Region == "devices" && strings.Contains(msg.HTML, "Camera 1") {
				render = true
			}
		case MsgState:
			if msg.View == "devices" && msg.State == "rendered" {
				assert.Equal(t, "loading", msg.From)
				assert.Empty(t, msg.Error)
				state = true
			}
		}
	}

	f.app.Notes.Notify("devices", notifier.LevelSuccess, "Device pinged successfully")
	for {
		msg := read()
		if msg.Type == MsgNotify {
			require.NotNil(t, msg.Notification)
			assert.Equal(t, "Device pinged successfully", msg.Notification.Message)
			break
		}
	}
}

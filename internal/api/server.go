// Package api serves the console to browsers: the page, its regions, the
// action endpoints and a websocket that pushes re-rendered regions and
// notifications.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/campusattend/console/internal/client"
	"github.com/campusattend/console/internal/console"
	"github.com/campusattend/console/internal/metrics"
	"github.com/campusattend/console/internal/notifier"
	"github.com/campusattend/console/internal/session"
	"github.com/campusattend/console/internal/store"
	"github.com/campusattend/console/internal/types"
	"github.com/campusattend/console/internal/validate"
	"github.com/campusattend/console/internal/view"
	"github.com/campusattend/console/internal/webui"
	"github.com/rs/zerolog"
)

const maxFormBytes = 64 << 10

// Server provides the web console and its HTTP endpoints
type Server struct {
	app       *console.App
	session   *session.Session
	hub       *Hub
	logger    zerolog.Logger
	port      string
	logBuffer *webui.LogBuffer
	metrics   *metrics.Metrics
	startTime time.Time

	version   string
	commit    string
	buildDate string
	versionMu sync.RWMutex

	unsubscribe []func()
	httpServer  *http.Server
}

// NewServer creates a server for app and starts pushing its events to
// connected browsers.
func NewServer(app *console.App, sess *session.Session, logger zerolog.Logger, port string) *Server {
	s := &Server{
		app:       app,
		session:   sess,
		hub:       NewHub(logger),
		logger:    logger.With().Str("component", "api").Logger(),
		port:      port,
		startTime: time.Now(),
	}
	go s.hub.Run()

	for _, r := range app.Regions() {
		s.unsubscribe = append(s.unsubscribe, r.Subscribe(func(u view.RegionUpdate) {
			s.hub.Broadcast(renderMessage(u.Region, u.HTML, u.Seq))
		}))
	}
	s.unsubscribe = append(s.unsubscribe,
		app.Notes.Subscribe(func(e notifier.Event) {
			n := e.Notification
			s.hub.Broadcast(Message{Type: string(e.Kind), Notification: &n})
		}),
		app.SubscribeStates(func(c view.StateChange) {
			s.hub.Broadcast(Message{Type: MsgState, View: c.View, From: c.From, State: c.To, Error: c.Err})
		}),
	)
	return s
}

// SetLogBuffer sets the log buffer served by /api/logs
func (s *Server) SetLogBuffer(lb *webui.LogBuffer) {
	s.logBuffer = lb
}

// SetMetrics exposes m on /metrics
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetVersion sets the version information
func (s *Server) SetVersion(version, commit, buildDate string) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.version = version
	s.commit = commit
	s.buildDate = buildDate
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogsAPI)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Console
	mux.HandleFunc("GET /{$}", s.page(s.handleWebUI))
	mux.HandleFunc("GET /regions/{view}", s.page(s.handleRegion))
	mux.HandleFunc("GET /alerts", s.action(s.handleAlerts))
	mux.HandleFunc("GET /ws", s.action(s.handleWebSocket))

	// Actions
	mux.HandleFunc("POST /actions/devices/refresh", s.action(s.handleRefreshDevices))
	mux.HandleFunc("POST /actions/devices/{id}/ping", s.action(s.handlePingDevice))
	mux.HandleFunc("POST /actions/users", s.action(s.handleSaveUser))
	mux.HandleFunc("POST /actions/users/{id}", s.action(s.handleSaveUser))
	mux.HandleFunc("POST /actions/users/{id}/delete", s.action(s.handleDeleteUser))
	mux.HandleFunc("GET /actions/users/filter", s.action(s.handleUserFilter))
	mux.HandleFunc("POST /actions/policies", s.action(s.handleSavePolicy))
	mux.HandleFunc("POST /actions/policies/{id}", s.action(s.handleSavePolicy))
	mux.HandleFunc("POST /actions/policies/{id}/delete", s.action(s.handleDeletePolicy))

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().
		Str("address", s.httpServer.Addr).
		Msg("Starting console web server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, disconnects browsers and detaches
// from the console.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// page guards browser pages: signed-out or under-privileged operators get
// the access denied page.
func (s *Server) page(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Authorize(); err != nil {
			s.writeDenied(w, err)
			return
		}
		next(w, r)
	}
}

// action guards JSON endpoints.
func (s *Server) action(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.Authorize(); err != nil {
			status := http.StatusForbidden
			if errors.Is(err, session.ErrUnauthenticated) {
				status = http.StatusUnauthorized
			}
			writeJSON(w, status, result{Message: deniedMessage(err)})
			return
		}
		next(w, r)
	}
}

func deniedMessage(err error) string {
	if errors.Is(err, session.ErrForbidden) {
		return "Access denied. Insufficient permissions."
	}
	return "Please sign in to continue."
}

func (s *Server) writeDenied(w http.ResponseWriter, err error) {
	status := http.StatusForbidden
	if errors.Is(err, session.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	markup, rerr := webui.Execute("denied", webui.DeniedData{
		Message:  deniedMessage(err),
		LoginURL: s.session.LoginURL(),
	})
	if rerr != nil {
		s.logger.Error().Err(rerr).Msg("Failed to render access denied page")
		http.Error(w, deniedMessage(err), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(markup))
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns current state summary
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	alerts, _ := s.app.Board.Alerts()

	s.versionMu.RLock()
	version := s.version
	commit := s.commit
	buildDate := s.buildDate
	s.versionMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"views":         s.app.States(),
		"active_alerts": len(alerts),
		"devices":       len(s.app.Devices.All()),
		"polling":       s.app.Poller.Running(),
		"poll_interval": s.app.Poller.Interval().String(),
		"poll_running":  s.app.Poller.InFlight(),
		"fetching":      s.app.Fetching(),
		"browsers":      s.hub.Clients(),
		"notifications": len(s.app.Notes.Active()),
		"time":          time.Now().UTC().Format(time.RFC3339),
		"uptime":        time.Since(s.startTime).String(),
		"version":       version,
		"commit":        commit,
		"build_date":    buildDate,
	})
}

// handleAlerts returns the current alert list
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, _ := s.app.Board.Alerts()
	if alerts == nil {
		alerts = []types.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleLogsAPI returns recent log entries as JSON
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	var entries []webui.LogEntry
	if s.logBuffer != nil {
		entries = s.logBuffer.GetRecentEntries(200)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleLogout ends the operator session and returns to the login page
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	http.Redirect(w, r, s.session.LoginURL(), http.StatusSeeOther)
}

// handleWebUI renders the full console page
func (s *Server) handleWebUI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.app.Page(q.Get("q"), q.Get("role"))

	if op, ok := s.session.Operator(); ok {
		data.Operator = op.Email
		data.OperatorRole = types.RoleLabel(op.Role)
	}
	s.versionMu.RLock()
	data.Version = s.version
	data.Commit = s.commit
	s.versionMu.RUnlock()
	if s.logBuffer != nil {
		data.Logs = s.logBuffer.GetRecentEntries(100)
	}

	markup, err := webui.Execute("page", data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(markup))
}

// handleRegion returns the current fragment of one region
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	region, ok := s.app.Region(r.PathValue("view"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(region.HTML()))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// A reconnecting browser may have missed renders; resend every region.
	var initial []Message
	for _, region := range s.app.Regions() {
		initial = append(initial, renderMessage(region.Name(), region.HTML(), region.Seq()))
	}
	s.hub.Serve(w, r, initial)
}

func renderMessage(region string, markup template.HTML, seq uint64) Message {
	return Message{Type: MsgRender, Region: region, HTML: string(markup), Seq: seq}
}

func (s *Server) handleRefreshDevices(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.app.RefreshDevices(r.Context()))
}

func (s *Server) handlePingDevice(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.app.PingDevice(r.Context(), r.PathValue("id")))
}

func (s *Server) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	var in types.UserInput
	if !s.decode(w, r, &in) {
		return
	}
	// The password is chosen by the console, never by the form.
	in.Password = ""
	s.respond(w, s.app.SaveUser(r.Context(), r.PathValue("id"), in))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.app.DeleteUser(r.Context(), r.PathValue("id")))
}

// handleUserFilter returns the staff table narrowed for the requesting
// browser only.
func (s *Server) handleUserFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	markup, err := s.app.FilterUsers(q.Get("q"), q.Get("role"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render filtered users")
		http.Error(w, "Failed to render users", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(markup))
}

func (s *Server) handleSavePolicy(w http.ResponseWriter, r *http.Request) {
	var in types.PolicyInput
	if !s.decode(w, r, &in) {
		return
	}
	s.respond(w, s.app.SavePolicy(r.Context(), r.PathValue("id"), in))
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.app.DeletePolicy(r.Context(), r.PathValue("id")))
}

// result is the body of every action response.
type result struct {
	OK      bool                  `json:"ok"`
	Error   string                `json:"error,omitempty"`
	Message string                `json:"message,omitempty"`
	Fields  []validate.FieldError `json:"fields,omitempty"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(out); err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Malformed action body")
		writeJSON(w, http.StatusBadRequest, result{Error: "bad_request", Message: "Malformed request body"})
		return false
	}
	return true
}

// respond maps an action outcome to a status code. The operator-facing
// message has already been shown as a notification.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result{OK: true})
		return
	}

	var verr *validate.Error
	var cerr *client.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, result{Error: "validation", Message: verr.Message, Fields: verr.Fields})
	case errors.Is(err, view.ErrActionPending):
		writeJSON(w, http.StatusConflict, result{Error: "pending", Message: err.Error()})
	case client.IsConflict(err):
		writeJSON(w, http.StatusConflict, result{Error: client.CodeUserExists, Message: "User Already Exists"})
	case errors.Is(err, store.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, result{Error: "closed", Message: "Console is shutting down"})
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadGateway, result{Error: cerr.Kind.String(), Message: cerr.Reason()})
	default:
		s.logger.Error().Err(err).Msg("Action failed")
		writeJSON(w, http.StatusInternalServerError, result{Error: "internal", Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

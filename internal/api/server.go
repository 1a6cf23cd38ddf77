// Package api serves the simulated BLE controller's REST surface: canned
// scan/connect responses, the saved device and command lists, and the demo
// web UI from a static directory.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bledemo/internal/ble"
	"bledemo/internal/logging"
	"bledemo/internal/middleware"
	"bledemo/internal/store"
)

// Deps holds everything the router needs. Devices, Commands and Logger are
// required.
type Deps struct {
	Logger    logging.Logger
	Devices   *store.List[ble.SavedDevice]
	Commands  *store.List[ble.SavedCommand]
	StaticDir string
	WiFi      ble.WiFiStatus

	// MetricsPath mounts MetricsHandler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler

	// Middleware runs inside the router after CORS, so anything it rejects
	// still carries CORS headers and preflights never reach it.
	Middleware []middleware.Middleware

	MaxBodyBytes int64
	Now          func() time.Time
}

type Server struct {
	logger       logging.Logger
	devices      *store.List[ble.SavedDevice]
	commands     *store.List[ble.SavedCommand]
	static       http.Handler
	wifi         ble.WiFiStatus
	metricsPath  string
	metrics      http.Handler
	extra        []middleware.Middleware
	maxBodyBytes int64
	now          func() time.Time
}

func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Devices == nil || deps.Commands == nil {
		return nil, errors.New("device and command stores are required")
	}

	s := &Server{
		logger:       deps.Logger,
		devices:      deps.Devices,
		commands:     deps.Commands,
		wifi:         deps.WiFi,
		metricsPath:  deps.MetricsPath,
		metrics:      deps.MetricsHandler,
		extra:        deps.Middleware,
		maxBodyBytes: deps.MaxBodyBytes,
		now:          deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 1 << 20
	}
	if deps.StaticDir != "" {
		s.static = http.FileServer(http.Dir(deps.StaticDir))
	}

	return s, nil
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// routes is the complete (method, path) dispatch table. Anything not listed
// falls through to handleFallback.
func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/api/scan", s.handleScan},
		{http.MethodGet, "/api/stop-scan", s.handleStopScan},
		{http.MethodGet, "/api/disconnect", s.handleDisconnect},
		{http.MethodGet, "/api/get-services", s.handleGetServices},
		{http.MethodGet, "/api/devices", s.handleListDevices},
		{http.MethodGet, "/api/commands", s.handleListCommands},
		{http.MethodGet, "/api/wifi/status", s.handleWiFiStatus},
		{http.MethodGet, "/ws", s.handleWebSocket},

		{http.MethodPost, "/api/connect", s.handleConnect},
		{http.MethodPost, "/api/send-command", s.handleSendCommand},
		{http.MethodPost, "/api/devices", s.handleSaveDevice},
		{http.MethodPost, "/api/commands", s.handleSaveCommand},

		{http.MethodDelete, "/api/commands", s.handleDeleteCommand},
	}
}

// Handler builds the router with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(s.logger))
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.BodyLimit(s.maxBodyBytes))
	if len(s.extra) > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return middleware.Chain(next, s.extra...)
		})
	}

	for _, rt := range s.routes() {
		r.Method(rt.method, rt.pattern, rt.handler)
	}

	if s.metricsPath != "" && s.metrics != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metrics)
	}

	r.NotFound(s.handleFallback)
	r.MethodNotAllowed(s.handleFallback)

	return r
}

// handleFallback serves static files for GET and HEAD and answers every
// other unmatched request with a JSON 404.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && s.static != nil {
		s.static.ServeHTTP(w, r)
		return
	}
	writeError(w, http.StatusNotFound, "Not found")
}

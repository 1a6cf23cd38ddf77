package api

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"bledemo/internal/ble"
	"bledemo/internal/metrics"
	"bledemo/internal/middleware"
)

const wsUnsupportedMessage = "WebSocket not supported in demo mode"

func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, "scanning")
}

func (s *Server) handleStopScan(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, "stopped")
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, "disconnected")
}

// handleConnect accepts the target address but there is no radio to dial.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}
	s.logger.Debug("connect requested",
		"address", form.Get("address"),
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	writeStatus(w, "connecting")
}

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}
	s.logger.Debug("command send requested",
		"serviceUUID", form.Get("serviceUUID"),
		"characteristicUUID", form.Get("characteristicUUID"),
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	writeStatus(w, "command_sent")
}

func (s *Server) handleGetServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ble.DemoServices())
}

func (s *Server) handleWiFiStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.wifi)
}

// handleWebSocket refuses every client, upgrade or not, with a plain-text 404.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.logger.Info("websocket upgrade refused",
			"remote", r.RemoteAddr,
			"request_id", middleware.RequestIDFrom(r.Context()),
		)
	}
	metrics.IncWebSocketRejected()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	//nolint:errcheck // Best-effort write to response
	io.WriteString(w, wsUnsupportedMessage)
}

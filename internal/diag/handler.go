// Package diag serves the observer-facing HTTP surface: health, one-shot
// diagnostics, and a websocket telemetry stream.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	server "shared-jello/server"
	"shared-jello/server/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	streamInterval = time.Second
)

// StateSource provides the point-in-time server state the endpoints serve.
type StateSource interface {
	DiagnosticsSnapshot() server.Diagnostics
}

// Handler routes the diagnostics endpoints.
type Handler struct {
	mux      *http.ServeMux
	source   StateSource
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewHandler builds the diagnostics route set for the given source.
func NewHandler(source StateSource, logger telemetry.Logger) *Handler {
	h := &Handler{
		mux:    http.NewServeMux(),
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		interval: streamInterval,
	}
	h.mux.HandleFunc("/healthz", h.handleHealth)
	h.mux.HandleFunc("/diagnostics", h.handleDiagnostics)
	h.mux.HandleFunc("/telemetry", h.handleTelemetry)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *Handler) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	payload := struct {
		Status     string             `json:"status"`
		ServerTime int64              `json:"serverTime"`
		State      server.Diagnostics `json:"state"`
	}{
		Status:     "ok",
		ServerTime: time.Now().UnixMilli(),
		State:      h.source.DiagnosticsSnapshot(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleTelemetry streams periodic diagnostics snapshots to an observer
// until the observer goes away.
func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("telemetry upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain control frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if !h.writeSnapshot(conn) {
		return
	}
	for range ticker.C {
		if !h.writeSnapshot(conn) {
			return
		}
	}
}

func (h *Handler) writeSnapshot(conn *websocket.Conn) bool {
	data, err := json.Marshal(h.source.DiagnosticsSnapshot())
	if err != nil {
		h.logger.Printf("failed to marshal telemetry snapshot: %v", err)
		return false
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

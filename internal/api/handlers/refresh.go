package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/refresh"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	// WebSocket keepalive timing. Pings go out on pingInterval; a peer
	// that misses pongWait is dropped.
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RefreshHandler serves the on-demand refresh endpoints.
type RefreshHandler struct {
	supervisor *refresh.Supervisor
	logger     *logger.Logger
}

// NewRefreshHandler creates a refresh handler.
func NewRefreshHandler(supervisor *refresh.Supervisor, log *logger.Logger) *RefreshHandler {
	return &RefreshHandler{
		supervisor: supervisor,
		logger:     log,
	}
}

// Trigger starts a refresh run in the background.
// POST /api/refresh
func (h *RefreshHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.Trigger(); err != nil {
		if errors.Is(err, refresh.ErrRefreshRunning) {
			respondError(w, http.StatusConflict, "Refresh already running")
			return
		}
		h.logger.WithError(err).Error("Failed to trigger refresh")
		respondError(w, http.StatusInternalServerError, "Failed to trigger refresh")
		return
	}

	respondJSON(w, http.StatusAccepted, h.supervisor.Status())
}

// GetStatus returns the current refresh status.
// GET /api/refresh/status
func (h *RefreshHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.supervisor.Status())
}

// StreamStatus upgrades to a WebSocket and streams refresh status
// updates. The current status is sent first so new subscribers render
// immediately instead of waiting for the next change.
// GET /api/refresh/ws
func (h *RefreshHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := h.supervisor.Subscribe()
	defer h.supervisor.Unsubscribe(updates)

	if err := h.writeStatus(conn, h.supervisor.Status()); err != nil {
		return
	}

	// Reader goroutine consumes control frames and detects the peer
	// going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := h.writeStatus(conn, status); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *RefreshHandler) writeStatus(conn *websocket.Conn, status contracts.RefreshStatus) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(status)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"timekeep/internal/auth"
	"timekeep/internal/hub"
	"timekeep/internal/model"
	"timekeep/internal/timer"
)

// WebSocketHandler runs the sync protocol: one goroutine per connection,
// messages processed one at a time in arrival order. A failure handling one
// message never closes the connection; only transport close does.
type WebSocketHandler struct {
	Hub    *hub.Hub
	Tokens *auth.TokenRegistry
	Timers *timer.Engine
	Clock  clockwork.Clock
}

type clientMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

type activeTimersEvent struct {
	Type         string            `json:"type"`
	ActiveTimers []model.TimerView `json:"activeTimers"`
}

type oldTimersEvent struct {
	Type      string            `json:"type"`
	OldTimers []model.TimerView `json:"oldTimers"`
}

type addTimerEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Description string `json:"description"`
}

type stopTimerEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

// Serve validates the connection token, upgrades the transport, and runs the
// message loop until the peer goes away. The token is consumed before the
// upgrade: an unknown or spent token never gets a persistent connection.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid connection token"})
		return
	}
	user, ok := h.Tokens.Consume(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid connection token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := hub.NewConnection(user.ID, &wsWriter{conn: ws})
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("dropping malformed frame")
			continue
		}

		h.dispatch(c, conn, user.ID, msg)
	}
}

// dispatch handles a single client message. Unknown types are ignored so
// newer clients keep working against this server.
func (h *WebSocketHandler) dispatch(c *gin.Context, conn *hub.Connection, userID string, msg clientMessage) {
	ctx := c.Request.Context()

	switch msg.Type {
	case "all_timers":
		active, old, err := h.splitTimers(c, userID)
		if err != nil {
			h.sendError(conn, "could not load timers")
			return
		}
		h.send(conn, activeTimersEvent{Type: "active_timers", ActiveTimers: active})
		h.send(conn, oldTimersEvent{Type: "old_timers", OldTimers: old})

	case "active_timers":
		active, _, err := h.splitTimers(c, userID)
		if err != nil {
			h.sendError(conn, "could not load timers")
			return
		}
		h.send(conn, activeTimersEvent{Type: "active_timers", ActiveTimers: active})

	case "add_timer":
		created, err := h.Timers.Start(ctx, userID, msg.Description)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("add_timer failed")
			h.sendError(conn, "could not create timer")
			return
		}
		h.broadcast(userID, addTimerEvent{Type: "add_timer", ID: created.ID, Description: created.Description})

	case "stop_timer":
		stopped, err := h.Timers.Stop(ctx, userID, msg.ID)
		switch {
		case errors.Is(err, timer.ErrNotFound):
			h.sendError(conn, "timer not found")
			return
		case errors.Is(err, timer.ErrAlreadyStopped):
			h.sendError(conn, "timer already stopped")
			return
		case err != nil:
			log.Error().Err(err).Str("user_id", userID).Str("timer_id", msg.ID).Msg("stop_timer failed")
			h.sendError(conn, "could not stop timer")
			return
		}
		h.broadcast(userID, stopTimerEvent{Type: "stop_timer", ID: stopped.ID})

	default:
		// Unknown message types are a no-op for forward compatibility.
	}
}

func (h *WebSocketHandler) splitTimers(c *gin.Context, userID string) (active, old []model.TimerView, err error) {
	timers, err := h.Timers.List(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("listing timers failed")
		return nil, nil, err
	}

	now := h.Clock.Now()
	active = make([]model.TimerView, 0, len(timers))
	old = make([]model.TimerView, 0, len(timers))
	for _, t := range timers {
		view := timer.Project(t, now)
		if t.Active {
			active = append(active, view)
		} else {
			old = append(old, view)
		}
	}
	return active, old, nil
}

// send answers only the requesting connection.
func (h *WebSocketHandler) send(conn *hub.Connection, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal event")
		return
	}
	if err := conn.Writer.Write(data); err != nil {
		log.Debug().Err(err).Str("conn_id", conn.ID).Msg("write failed")
	}
}

// broadcast pushes a confirmation to every connection of the user, so other
// open tabs see the change without waiting for their next poll.
func (h *WebSocketHandler) broadcast(userID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal event")
		return
	}
	h.Hub.Broadcast(userID, data)
}

func (h *WebSocketHandler) sendError(conn *hub.Connection, message string) {
	h.send(conn, errorEvent{Type: "error", Error: message})
}

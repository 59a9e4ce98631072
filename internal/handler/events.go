package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"nexttale/shared/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type streamKind string

const (
	kindSnapshot streamKind = "snapshot"
	kindSession  streamKind = "session"
	kindChange   streamKind = "change"
)

// streamMessage is one frame of the events WebSocket.
type streamMessage struct {
	Kind     streamKind           `json:"kind"`
	Snapshot *models.SessionState `json:"snapshot,omitempty"`
	Session  *models.SessionEvent `json:"session,omitempty"`
	Change   *models.ChangeEvent  `json:"change,omitempty"`
}

type wsConfig struct {
	upgrader websocket.Upgrader
}

func newWSConfig(allowedOrigins []string) wsConfig {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return wsConfig{upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			if _, ok := allowed[strings.ToLower(origin)]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}}
}

// streamEvents upgrades to a WebSocket that carries the session snapshot, then
// session events and store changes for the story.
func (h *SessionHandler) streamEvents(c echo.Context) error {
	storyID, err := storyIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID format"})
	}
	sess, err := h.sessions.Open(c.Request().Context(), storyID)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	conn, err := h.ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return nil
	}
	log := h.logger.With(zap.Stringer("userID", sess.UserID()), zap.Stringer("storyID", storyID))
	log.Info("Event stream connected")

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	var changes <-chan models.ChangeEvent
	if h.feed != nil {
		ch, unsubscribeFeed := h.feed.Subscribe(models.ForStory(storyID))
		defer unsubscribeFeed()
		changes = ch
	}

	closed := make(chan struct{})
	go readPump(conn, closed, log)
	writePump(conn, sess.Snapshot(), events, changes, closed, log)
	log.Info("Event stream disconnected")
	return nil
}

// readPump consumes control frames until the client goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}, log *zap.Logger) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		log.Debug("Ignoring client message")
	}
}

func writePump(
	conn *websocket.Conn,
	snapshot models.SessionState,
	events <-chan models.SessionEvent,
	changes <-chan models.ChangeEvent,
	closed <-chan struct{},
	log *zap.Logger,
) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	if err := writeFrame(conn, streamMessage{Kind: kindSnapshot, Snapshot: &snapshot}); err != nil {
		log.Warn("Failed to send snapshot", zap.Error(err))
		return
	}

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				// The session was closed or evicted.
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := writeFrame(conn, streamMessage{Kind: kindSession, Session: &ev}); err != nil {
				log.Warn("Failed to send session event", zap.Error(err))
				return
			}
		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err := writeFrame(conn, streamMessage{Kind: kindChange, Change: &change}); err != nil {
				log.Warn("Failed to send change event", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

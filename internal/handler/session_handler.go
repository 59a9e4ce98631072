package handler

import (
	"context"
	"net/http"

	"nexttale/internal/service"
	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionStore is the part of *service.SessionManager the handlers use.
type SessionStore interface {
	Open(ctx context.Context, storyID uuid.UUID) (*service.ReaderSession, error)
	Get(userID, storyID uuid.UUID) (*service.ReaderSession, error)
	Close(userID, storyID uuid.UUID) bool
}

var _ SessionStore = (*service.SessionManager)(nil)

// SessionHandler serves the reader session API.
type SessionHandler struct {
	sessions SessionStore
	feed     interfaces.ChangeFeed
	logger   *zap.Logger
	ws       wsConfig
}

// NewSessionHandler creates the handler. feed may be nil, in which case the
// event stream only carries session events.
func NewSessionHandler(sessions SessionStore, feed interfaces.ChangeFeed, allowedOrigins []string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		feed:     feed,
		logger:   logger.Named("SessionHandler"),
		ws:       newWSConfig(allowedOrigins),
	}
}

// RegisterRoutes mounts the session routes. wsAuth may accept the token as a
// query parameter for WebSocket clients.
func (h *SessionHandler) RegisterRoutes(e *echo.Echo, auth, wsAuth echo.MiddlewareFunc) {
	stories := e.Group("/stories")
	session := stories.Group("/:id/session", auth)
	{
		session.POST("", h.openSession)
		session.GET("", h.getSession)
		session.DELETE("", h.closeSession)
		session.POST("/load", h.loadNode)
		session.POST("/choose", h.selectChoice)
		session.POST("/custom", h.selectCustomChoice)
		session.POST("/restart", h.restart)
	}
	stories.GET("/:id/events", h.streamEvents, wsAuth)
}

func (h *SessionHandler) openSession(c echo.Context) error {
	storyID, err := storyIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID format"})
	}
	sess, err := h.sessions.Open(c.Request().Context(), storyID)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) getSession(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) closeSession(c echo.Context) error {
	userID, storyID, err := h.keys(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	if !h.sessions.Close(userID, storyID) {
		return h.handleServiceError(c, service.ErrSessionNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) loadNode(c echo.Context) error {
	var req loadNodeRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
	}
	sess, err := h.session(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	state, err := sess.LoadNode(c.Request().Context(), req.NodeKey)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *SessionHandler) selectChoice(c echo.Context) error {
	var req chooseRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
	}
	choiceID, err := uuid.Parse(req.ChoiceID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid choice ID format"})
	}
	sess, err := h.session(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	res, err := sess.SelectChoice(c.Request().Context(), *req.ChapterIndex, choiceID)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) selectCustomChoice(c echo.Context) error {
	var req customChoiceRequest
	if msg := bindAndValidate(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
	}
	sess, err := h.session(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	res, err := sess.SelectCustomChoice(c.Request().Context(), *req.ChapterIndex, req.Text)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) restart(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	state, err := sess.Restart(c.Request().Context())
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// session returns the caller's open session for the story in the path.
func (h *SessionHandler) session(c echo.Context) (*service.ReaderSession, error) {
	userID, storyID, err := h.keys(c)
	if err != nil {
		return nil, err
	}
	return h.sessions.Get(userID, storyID)
}

func (h *SessionHandler) keys(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	userID, ok := models.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, uuid.Nil, models.ErrNotAuthenticated
	}
	storyID, err := storyIDParam(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, storyID, nil
}

func storyIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, models.ErrInvalidInput
	}
	return id, nil
}

func requestFields(c echo.Context, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.String("storyID", c.Param("id")),
		zap.Error(err),
	}
	if userID, ok := models.GetUserIDFromContext(c.Request().Context()); ok {
		fields = append(fields, zap.Stringer("userID", userID))
	}
	return fields
}

package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edura/edura-core/internal/conversation"
	"github.com/edura/edura-core/internal/history"
	"github.com/edura/edura-core/internal/llm"
	"github.com/edura/edura-core/internal/session"
)

// Deps are the collaborators of the API handlers.
type Deps struct {
	Provider llm.Provider
	Relay    *llm.Relay
	Sessions *session.Service
	History  *history.Store
	// Model is reported by /api/config.
	Model string
}

// Handler handles the /api routes.
type Handler struct {
	deps Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/chat", h.Chat)
	api.POST("/english/chat", h.EnglishChat)

	api.POST("/session/start", h.StartSession)
	api.POST("/chat/:sessionId", h.SessionChat)
	api.DELETE("/session/:sessionId", h.EndSession)

	api.GET("/get-system-prompt", h.SystemPrompt)
	api.GET("/config", h.Config)

	api.POST("/history", h.SaveHistory)
	api.GET("/history", h.ListHistory)
	api.GET("/history/:sessionId", h.SessionHistory)
}

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

type turnRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

type startRequest struct {
	StudentData map[string]any `json:"studentData"`
	GradeReport string         `json:"gradeReport"`

	// snake_case spellings sent by older clients
	LegacyStudentData map[string]any `json:"student_data"`
	LegacyGradeReport string         `json:"grade_report"`
}

// Chat relays a client-held conversation as-is.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	return writeStream(c, h.deps.Relay.Stream(c.Request().Context(), h.deps.Provider, req.Messages))
}

// EnglishChat answers English questions under the fixed tutor prompt.
// POST /api/english/chat
func (h *Handler) EnglishChat(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	msgs := conversation.Turns(req.History, req.Message)
	return writeStream(c, h.deps.Relay.Converse(c.Request().Context(), h.deps.Provider, conversation.EnglishTeacherPrompt, msgs))
}

// StartSession opens a student session.
// POST /api/session/start
func (h *Handler) StartSession(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	data, report := req.StudentData, req.GradeReport
	if data == nil {
		data = req.LegacyStudentData
	}
	if report == "" {
		report = req.LegacyGradeReport
	}
	if data == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "studentData is required")
	}

	id, err := h.deps.Sessions.Start(data, report)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"sessionId": id,
		"message":   "Session started successfully",
	})
}

// SessionChat streams one turn of a student session.
// POST /api/chat/:sessionId
func (h *Handler) SessionChat(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	events, err := h.deps.Sessions.Chat(c.Request().Context(), c.Param("sessionId"), req.Message, req.History)
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found or expired")
	}
	if err != nil {
		return err
	}
	return writeStream(c, events)
}

// EndSession drops a student session.
// DELETE /api/session/:sessionId
func (h *Handler) EndSession(c echo.Context) error {
	err := h.deps.Sessions.End(c.Param("sessionId"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session ended and context cleared"})
}

// SystemPrompt returns the lesson prompt template.
// GET /api/get-system-prompt
func (h *Handler) SystemPrompt(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"systemPrompt": llm.PromptTemplate})
}

// Config exposes the non-secret model setting to the UI.
// GET /api/config
func (h *Handler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"openai_model": h.deps.Model})
}

// SaveHistory stores a lesson progress record.
// POST /api/history
func (h *Handler) SaveHistory(c echo.Context) error {
	var rec history.Record
	if err := c.Bind(&rec); err != nil {
		return err
	}
	if _, err := h.deps.History.Save(rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success", "message": "History saved"})
}

// ListHistory returns every stored record.
// GET /api/history
func (h *Handler) ListHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.History.List())
}

// SessionHistory returns the records of one lesson session.
// GET /api/history/:sessionId
func (h *Handler) SessionHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.History.ListBySession(c.Param("sessionId")))
}

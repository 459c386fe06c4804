package api

import (
	"net/http"

	"support-desk/backend/conversation/service"
	apperrors "support-desk/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the conversation orchestrator over HTTP
type SessionHandler struct {
	orchestrator *service.Orchestrator
}

// NewSessionHandler creates a session handler
func NewSessionHandler(orchestrator *service.Orchestrator) *SessionHandler {
	return &SessionHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers the session routes on the given group
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/messages", h.GetTranscript)
		sessions.POST("/:id/messages", h.SendMessage)
	}
}

type startSessionRequest struct {
	ClientID           string `json:"client_id" binding:"required"`
	DesignatedWorkerID *uint  `json:"designated_worker_id"`
}

// StartSession creates a new conversation session
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	session, err := h.orchestrator.StartSession(c.Request.Context(), req.ClientID, req.DesignatedWorkerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns one session
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetTranscript returns the ordered transcript of one session
func (h *SessionHandler) GetTranscript(c *gin.Context) {
	messages, err := h.orchestrator.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"messages":   messages,
		"count":      len(messages),
	})
}

type sendMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	ClientID string `json:"client_id"`
}

// SendMessage processes one inbound client message and returns the reply
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	reply, err := h.orchestrator.HandleMessage(c.Request.Context(), c.Param("id"), req.Content, req.ClientID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"reply":      reply,
	})
}

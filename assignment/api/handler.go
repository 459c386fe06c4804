package api

import (
	"net/http"
	"strconv"

	"support-desk/backend/assignment/service"
	apperrors "support-desk/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// WorkerHandler exposes the assignment engine and worker pool over HTTP
type WorkerHandler struct {
	engine               *service.Engine
	defaultMaxConcurrent int
}

// NewWorkerHandler creates a worker handler; defaultMaxConcurrent applies to
// registrations that do not specify a cap.
func NewWorkerHandler(engine *service.Engine, defaultMaxConcurrent int) *WorkerHandler {
	return &WorkerHandler{engine: engine, defaultMaxConcurrent: defaultMaxConcurrent}
}

// RegisterRoutes registers worker and assignment routes on the given group
func (h *WorkerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	workers := rg.Group("/workers")
	{
		workers.POST("", h.RegisterWorker)
		workers.GET("", h.ListWorkers)
		workers.PATCH("/:id/duty", h.SetDuty)
	}
	sessions := rg.Group("/sessions")
	{
		sessions.POST("/:id/assign", h.AssignSession)
		sessions.POST("/:id/complete", h.CompleteSession)
	}
}

type registerWorkerRequest struct {
	Name          string `json:"name" binding:"required"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// RegisterWorker puts a new worker on duty
func (h *WorkerHandler) RegisterWorker(c *gin.Context) {
	var req registerWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}
	if req.MaxConcurrent == 0 {
		req.MaxConcurrent = h.defaultMaxConcurrent
	}

	worker, err := h.engine.RegisterWorker(c.Request.Context(), req.Name, req.MaxConcurrent)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, worker)
}

// ListWorkers returns all registered workers
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	workers, err := h.engine.ListWorkers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers, "count": len(workers)})
}

type setDutyRequest struct {
	OnDuty *bool `json:"on_duty" binding:"required"`
}

// SetDuty toggles whether a worker receives new conversations
func (h *WorkerHandler) SetDuty(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_WORKER_ID", "worker id must be numeric"))
		return
	}

	var req setDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", err.Error()))
		return
	}

	if err := h.engine.SetWorkerDuty(c.Request.Context(), uint(id), *req.OnDuty); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker_id": id, "on_duty": *req.OnDuty})
}

// AssignSession routes a session to a worker; 202 means it stays queued
func (h *WorkerHandler) AssignSession(c *gin.Context) {
	workerID, assigned, err := h.engine.Assign(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	if !assigned {
		c.JSON(http.StatusAccepted, gin.H{
			"session_id": c.Param("id"),
			"queued":     true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"worker_id":  workerID,
	})
}

type completeSessionRequest struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// CompleteSession resolves a session with an optional satisfaction rating
func (h *WorkerHandler) CompleteSession(c *gin.Context) {
	var req completeSessionRequest
	// Body is optional; an empty body means no rating
	_ = c.ShouldBindJSON(&req)

	var rating *service.Rating
	if req.Score != 0 {
		rating = &service.Rating{Score: req.Score, Feedback: req.Feedback}
	}

	if err := h.engine.Complete(c.Request.Context(), c.Param("id"), rating); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "status": "resolved"})
}

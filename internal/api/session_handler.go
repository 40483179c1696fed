package api

import (
	"net/http"

	"alcyxob/rehabflow/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session orchestrator.
type SessionHandler struct {
	orchestrator *service.SessionOrchestrator
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(orchestrator *service.SessionOrchestrator) *SessionHandler {
	return &SessionHandler{orchestrator: orchestrator}
}

// SubmitSessionRequest is today's check-in. PainLevel is a pointer so that a
// missing value is told apart from 0.
type SubmitSessionRequest struct {
	PainLevel *int   `json:"painLevel" binding:"required"`
	Feedback  string `json:"feedback"`
}

// SubmitSession generates the next routine and records the session.
// A client disconnect abandons the attempt.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	var req SubmitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	session, err := h.orchestrator.Submit(c.Request.Context(), c.Param("patientId"), *req.PainLevel, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetStatus reports the orchestrator state.
func (h *SessionHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Status())
}

// ResetSession abandons an attempt in flight, or dismisses a finished one.
func (h *SessionHandler) ResetSession(c *gin.Context) {
	if !h.orchestrator.Abandon() {
		h.orchestrator.Dismiss()
	}
	c.JSON(http.StatusOK, h.orchestrator.Status())
}

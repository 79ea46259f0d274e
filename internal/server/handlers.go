package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/workflow"
	errx "github.com/estate-copilot/server/internal/core/error"
	"github.com/estate-copilot/server/internal/server/middleware"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// Handler exposes the workflow over HTTP.
type Handler struct {
	wf *workflow.Workflow
}

func NewHandler(wf *workflow.Workflow) *Handler {
	return &Handler{wf: wf}
}

type invokeRequest struct {
	Timestamp int64               `json:"timestamp" binding:"required"`
	Messages  []model.ChatMessage `json:"messages" binding:"required,min=1"`
	Decorate  bool                `json:"decorate"`
}

type resumeRequest struct {
	ThreadID           string   `json:"thread_id" binding:"required"`
	ApprovedProperties []string `json:"approved_properties"`
}

type stateRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
}

// Invoke handles POST /invoke: start or continue a research thread.
func (h *Handler) Invoke(c *gin.Context) {
	var req invokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID := middleware.UserID(c)
	result, err := h.wf.Invoke(c.Request.Context(), userID, req.Timestamp, req.Messages, req.Decorate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Resume handles POST /resume: deliver the approval decision for a suspended
// thread.
func (h *Handler) Resume(c *gin.Context) {
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !h.authorizeThread(c, req.ThreadID) {
		return
	}

	approved := req.ApprovedProperties
	if approved == nil {
		approved = []string{}
	}
	result, err := h.wf.Resume(c.Request.Context(), req.ThreadID, approved)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// State handles GET and POST /state: inspect a thread's checkpoint.
func (h *Handler) State(c *gin.Context) {
	threadID := c.Query("thread_id")
	if threadID == "" {
		var req stateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id is required"})
			return
		}
		threadID = req.ThreadID
	}
	if !h.authorizeThread(c, threadID) {
		return
	}

	snapshot, err := h.wf.State(c.Request.Context(), threadID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// DecoratedImage handles GET /decorated-image/:property_id, serving the
// generated image bytes for one candidate of the caller's thread.
func (h *Handler) DecoratedImage(c *gin.Context) {
	propertyID := strings.TrimSpace(c.Param("property_id"))
	threadID := c.Query("thread_id")
	if propertyID == "" || threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id and property_id are required"})
		return
	}
	if !h.authorizeThread(c, threadID) {
		return
	}

	decorated, err := h.wf.Decoration(c.Request.Context(), threadID, propertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !decorated.Available() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decorated image for this property"})
		return
	}

	mime := decorated.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	c.Data(http.StatusOK, mime, decorated.ImageData)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeThread rejects requests touching a thread owned by another user.
// Responds and returns false when access is denied.
func (h *Handler) authorizeThread(c *gin.Context, threadID string) bool {
	owner, err := h.wf.Owner(c.Request.Context(), threadID)
	if err != nil {
		respondError(c, err)
		return false
	}
	if owner != middleware.UserID(c) {
		respondError(c, errx.ForbiddenThread(threadID))
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		logx.Warn().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}
	c.JSON(status, gin.H{"error": errx.MessageOf(err)})
}

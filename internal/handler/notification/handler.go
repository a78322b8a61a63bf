package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/littlefarms/taskboard-api/internal/handler"
	"github.com/littlefarms/taskboard-api/internal/middleware"
	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/service/notification"
)

type Handler struct {
	service notification.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service notification.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.auth.Authenticate(), h.ListNotifications)
		notifications.PATCH("/:id/acknowledge", h.auth.Authenticate(), h.AcknowledgeNotification)

		// Fan-out entry points, called by the task and comment flows.
		notifications.POST("/update/tasks/manager", h.TaskUpdated)
		notifications.POST("/comments", h.NewComment)
		notifications.POST("/daily-digest", h.DailyDigest)
	}
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	items, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AcknowledgeNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	requesterID := c.GetString(middleware.ContextUserID)

	if err := h.service.Acknowledge(c.Request.Context(), id, requesterID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) TaskUpdated(c *gin.Context) {
	var update model.TaskUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.service.NotifyTaskUpdated(c.Request.Context(), &update)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) NewComment(c *gin.Context) {
	var event model.CommentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.service.NotifyNewComment(c.Request.Context(), &event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type dailyDigestRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) DailyDigest(c *gin.Context) {
	var req dailyDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	count, err := h.service.SendDailyDigest(c.Request.Context(), req.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Daily digest sent",
		"count":   count,
	})
}

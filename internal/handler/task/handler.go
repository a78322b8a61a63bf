package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/littlefarms/taskboard-api/internal/handler"
	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/service/task"
)

type Handler struct {
	service task.Service
}

func NewHandler(service task.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
	}
}

func (h *Handler) GetTask(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("task ID is required"))
		return
	}

	t, err := h.service.GetTask(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *Handler) ListTasks(c *gin.Context) {
	var filter model.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tasks})
}

// Package handlers holds API handlers for components other than the app
// context.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/scheduler"
)

// SchedulerHandler exposes maintenance tasks.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(sched *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: sched}
}

// RegisterRoutes mounts the handler on g.
func (h *SchedulerHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:id", h.GetTask)
	g.POST("/tasks/:id/run", h.RunTask)
}

// ListTasks returns all scheduled tasks.
// GET /api/v1/scheduler/tasks
func (h *SchedulerHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns one task.
// GET /api/v1/scheduler/tasks/:id
func (h *SchedulerHandler) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask triggers a task in the background.
// POST /api/v1/scheduler/tasks/:id/run
func (h *SchedulerHandler) RunTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := h.scheduler.RunNow(taskID); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, scheduler.ErrTaskNotFound):
			status = http.StatusNotFound
		case errors.Is(err, scheduler.ErrTaskRunning):
			status = http.StatusConflict
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}

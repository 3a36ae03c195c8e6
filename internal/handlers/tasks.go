package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-sync/internal/models"
	"todo-sync/internal/sync"
)

type TaskHandler struct {
	coordinator *sync.Coordinator
}

func NewTaskHandler(coordinator *sync.Coordinator) *TaskHandler {
	return &TaskHandler{coordinator: coordinator}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input models.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.coordinator.CreateTask(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var upd models.TaskUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.coordinator.UpdateTask(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	task, err := h.coordinator.ToggleTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.coordinator.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *TaskHandler) ClearCompleted(c *gin.Context) {
	count, err := h.coordinator.ClearCompleted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": count})
}

// GetTasks lists tasks. The category query parameter filters by category
// id; the literal "none" selects uncategorized tasks only.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	opts := models.TaskListOptions{
		SortBy:        c.DefaultQuery("sortBy", models.SortByOrder),
		SortDirection: c.DefaultQuery("sortDirection", models.SortAsc),
	}

	if category, ok := c.GetQuery("category"); ok {
		opts.HasCategoryFilter = true
		if category != "none" {
			opts.FilterCategory = &category
		}
	}

	tasks, err := h.coordinator.ListTasks(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *TaskHandler) GetStats(c *gin.Context) {
	stats, err := h.coordinator.TaskStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

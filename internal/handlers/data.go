package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-sync/internal/sync"
)

// DataHandler serves whole-store export and import, used for backup and
// device migration.
type DataHandler struct {
	coordinator *sync.Coordinator
}

func NewDataHandler(coordinator *sync.Coordinator) *DataHandler {
	return &DataHandler{coordinator: coordinator}
}

func (h *DataHandler) ExportData(c *gin.Context) {
	data, err := h.coordinator.Export()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="todo-export.json"`)
	c.JSON(http.StatusOK, data)
}

func (h *DataHandler) ImportData(c *gin.Context) {
	var data map[string]json.RawMessage
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "import payload must be a JSON object"})
		return
	}

	merge := c.DefaultQuery("merge", "false") == "true"
	if err := h.coordinator.Import(data, merge); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "data imported successfully"})
}

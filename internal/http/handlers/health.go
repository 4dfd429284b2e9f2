package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/knowledge-registry/internal/clients/processor"
)

// HealthHandler serves liveness plus a readiness view of the one hard
// dependency, the processing service.
type HealthHandler struct {
	proc processor.Client
}

func NewHealthHandler(proc processor.Client) *HealthHandler {
	return &HealthHandler{proc: proc}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	available := h.proc != nil && h.proc.Available()
	status := http.StatusOK
	if !available {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"processor_available": available})
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/knowledge-registry/internal/http/response"
	"github.com/yungbote/knowledge-registry/internal/platform/ctxutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
	"github.com/yungbote/knowledge-registry/internal/services"
)

type StatsHandler struct {
	log    *logger.Logger
	status services.StatusService
}

func NewStatsHandler(log *logger.Logger, status services.StatusService) *StatsHandler {
	return &StatsHandler{
		log:    log.With("handler", "StatsHandler"),
		status: status,
	}
}

// AgentStats reports per-state counts for one agent, from the agent_id query
// parameter or the resolved request identity.
func (h *StatsHandler) AgentStats(c *gin.Context) {
	agentID := strings.TrimSpace(c.Query("agent_id"))
	if agentID == "" {
		agentID = ctxutil.AgentID(c.Request.Context())
	}
	if agentID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_agent_id", fmt.Errorf("agent_id query parameter is required"))
		return
	}

	stats, err := h.status.AgentStats(c.Request.Context(), agentID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, stats)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/http/response"
	"github.com/yungbote/knowledge-registry/internal/platform/ctxutil"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
	"github.com/yungbote/knowledge-registry/internal/services"
)

type KnowledgeHandler struct {
	log       *logger.Logger
	registry  services.RegistryService
	status    services.StatusService
	ingestion services.IngestionService
}

func NewKnowledgeHandler(
	log *logger.Logger,
	registry services.RegistryService,
	status services.StatusService,
	ingestion services.IngestionService,
) *KnowledgeHandler {
	return &KnowledgeHandler{
		log:       log.With("handler", "KnowledgeHandler"),
		registry:  registry,
		status:    status,
		ingestion: ingestion,
	}
}

type ingestRequest struct {
	Text string `json:"text" binding:"required"`
}

// Ingest runs the coordinator synchronously. The response always carries the
// outcome message the agent would relay; failures add the registry code and
// the matching HTTP status.
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	agentID := ctxutil.AgentID(c.Request.Context())
	if agentID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	var message string
	err := h.ingestion.HandleMessage(dbctx.Context{Ctx: c.Request.Context()}, agentID, req.Text, func(msg string) {
		message = msg
	})
	if err != nil {
		response.RespondOutcome(c, response.StatusFor(err), message, string(types.CodeOf(err)))
		return
	}
	response.RespondOutcome(c, http.StatusOK, message, "")
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}

	items, err := h.registry.ListContent(dbctx.Context{Ctx: c.Request.Context()}, c.Query("source_rid"), limit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}

func (h *KnowledgeHandler) Get(c *gin.Context) {
	item, err := h.registry.GetContent(dbctx.Context{Ctx: c.Request.Context()}, c.Param("rid"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, item)
}

func (h *KnowledgeHandler) Status(c *gin.Context) {
	rows, err := h.status.StatusesForContent(dbctx.Context{Ctx: c.Request.Context()}, c.Param("rid"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"statuses": rows})
}

// ResetStatus is the administrative failed -> pending reopen.
func (h *KnowledgeHandler) ResetStatus(c *gin.Context) {
	rid := c.Param("rid")
	agentID := c.Param("agent_id")
	if err := h.status.ResetForRetry(dbctx.Context{Ctx: c.Request.Context()}, rid, agentID); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	h.log.Info("Status reset", "content_rid", rid, "agent_id", agentID)
	response.RespondOK(c, gin.H{
		"content_rid": rid,
		"agent_id":    agentID,
		"state":       types.StatePending,
	})
}

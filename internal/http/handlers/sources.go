package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/knowledge-registry/internal/http/response"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
	"github.com/yungbote/knowledge-registry/internal/services"
)

type SourcesHandler struct {
	log      *logger.Logger
	registry services.RegistryService
}

func NewSourcesHandler(log *logger.Logger, registry services.RegistryService) *SourcesHandler {
	return &SourcesHandler{
		log:      log.With("handler", "SourcesHandler"),
		registry: registry,
	}
}

type registerSourceRequest struct {
	Type        string         `json:"type" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// Register is idempotent; resubmitting the same (type, name) returns the
// existing source.
func (h *SourcesHandler) Register(c *gin.Context) {
	var req registerSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	src, err := h.registry.RegisterSource(dbctx.Context{Ctx: c.Request.Context()}, services.RegisterSourceInput{
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, src)
}

func (h *SourcesHandler) List(c *gin.Context) {
	sources, err := h.registry.ListSources(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sources": sources})
}

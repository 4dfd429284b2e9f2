package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/knowledge-registry/internal/http/handlers"
	httpMW "github.com/yungbote/knowledge-registry/internal/http/middleware"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AgentAuth *httpMW.AgentAuth

	HealthHandler    *httpH.HealthHandler
	SourcesHandler   *httpH.SourcesHandler
	KnowledgeHandler *httpH.KnowledgeHandler
	StatsHandler     *httpH.StatsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("knowledge-registry"))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())

	// Health and stats stay outside the agent-auth surface.
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/healthcheck/ready", cfg.HealthHandler.Readiness)
	}
	if cfg.StatsHandler != nil {
		r.GET("/stats", cfg.StatsHandler.AgentStats)
	}

	api := r.Group("/api")
	{
		if cfg.AgentAuth != nil {
			api.Use(cfg.AgentAuth.RequireAgent())
		}

		if cfg.SourcesHandler != nil {
			api.POST("/sources", cfg.SourcesHandler.Register)
			api.GET("/sources", cfg.SourcesHandler.List)
		}

		if cfg.KnowledgeHandler != nil {
			api.POST("/knowledge", cfg.KnowledgeHandler.Ingest)
			api.GET("/knowledge", cfg.KnowledgeHandler.List)
			api.GET("/knowledge/:rid", cfg.KnowledgeHandler.Get)
			api.GET("/knowledge/:rid/status", cfg.KnowledgeHandler.Status)
			api.POST("/knowledge/:rid/status/:agent_id/reset", cfg.KnowledgeHandler.ResetStatus)
		}
	}

	return r
}

package app

import (
	"github.com/gin-gonic/gin"

	registryhttp "github.com/yungbote/knowledge-registry/internal/http"
	httpH "github.com/yungbote/knowledge-registry/internal/http/handlers"
	httpMW "github.com/yungbote/knowledge-registry/internal/http/middleware"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type Middleware struct {
	Agent *httpMW.AgentAuth
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Sources   *httpH.SourcesHandler
	Knowledge *httpH.KnowledgeHandler
	Stats     *httpH.StatsHandler
}

func wireHandlers(log *logger.Logger, clients Clients, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(clients.Processor),
		Sources:   httpH.NewSourcesHandler(log, serviceset.Registry),
		Knowledge: httpH.NewKnowledgeHandler(log, serviceset.Registry, serviceset.Status, serviceset.Ingestion),
		Stats:     httpH.NewStatsHandler(log, serviceset.Status),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Agent: httpMW.NewAgentAuth(log, cfg.JWTSecret, cfg.DefaultAgentID),
	}
}

func wireRouter(log *logger.Logger, handlers Handlers, middleware Middleware) *gin.Engine {
	return registryhttp.NewRouter(registryhttp.RouterConfig{
		Log:              log,
		AgentAuth:        middleware.Agent,
		HealthHandler:    handlers.Health,
		SourcesHandler:   handlers.Sources,
		KnowledgeHandler: handlers.Knowledge,
		StatsHandler:     handlers.Stats,
	})
}

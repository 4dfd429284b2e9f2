package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/knowledge-registry/internal/ingestion/classify"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
	"github.com/yungbote/knowledge-registry/internal/ratelimit"
	"github.com/yungbote/knowledge-registry/internal/services"
)

type Services struct {
	Registry  services.RegistryService
	Status    services.StatusService
	Ingestion services.IngestionService

	Limiter    *ratelimit.Limiter
	Classifier *classify.Classifier
	Reconciler *services.Reconciler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	registry := services.NewRegistryService(db, log, reposet.Sources, reposet.ContentItems)
	status := services.NewStatusService(db, log, reposet.Statuses, clients.Cache, cfg.StatsCacheTTL)
	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, cfg.MaxTokensPerMinute)
	classifier := classify.New(log)
	ingestion := services.NewIngestionService(db, log, registry, status, reposet.ContentItems, classifier, clients.Processor, limiter)

	var reconciler *services.Reconciler
	if cfg.ReconcileEnabled {
		reconciler = services.NewReconciler(db, log, reposet.Statuses)
	}

	return Services{
		Registry:   registry,
		Status:     status,
		Ingestion:  ingestion,
		Limiter:    limiter,
		Classifier: classifier,
		Reconciler: reconciler,
	}
}

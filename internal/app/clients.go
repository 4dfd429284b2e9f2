package app

import (
	"fmt"

	"github.com/yungbote/knowledge-registry/internal/clients/processor"
	rediscache "github.com/yungbote/knowledge-registry/internal/clients/redis"
	"github.com/yungbote/knowledge-registry/internal/platform/envutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type Clients struct {
	Processor processor.Client
	Cache     rediscache.Cache
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	proc, err := processor.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init processor client: %w", err)
	}

	// Stats caching is optional; the service falls back to direct reads.
	var cache rediscache.Cache
	if envutil.Str("REDIS_ADDR", "") != "" {
		cache, err = rediscache.NewCache(log)
		if err != nil {
			log.Warn("Redis cache init failed; stats caching disabled", "error", err)
			cache = nil
		}
	}

	return Clients{Processor: proc, Cache: cache}, nil
}

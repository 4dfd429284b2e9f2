package app

import (
	"time"

	"github.com/yungbote/knowledge-registry/internal/platform/envutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// Config carries the coordinator-level knobs. Clients read their own env
// (PROCESSOR_*, REDIS_ADDR, POSTGRES_*) inside their constructors.
type Config struct {
	Port        string
	Environment string
	Version     string

	// Agent identity resolution for the HTTP surface.
	JWTSecret      string
	DefaultAgentID string

	// Aggregate throughput into the processing service.
	MaxRequestsPerMinute int
	MaxTokensPerMinute   int

	StatsCacheTTL    time.Duration
	ReconcileEnabled bool
	ProbeInterval    time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	log.Info("Loading configuration...")
	return Config{
		Port:                 envutil.Str("PORT", "8080"),
		Environment:          envutil.Str("APP_ENV", "development"),
		Version:              envutil.Str("APP_VERSION", "dev"),
		JWTSecret:            envutil.Str("KNOWLEDGE_JWT_SECRET", ""),
		DefaultAgentID:       envutil.Str("DEFAULT_AGENT_ID", ""),
		MaxRequestsPerMinute: envutil.Int("MAX_REQUESTS_PER_MINUTE", 60),
		MaxTokensPerMinute:   envutil.Int("MAX_TOKENS_PER_MINUTE", 90000),
		StatsCacheTTL:        envutil.Seconds("STATS_CACHE_TTL_SECONDS", 30*time.Second),
		ReconcileEnabled:     envutil.Bool("RECONCILE_ENABLED", false),
		ProbeInterval:        envutil.Seconds("PROCESSOR_PROBE_INTERVAL_SECONDS", 30*time.Second),
	}
}

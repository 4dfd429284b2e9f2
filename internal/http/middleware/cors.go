package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/knowledge-registry/internal/platform/envutil"
)

// CORS allows every origin unless CORS_ALLOW_ORIGINS pins a comma-separated
// list. Credentials are only enabled with an explicit list; the cors package
// rejects the wildcard + credentials combination.
func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With", "X-Agent-Id", "X-Request-Id", "X-Trace-Id"},
	}

	raw := strings.TrimSpace(envutil.Str("CORS_ALLOW_ORIGINS", "*"))
	if raw == "*" || raw == "" {
		cfg.AllowAllOrigins = true
		return cors.New(cfg)
	}
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/knowledge-registry/internal/http/response"
	"github.com/yungbote/knowledge-registry/internal/platform/ctxutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

const headerAgentID = "X-Agent-Id"

type agentClaims struct {
	AgentID string `json:"agent_id"`
	jwt.RegisteredClaims
}

// AgentAuth resolves which agent a request acts for. With a JWT secret
// configured, the bearer token's agent_id claim is the only accepted
// identity. Without one, the X-Agent-Id header applies, then the configured
// default agent.
type AgentAuth struct {
	log          *logger.Logger
	jwtSecret    string
	defaultAgent string
}

func NewAgentAuth(log *logger.Logger, jwtSecret, defaultAgent string) *AgentAuth {
	return &AgentAuth{
		log:          log.With("middleware", "AgentAuth"),
		jwtSecret:    strings.TrimSpace(jwtSecret),
		defaultAgent: strings.TrimSpace(defaultAgent),
	}
}

func (am *AgentAuth) RequireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, err := am.resolve(c)
		if err != nil {
			am.log.Warn("Agent resolution failed", "path", c.Request.URL.Path, "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		ctx := ctxutil.WithAgentData(c.Request.Context(), &ctxutil.AgentData{AgentID: agentID})
		c.Request = c.Request.WithContext(ctx)
		c.Set("agent_id", agentID)
		c.Next()
	}
}

func (am *AgentAuth) resolve(c *gin.Context) (string, error) {
	if am.jwtSecret != "" {
		tokenString := extractToken(c)
		if tokenString == "" {
			return "", fmt.Errorf("missing bearer token")
		}
		claims := &agentClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(am.jwtSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return "", fmt.Errorf("parse token: %w", err)
		}
		agentID := strings.TrimSpace(claims.AgentID)
		if !token.Valid || agentID == "" {
			return "", fmt.Errorf("token carries no agent_id")
		}
		return agentID, nil
	}

	if v := strings.TrimSpace(c.GetHeader(headerAgentID)); v != "" {
		return v, nil
	}
	if am.defaultAgent != "" {
		return am.defaultAgent, nil
	}
	return "", fmt.Errorf("no agent identity on request")
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}

// Package ctxutil carries per-request identity through context: the trace
// and request ids stamped by middleware, and the agent the request acts on
// behalf of.
package ctxutil

import (
	"context"
	"strings"
)

type (
	traceDataKey struct{}
	agentDataKey struct{}
)

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// AgentData identifies the agent a request acts on behalf of. Middleware
// resolves it once; services read it from context.
type AgentData struct {
	AgentID string
}

func WithAgentData(ctx context.Context, ad *AgentData) context.Context {
	return context.WithValue(ctx, agentDataKey{}, ad)
}

func GetAgentData(ctx context.Context) *AgentData {
	if ad, ok := ctx.Value(agentDataKey{}).(*AgentData); ok {
		return ad
	}
	return nil
}

// AgentID returns the agent id carried by ctx, or "" when none is attached.
func AgentID(ctx context.Context) string {
	ad := GetAgentData(ctx)
	if ad == nil {
		return ""
	}
	return strings.TrimSpace(ad.AgentID)
}

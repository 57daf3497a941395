// Package requestctx carries authenticated request identity through context.
package requestctx

import "context"

type agentIDContextKey struct{}

// WithAgentID stores the authenticated agent identifier in context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, agentIDContextKey{}, agentID)
}

// AgentIDFromContext returns the agent identifier stored in context, or "".
func AgentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(agentIDContextKey{}).(string)
	return value
}

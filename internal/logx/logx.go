package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	agentKey contextKey = iota
	requestKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithAgent annotates the logger with the agent id if present.
func WithAgent(ctx context.Context, agentID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if agentID != "" {
		if current, ok := ctx.Value(agentKey).(string); ok && current == agentID {
			return log
		}
		log = log.With("agent", agentID)
	}
	return log
}

// WithRequest annotates the logger with a dispatch request id.
func WithRequest(ctx context.Context, requestID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if requestID != "" {
		if current, ok := ctx.Value(requestKey).(string); ok && current == requestID {
			return log
		}
		log = log.With("request", requestID)
	}
	return log
}

// WithAgentRequest annotates the logger with both markers.
func WithAgentRequest(ctx context.Context, agentID, requestID string) pslog.Logger {
	log := WithAgent(ctx, agentID)
	if requestID != "" {
		log = log.With("request", requestID)
	}
	return log
}

// ContextWithAgent stores the agent marker on the context for log de-duplication.
func ContextWithAgent(ctx context.Context, agentID string) context.Context {
	if ctx == nil || agentID == "" {
		return ctx
	}
	return context.WithValue(ctx, agentKey, agentID)
}

// ContextWithRequest stores the request marker on the context for log de-duplication.
func ContextWithRequest(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, requestID)
}

// ContextWithAgentLogger attaches the logger and agent marker to the context.
func ContextWithAgentLogger(ctx context.Context, log pslog.Logger, agentID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithAgent(ctx, agentID)
}

// CopyContextFields copies agent/request markers from src to dst, used when
// spawning a detached goroutine that should keep the request's logging
// identity without inheriting its cancellation.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if agent, ok := src.Value(agentKey).(string); ok && agent != "" {
		dst = ContextWithAgent(dst, agent)
	}
	if req, ok := src.Value(requestKey).(string); ok && req != "" {
		dst = ContextWithRequest(dst, req)
	}
	return dst
}

package agent

import (
	"context"

	"github.com/outpostrun/conductor/internal/queue"
	"github.com/outpostrun/conductor/pkg/models"
)

// queueKey is the typed context key carrying the per-session Message Queue
// into a Run invocation.
type queueKey struct{}

// WithQueue attaches a Message Queue to ctx for the duration of a Run call.
func WithQueue(ctx context.Context, q *queue.Queue) context.Context {
	return context.WithValue(ctx, queueKey{}, q)
}

// QueueFromContext returns the Message Queue attached to ctx, or nil if none
// was attached (steering/follow-up draining is then skipped entirely).
func QueueFromContext(ctx context.Context) *queue.Queue {
	q, _ := ctx.Value(queueKey{}).(*queue.Queue)
	return q
}

// ContextTransformFunc rewrites the message list immediately before it is
// sent to the provider, e.g. for context-window pruning.
type ContextTransformFunc func(ctx context.Context, messages []models.Message) ([]models.Message, error)

type contextTransformKey struct{}

// WithContextTransform attaches a ContextTransformFunc to ctx.
func WithContextTransform(ctx context.Context, fn ContextTransformFunc) context.Context {
	return context.WithValue(ctx, contextTransformKey{}, fn)
}

// ContextTransformFromContext returns the ContextTransformFunc attached to
// ctx, or nil.
func ContextTransformFromContext(ctx context.Context) ContextTransformFunc {
	fn, _ := ctx.Value(contextTransformKey{}).(ContextTransformFunc)
	return fn
}

// APIKeyResolver resolves a provider API key per-call, so short-lived
// credentials can be refreshed across a long-running turn.
type APIKeyResolver func(ctx context.Context, provider string) (string, error)

type apiKeyResolverKey struct{}

// WithAPIKeyResolver attaches an APIKeyResolver to ctx.
func WithAPIKeyResolver(ctx context.Context, resolver APIKeyResolver) context.Context {
	return context.WithValue(ctx, apiKeyResolverKey{}, resolver)
}

// APIKeyResolverFromContext returns the APIKeyResolver attached to ctx, or
// nil if none was attached.
func APIKeyResolverFromContext(ctx context.Context) APIKeyResolver {
	resolver, _ := ctx.Value(apiKeyResolverKey{}).(APIKeyResolver)
	return resolver
}

// ToolObserver receives tool lifecycle notifications. Observer panics and
// errors are isolated by the loop and never abort the turn.
type ToolObserver func(ctx context.Context, call models.ToolCall, result *models.ToolResult, err error)

type toolStartKey struct{}
type toolEndKey struct{}

// WithOnToolStart attaches a hook invoked before each tool call executes.
func WithOnToolStart(ctx context.Context, fn ToolObserver) context.Context {
	return context.WithValue(ctx, toolStartKey{}, fn)
}

// WithOnToolEnd attaches a hook invoked after each tool call returns.
func WithOnToolEnd(ctx context.Context, fn ToolObserver) context.Context {
	return context.WithValue(ctx, toolEndKey{}, fn)
}

func onToolStartFromContext(ctx context.Context) ToolObserver {
	fn, _ := ctx.Value(toolStartKey{}).(ToolObserver)
	return fn
}

func onToolEndFromContext(ctx context.Context) ToolObserver {
	fn, _ := ctx.Value(toolEndKey{}).(ToolObserver)
	return fn
}

// SkippedToolResult builds the tool result recorded for a tool call that was
// never executed because a steering message cut the batch short.
func SkippedToolResult(toolCallID, name, reason string) models.ToolResult {
	if reason == "" {
		reason = "skipped: steering message received"
	}
	return models.ToolResult{
		ToolCallID: toolCallID,
		Name:       name,
		Content:    "Error: " + reason,
		Error:      reason,
		Success:    false,
	}
}

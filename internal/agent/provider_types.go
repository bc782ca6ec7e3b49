package agent

import (
	"context"

	"github.com/outpostrun/conductor/pkg/models"
)

// Provider is the uniform contract every LLM back-end satisfies. The
// distilled contract names four operations (complete, stream,
// complete_async, stream_async); in Go, one channel-returning method
// covers all four: Complete always returns immediately with a channel the
// caller drains at its own pace (satisfying "stream" and the "_async"
// variants, since the call itself never blocks the caller's goroutine),
// and CompleteSync below drains it fully for callers that want a single
// aggregated Response (satisfying plain "complete").
type Provider interface {
	// Complete sends a request and returns a channel of incremental
	// chunks. The channel is closed after a final chunk with Done set (or
	// after a chunk carrying a non-nil Error). Implementations MUST honor
	// consumer-paced back-pressure: they do not buffer unboundedly ahead
	// of what the consumer has received.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider's registry name.
	Name() string

	// Models lists the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether this provider can receive tool
	// schemas and emit tool calls.
	SupportsTools() bool
}

// CompletionRequest carries every parameter a provider needs to produce a
// response.
type CompletionRequest struct {
	Model       string           `json:"model"`
	System      string           `json:"system,omitempty"`
	Messages    []models.Message `json:"messages"`
	Tools       []ToolDescriptor `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`

	// EnableThinking requests extended/chain-of-thought reasoning on
	// providers that support it; ignored otherwise.
	EnableThinking       bool `json:"enable_thinking,omitempty"`
	ThinkingBudgetTokens int  `json:"thinking_budget_tokens,omitempty"`
}

// CompletionChunk is one increment of a streaming response.
type CompletionChunk struct {
	Text         string           `json:"text,omitempty"`
	ToolCall     *models.ToolCall `json:"tool_call,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        *models.Usage    `json:"usage,omitempty"`
	Done         bool             `json:"done,omitempty"`
	Error        error            `json:"-"`

	// Thinking carries an extended-thinking delta; ThinkingStart/ThinkingEnd
	// bracket a run of them. Providers without thinking support never set
	// these.
	Thinking      string `json:"thinking,omitempty"`
	ThinkingStart bool   `json:"thinking_start,omitempty"`
	ThinkingEnd   bool   `json:"thinking_end,omitempty"`
}

// Response is a fully aggregated, non-streaming completion result.
type Response struct {
	Content      string           `json:"content"`
	Model        string           `json:"model"`
	Usage        models.Usage     `json:"usage"`
	FinishReason string           `json:"finish_reason,omitempty"`
	ToolCalls    []models.ToolCall `json:"tool_calls,omitempty"`
}

// Model describes one model a provider exposes.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// CompleteSync drains a provider's streaming channel into a single
// aggregated Response. It is the synchronous convenience path for callers
// (the agent loop, RPC "complete" method) that don't want to process
// chunks incrementally.
func CompleteSync(ctx context.Context, p Provider, req *CompletionRequest) (*Response, error) {
	chunks, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := &Response{Model: req.Model}
	var text []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				resp.Content = string(text)
				return resp, nil
			}
			if chunk.Error != nil {
				return nil, chunk.Error
			}
			if chunk.Text != "" {
				text = append(text, chunk.Text...)
			}
			if chunk.ToolCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, *chunk.ToolCall)
			}
			if chunk.FinishReason != "" {
				resp.FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
			if chunk.Done {
				resp.Content = string(text)
				return resp, nil
			}
		}
	}
}

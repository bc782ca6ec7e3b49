package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/outpostrun/conductor/internal/sessions"
	"github.com/outpostrun/conductor/pkg/models"
)

// maxIterationsMessage is the fixed assistant content returned when a turn
// exhausts its iteration budget without producing a tool-free completion.
const maxIterationsMessage = "Maximum iterations reached without completion."

// Loop drives one agent's conversation: it owns the provider, the tool
// registry, and the session the turn is appended to. A Loop is safe for
// reuse across turns but not for concurrent Run calls against the same
// session.
type Loop struct {
	Provider      Provider
	Registry      *Registry
	Session       *sessions.Session
	Model         string
	System        string
	MaxIterations int

	// Publisher, when set, receives lifecycle notifications as the loop
	// runs. Nil is a valid, fully-functional zero value: publish becomes a
	// no-op.
	Publisher LifecyclePublisher
	ChannelID string
}

// NotifySessionEnd publishes a session_end lifecycle event. The loop has
// no notion of when a conversation is "done" on its own; whatever owns the
// session's lifecycle (a CLI session command, the bot dispatcher tearing
// down an idle channel mapping) calls this explicitly.
func (l *Loop) NotifySessionEnd(ctx context.Context) {
	l.publish(ctx, LifecycleSessionEnd, nil)
}

// publish forwards a lifecycle event to the configured Publisher, if any.
func (l *Loop) publish(ctx context.Context, event LifecycleEvent, data map[string]any) {
	if l.Publisher == nil {
		return
	}
	sessionID := ""
	if l.Session != nil {
		sessionID = l.Session.ID
	}
	l.Publisher.Publish(ctx, event, sessionID, l.ChannelID, data)
}

// NewLoop returns a Loop with the default iteration budget.
func NewLoop(provider Provider, registry *Registry, session *sessions.Session) *Loop {
	return &Loop{
		Provider:      provider,
		Registry:      registry,
		Session:       session,
		MaxIterations: 10,
	}
}

// Run executes a turn starting from userText and, when checkQueue is true,
// chains through any follow-ups queued while it ran. The source this loop
// is modeled on re-enters itself recursively for follow-ups; an explicit
// work list is used here instead so a long chain of follow-ups cannot grow
// the call stack.
func (l *Loop) Run(ctx context.Context, userText string, checkQueue bool) (*Response, error) {
	pending := []string{userText}
	var resp *Response

	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]

		r, err := l.runTurn(ctx, next, checkQueue)
		if err != nil {
			return nil, err
		}
		resp = r

		if checkQueue {
			if q := QueueFromContext(ctx); q != nil && q.HasFollowUp() {
				for _, m := range q.TakeFollowUp() {
					pending = append(pending, m.Content)
				}
			}
		}
	}
	return resp, nil
}

// runTurn executes a single, non-chaining turn: append the user message,
// then iterate provider calls and tool batches until a tool-free completion
// or the iteration budget is exhausted.
func (l *Loop) runTurn(ctx context.Context, userText string, checkQueue bool) (*Response, error) {
	if len(l.Session.CurrentPath()) == 0 {
		l.publish(ctx, LifecycleSessionStart, nil)
	}
	l.publish(ctx, LifecycleMessageReceived, map[string]any{"text": userText})

	if _, err := l.Session.Append(models.RoleUser, userText, "", nil); err != nil {
		logSaveError(ctx, err)
	}

	q := QueueFromContext(ctx)
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	for i := 0; ; i++ {
		if i >= maxIter {
			if _, err := l.Session.Append(models.RoleAssistant, maxIterationsMessage, "", nil); err != nil {
				logSaveError(ctx, err)
			}
			return &Response{Content: maxIterationsMessage, FinishReason: "max_iterations"}, nil
		}

		history := l.historyMessages()
		if fn := ContextTransformFromContext(ctx); fn != nil {
			transformed, err := fn(ctx, history)
			if err != nil {
				return nil, err
			}
			history = transformed
		}

		req := &CompletionRequest{
			Model:    l.Model,
			System:   l.System,
			Messages: history,
			Tools:    l.Registry.ListDescriptors(),
		}
		if l.Registry.Len() == 0 {
			req.Tools = nil
		}

		resp, err := CompleteSync(ctx, l.Provider, req)
		if err != nil {
			return nil, &ProviderError{Provider: l.Provider.Name(), Cause: err}
		}

		if len(resp.ToolCalls) > 0 {
			if err := l.runToolBatch(ctx, resp); err != nil {
				return nil, err
			}
			if checkQueue && q != nil && q.HasSteering() {
				for _, m := range q.TakeSteering() {
					if _, err := l.Session.Append(models.RoleUser, m.Content, "", nil); err != nil {
						logSaveError(ctx, err)
					}
				}
			}
			continue
		}

		if _, err := l.Session.Append(models.RoleAssistant, resp.Content, "", nil); err != nil {
			logSaveError(ctx, err)
		}
		l.publish(ctx, LifecycleResponseGenerated, map[string]any{"content": resp.Content})

		return resp, nil
	}
}

// runToolBatch appends the assistant's tool-call entry, then executes each
// call in emission order, appending a tool entry for every result and
// invoking observer hooks around each invocation. Observer failures are
// isolated: they are never allowed to abort the turn.
func (l *Loop) runToolBatch(ctx context.Context, resp *Response) error {
	calls := make([]map[string]any, len(resp.ToolCalls))
	for i, c := range resp.ToolCalls {
		calls[i] = map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments}
	}
	if _, err := l.Session.Append(models.RoleAssistant, resp.Content, "", map[string]any{"tool_calls": calls}); err != nil {
		logSaveError(ctx, err)
	}

	onStart := onToolStartFromContext(ctx)
	onEnd := onToolEndFromContext(ctx)

	for _, call := range resp.ToolCalls {
		l.invokeObserver(onStart, ctx, call, nil, nil)
		l.publish(ctx, LifecycleToolCallStart, map[string]any{"name": call.Name, "arguments": call.Arguments})

		argsJSON, err := argumentsAsRawJSON(call)
		if err != nil {
			errResult := &models.ToolResult{ToolCallID: call.ID, Name: call.Name, Content: "Error: " + err.Error(), Error: err.Error()}
			l.appendToolResult(ctx, call, errResult)
			l.invokeObserver(onEnd, ctx, call, errResult, err)
			l.publish(ctx, LifecycleToolCallEnd, map[string]any{"name": call.Name, "success": false})
			continue
		}

		result, execErr := l.Registry.Execute(ctx, call.Name, argsJSON)
		result.ToolCallID = call.ID
		l.appendToolResult(ctx, call, result)
		l.invokeObserver(onEnd, ctx, call, result, execErr)
		l.publish(ctx, LifecycleToolCallEnd, map[string]any{"name": call.Name, "success": result.Success})
	}
	return nil
}

func (l *Loop) appendToolResult(ctx context.Context, call models.ToolCall, result *models.ToolResult) {
	meta := map[string]any{"tool_call_id": call.ID, "name": call.Name}
	if _, err := l.Session.Append(models.RoleTool, result.Content, "", meta); err != nil {
		logSaveError(ctx, err)
	}
}

// invokeObserver isolates an observer hook behind a recover so a panicking
// or otherwise misbehaving hook cannot abort the turn.
func (l *Loop) invokeObserver(obs ToolObserver, ctx context.Context, call models.ToolCall, result *models.ToolResult, err error) {
	if obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logObserverPanic(ctx, r)
		}
	}()
	obs(ctx, call, result, err)
}

func argumentsAsRawJSON(call models.ToolCall) (json.RawMessage, error) {
	if call.Arguments == "" {
		return json.RawMessage(`{}`), nil
	}
	var v any
	if err := json.Unmarshal([]byte(call.Arguments), &v); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return json.RawMessage(call.Arguments), nil
}

// historyMessages projects the session's current path into the provider
// message shape.
func (l *Loop) historyMessages() []models.Message {
	path := l.Session.CurrentPath()
	out := make([]models.Message, 0, len(path))
	for _, e := range path {
		msg := models.Message{Role: e.Role, Content: e.Content}
		if e.Metadata != nil {
			if id, ok := e.Metadata["tool_call_id"].(string); ok {
				msg.ToolCallID = id
			}
			if name, ok := e.Metadata["name"].(string); ok {
				msg.Name = name
			}
			if raw, ok := e.Metadata["tool_calls"].([]map[string]any); ok {
				msg.ToolCalls = toolCallsFromMetadata(raw)
			}
		}
		out = append(out, msg)
	}
	return out
}

func toolCallsFromMetadata(raw []map[string]any) []models.ToolCall {
	out := make([]models.ToolCall, 0, len(raw))
	for _, m := range raw {
		tc := models.ToolCall{Type: "function"}
		if v, ok := m["id"].(string); ok {
			tc.ID = v
		}
		if v, ok := m["name"].(string); ok {
			tc.Name = v
		}
		if v, ok := m["arguments"].(string); ok {
			tc.Arguments = v
		}
		out = append(out, tc)
	}
	return out
}

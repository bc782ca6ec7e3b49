package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/pkg/models"
)

// Event is one line of JSON output-mode emission. Every event carries its
// type and an ISO-8601 timestamp; the rest of the fields are populated
// according to Type.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`

	Content  string `json:"content,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	ToolArgs string `json:"tool_args,omitempty"`
	Success  *bool  `json:"success,omitempty"`
	Token    string `json:"token,omitempty"`
	Error    string `json:"error,omitempty"`
}

const (
	EventTypeMessage       = "message"
	EventTypeToolCallStart = "tool_call_start"
	EventTypeToolCallEnd   = "tool_call_end"
	EventTypeToken         = "token"
	EventTypeDone          = "done"
	EventTypeError         = "error"
)

// jsonEmitter writes Events to w as newline-delimited JSON, one per line.
type jsonEmitter struct {
	w io.Writer
}

func newJSONEmitter(w io.Writer) *jsonEmitter {
	return &jsonEmitter{w: w}
}

func (e *jsonEmitter) emit(evt Event) {
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	e.w.Write(append(data, '\n'))
}

func (e *jsonEmitter) message(content string) {
	e.emit(Event{Type: EventTypeMessage, Content: content})
}

func (e *jsonEmitter) toolCallStart(call models.ToolCall) {
	e.emit(Event{Type: EventTypeToolCallStart, ToolName: call.Name, ToolArgs: call.Arguments})
}

func (e *jsonEmitter) toolCallEnd(call models.ToolCall, result *models.ToolResult, callErr error) {
	success := callErr == nil && (result == nil || result.Success)
	errText := ""
	if callErr != nil {
		errText = callErr.Error()
	}
	e.emit(Event{Type: EventTypeToolCallEnd, ToolName: call.Name, Success: &success, Error: errText})
}

func (e *jsonEmitter) token(text string) {
	e.emit(Event{Type: EventTypeToken, Token: text})
}

func (e *jsonEmitter) done(content string) {
	e.emit(Event{Type: EventTypeDone, Content: content})
}

func (e *jsonEmitter) errorEvent(err error) {
	e.emit(Event{Type: EventTypeError, Error: err.Error()})
}

// withObservers wires this emitter into ctx via the agent package's
// tool-observer hooks, so JSON output mode sees tool_call_start /
// tool_call_end events without the loop needing to know about JSON mode
// at all.
func (e *jsonEmitter) withObservers(ctx context.Context) context.Context {
	ctx = agent.WithOnToolStart(ctx, func(_ context.Context, call models.ToolCall, _ *models.ToolResult, _ error) {
		e.toolCallStart(call)
	})
	ctx = agent.WithOnToolEnd(ctx, func(_ context.Context, call models.ToolCall, result *models.ToolResult, err error) {
		e.toolCallEnd(call, result, err)
	})
	return ctx
}

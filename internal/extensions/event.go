package extensions

import (
	"context"

	"github.com/outpostrun/conductor/internal/agent"
)

// EventType is an alias for agent.LifecycleEvent so Surface can satisfy
// agent.LifecyclePublisher without the agent package depending back on
// this one.
type EventType = agent.LifecycleEvent

const (
	EventToolCallStart     = agent.LifecycleToolCallStart
	EventToolCallEnd       = agent.LifecycleToolCallEnd
	EventMessageReceived   = agent.LifecycleMessageReceived
	EventResponseGenerated = agent.LifecycleResponseGenerated
	EventSessionStart      = agent.LifecycleSessionStart
	EventSessionEnd        = agent.LifecycleSessionEnd
)

// Event carries the data passed to a lifecycle handler. Data holds
// event-specific payload (tool name and arguments for tool_call_start,
// the generated text for response_generated, and so on).
type Event struct {
	Type      EventType
	SessionID string
	ChannelID string
	Data      map[string]any
}

// Handler reacts to a lifecycle event. A returned error is logged, never
// propagated to whatever triggered the event.
type Handler func(ctx context.Context, event *Event) error

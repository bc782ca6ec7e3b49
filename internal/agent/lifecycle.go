package agent

import "context"

// LifecycleEvent identifies one of the events the agent loop publishes to
// an optional subscriber. The Extension Surface is the only subscriber in
// this tree, but the Loop depends on the narrow LifecyclePublisher
// interface rather than that package directly, since the surface itself
// depends on the Registry defined here.
type LifecycleEvent string

const (
	LifecycleToolCallStart     LifecycleEvent = "tool_call_start"
	LifecycleToolCallEnd       LifecycleEvent = "tool_call_end"
	LifecycleMessageReceived   LifecycleEvent = "message_received"
	LifecycleResponseGenerated LifecycleEvent = "response_generated"
	LifecycleSessionStart      LifecycleEvent = "session_start"
	LifecycleSessionEnd        LifecycleEvent = "session_end"
)

// LifecyclePublisher receives lifecycle notifications from a Loop. Publish
// must not block or panic; implementations are responsible for isolating
// their own subscriber failures.
type LifecyclePublisher interface {
	Publish(ctx context.Context, event LifecycleEvent, sessionID, channelID string, data map[string]any)
}

package extensions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/commands"
)

// API is what an extension's entry point receives. It is the entirety of
// an extension's reach into the runtime: it can add tools to the registry,
// add slash commands the CLI layer consults before the loop sees input,
// and subscribe to lifecycle events. There is no other way in.
type API interface {
	// Tool registers a tool under the extension's name. Re-registering an
	// existing name replaces it, matching agent.Registry's own semantics.
	Tool(desc agent.ToolDescriptor, fn agent.ToolFunc) error

	// Command registers a slash command. Returns an error if the name or
	// any alias is already taken.
	Command(cmd *commands.Command) error

	// On subscribes handler to event. Multiple extensions may subscribe to
	// the same event; they run in registration order.
	On(event EventType, handler Handler)
}

// EntryPoint is the function an extension module exposes. It receives an
// API scoped to that extension and uses it to register whatever it
// provides; a returned error aborts loading that extension only.
type EntryPoint func(api API) error

// Surface is the runtime's Extension Surface: the registration point for
// user-supplied tools, commands, and lifecycle hooks, plus the dispatch
// machinery that later publishes lifecycle events to whatever extensions
// subscribed to them.
type Surface struct {
	tools    *agent.Registry
	commands *commands.Registry
	hooks    *hookDispatcher
	logger   *slog.Logger

	loaded []LoadedExtension
}

// LoadedExtension records one extension that was loaded successfully, for
// status reporting.
type LoadedExtension struct {
	ID   string
	Path string
}

// NewSurface builds a Surface wired to the given tool and command
// registries. Either may be nil if that registration kind is unsupported
// in the current context (e.g. a CLI invocation with no command layer).
func NewSurface(tools *agent.Registry, cmds *commands.Registry, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		tools:    tools,
		commands: cmds,
		hooks:    newHookDispatcher(logger),
		logger:   logger.With("component", "extensions"),
	}
}

// apiFor returns the API handed to one extension's entry point, scoped so
// hook registrations and log lines can be attributed back to source.
func (s *Surface) apiFor(source string) API {
	return &boundAPI{source: source, surface: s}
}

// Publish dispatches a lifecycle event to every extension subscribed to
// it, satisfying agent.LifecyclePublisher. Handler errors and panics are
// logged and otherwise ignored; Publish itself never fails.
func (s *Surface) Publish(ctx context.Context, eventType EventType, sessionID, channelID string, data map[string]any) {
	s.hooks.trigger(ctx, &Event{Type: eventType, SessionID: sessionID, ChannelID: channelID, Data: data})
}

// HandlerCount reports how many handlers are subscribed to event, mostly
// useful for tests and status output.
func (s *Surface) HandlerCount(event EventType) int {
	return s.hooks.handlerCount(event)
}

// Loaded returns the extensions that were successfully loaded, in load
// order.
func (s *Surface) Loaded() []LoadedExtension {
	out := make([]LoadedExtension, len(s.loaded))
	copy(out, s.loaded)
	return out
}

type boundAPI struct {
	source  string
	surface *Surface
}

func (a *boundAPI) Tool(desc agent.ToolDescriptor, fn agent.ToolFunc) error {
	if a.surface.tools == nil {
		return fmt.Errorf("extension %q: no tool registry configured", a.source)
	}
	if desc.Name == "" {
		return fmt.Errorf("extension %q: tool name is required", a.source)
	}
	a.surface.tools.RegisterFunc(desc, fn)
	a.surface.logger.Debug("extension registered tool", "extension", a.source, "tool", desc.Name)
	return nil
}

func (a *boundAPI) Command(cmd *commands.Command) error {
	if a.surface.commands == nil {
		return fmt.Errorf("extension %q: no command registry configured", a.source)
	}
	if cmd != nil && cmd.Source == "" {
		cmd.Source = a.source
	}
	if err := a.surface.commands.Register(cmd); err != nil {
		return fmt.Errorf("extension %q: %w", a.source, err)
	}
	a.surface.logger.Debug("extension registered command", "extension", a.source, "command", cmd.Name)
	return nil
}

func (a *boundAPI) On(event EventType, handler Handler) {
	if handler == nil {
		return
	}
	a.surface.hooks.on(a.source, event, handler)
	a.surface.logger.Debug("extension subscribed to event", "extension", a.source, "event", event)
}

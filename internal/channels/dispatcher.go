package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/sessions"
	"github.com/outpostrun/conductor/pkg/models"
)

// sessionKey identifies one conversation: a platform paired with the
// channel-specific id an adapter uses to address it (a DM user id, a
// group/channel id, whatever that platform calls "where this came from").
type sessionKey struct {
	platform  models.ChannelType
	channelID string
}

// LoopFactory builds the agent.Loop that drives a freshly created session.
// The dispatcher owns session lifetime, not loop construction: callers wire
// in whichever provider, tool registry, and extension publisher the running
// process is configured with.
type LoopFactory func(session *sessions.Session) *agent.Loop

// Dispatcher is the runtime's Bot Dispatcher: it holds one session per
// (platform, channel) pair, created lazily on that pair's first message,
// and drives every inbound message on every registered adapter through the
// same agent loop that backs the CLI.
type Dispatcher struct {
	registry  *Registry
	newLoop   LoopFactory
	workspace string
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*sessions.Session
}

// NewDispatcher builds a Dispatcher over registry's adapters. workspace is
// the root new sessions are rooted at; newLoop is called once per session
// the first time that (platform, channel) pair is seen.
func NewDispatcher(registry *Registry, workspace string, newLoop LoopFactory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  registry,
		newLoop:   newLoop,
		workspace: workspace,
		logger:    logger.With("component", "dispatcher"),
		sessions:  make(map[sessionKey]*sessions.Session),
	}
}

// Run fans in every registered adapter's inbound stream via the channel
// registry's own aggregator and dispatches each message as it arrives. It
// blocks until ctx is canceled or every adapter's message channel closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for msg := range d.registry.AggregateMessages(ctx) {
		d.Handle(ctx, msg.Channel, msg)
	}
	return ctx.Err()
}

// Handle resolves or creates the session for (platform, msg.ChannelID),
// appends the incoming message, runs the agent loop, and sends the
// response back through the platform's outbound adapter. Any failure along
// the way is converted to a DispatcherError, logged, and — on a
// best-effort basis — reported to the originating channel; it is never
// returned to the caller, since a misbehaving conversation must not take
// down the adapters driving every other one.
func (d *Dispatcher) Handle(ctx context.Context, platform models.ChannelType, msg *models.Message) {
	if err := d.handle(ctx, platform, msg); err != nil {
		dispatchErr := &agent.DispatcherError{Platform: string(platform), Cause: err}
		d.logger.Error("dispatch failed", "platform", platform, "channel_id", msg.ChannelID, "error", dispatchErr)
		d.notifyBestEffort(ctx, platform, msg.ChannelID, dispatchErr)
	}
}

func (d *Dispatcher) handle(ctx context.Context, platform models.ChannelType, msg *models.Message) error {
	session := d.sessionFor(platform, msg.ChannelID)
	loop := d.newLoop(session)
	loop.ChannelID = msg.ChannelID

	resp, err := loop.Run(ctx, msg.Content, true)
	if err != nil {
		return fmt.Errorf("agent loop: %w", err)
	}

	outbound, ok := d.registry.GetOutbound(platform)
	if !ok {
		return fmt.Errorf("no outbound adapter registered for %s", platform)
	}
	reply := &models.Message{
		Channel:   platform,
		ChannelID: msg.ChannelID,
		Role:      models.RoleAssistant,
		Content:   resp.Content,
		Direction: models.DirectionOutbound,
	}
	if err := outbound.Send(ctx, reply); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// notifyBestEffort tries once to tell the channel its message could not be
// answered. Failure here is logged, not retried: the dispatcher has
// already done everything it owes the caller.
func (d *Dispatcher) notifyBestEffort(ctx context.Context, platform models.ChannelType, channelID string, cause error) {
	outbound, ok := d.registry.GetOutbound(platform)
	if !ok {
		return
	}
	notice := &models.Message{
		Channel:   platform,
		ChannelID: channelID,
		Role:      models.RoleAssistant,
		Content:   "Sorry, something went wrong handling that message.",
		Direction: models.DirectionOutbound,
	}
	if err := outbound.Send(ctx, notice); err != nil {
		d.logger.Error("failed to notify channel of dispatch error", "platform", platform, "channel_id", channelID, "original_error", cause, "notify_error", err)
	}
}

func (d *Dispatcher) sessionFor(platform models.ChannelType, channelID string) *sessions.Session {
	key := sessionKey{platform: platform, channelID: channelID}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[key]; ok {
		return s
	}
	name := fmt.Sprintf("%s-%s", platform, channelID)
	s := sessions.New(name, d.workspace, true)
	d.sessions[key] = s
	return s
}

// SessionCount reports how many (platform, channel) sessions are currently
// held, mostly useful for status reporting.
func (d *Dispatcher) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

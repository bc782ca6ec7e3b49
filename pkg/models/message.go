// Package models defines the wire-level data types shared across the agent
// runtime: completion messages, tool calls and results, session tree
// entries, and the platform-neutral message shape consumed by chat
// adapters.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the author of a completion message or session entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single turn in a provider-facing conversation. Insertion
// order is significant; messages are never reordered once appended.
//
// The same type doubles as the wire shape chat adapters exchange with the
// channel registry: ID, SessionID, Channel, ChannelID, Direction, and
// CreatedAt are populated by adapters and ignored by the provider
// abstraction, which only looks at Role/Content/ToolCalls/Metadata.
type Message struct {
	ID        string      `json:"id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Channel   ChannelType `json:"channel,omitempty"`
	ChannelID string      `json:"channel_id,omitempty"`
	Direction Direction   `json:"direction,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`

	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"` // set on tool-role messages
	Name       string         `json:"name,omitempty"`         // tool name, set on tool-role messages
	Attachments []Attachment  `json:"attachments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChannelType identifies which chat platform a Message or Adapter belongs
// to. Values mirror channels.ChatChannelID so the channel registry and the
// wire message type agree on vocabulary without importing each other.
type ChannelType string

const (
	ChannelTelegram      ChannelType = "telegram"
	ChannelWhatsApp      ChannelType = "whatsapp"
	ChannelDiscord       ChannelType = "discord"
	ChannelGoogleChat    ChannelType = "googlechat"
	ChannelSlack         ChannelType = "slack"
	ChannelSignal        ChannelType = "signal"
	ChannelIMessage      ChannelType = "imessage"
	ChannelMatrix        ChannelType = "matrix"
	ChannelWeb           ChannelType = "web"
	ChannelAPI           ChannelType = "api"
	ChannelCLI           ChannelType = "cli"
	ChannelTeams         ChannelType = "teams"
	ChannelEmail         ChannelType = "email"
	ChannelMattermost    ChannelType = "mattermost"
	ChannelNextcloudTalk ChannelType = "nextcloud-talk"
	ChannelNostr         ChannelType = "nostr"
	ChannelZalo          ChannelType = "zalo"
	ChannelBlueBubbles   ChannelType = "bluebubbles"
)

// Direction records whether a Message arrived from a platform or is being
// sent out to one.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ToolCall is a model-emitted request to invoke a registered tool, in the
// uniform shape every provider normalizes to:
// {id, type:"function", function:{name, arguments:JSON-string}}.
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object text
}

// ParsedArguments decodes the tool call's argument string into a generic
// map, defaulting to an empty object when the string is empty.
func (c ToolCall) ParsedArguments() (map[string]any, error) {
	if c.Arguments == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToolResult is the outcome of executing one ToolCall. Errors are surfaced
// as text content, never as a distinct transport-level failure, so the
// model can see and recover from them.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Error      string `json:"error,omitempty"`
	Success    bool   `json:"success"`
}

// Usage is the normalized token accounting every provider response carries,
// zeroed when the back-end does not report it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SessionEntry is one node in a Session's conversation tree. Entries are
// never mutated after insertion; branching is expressed purely through a
// differing ParentID, never by editing an existing entry.
type SessionEntry struct {
	ID        string         `json:"id"`
	ParentID  *string        `json:"parent_id"`
	Timestamp time.Time      `json:"timestamp"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the entry so stores can hand out entries
// without letting callers mutate internal state.
func (e *SessionEntry) Clone() *SessionEntry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.ParentID != nil {
		id := *e.ParentID
		cp.ParentID = &id
	}
	if e.Metadata != nil {
		cp.Metadata = cloneMap(e.Metadata)
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// QueueClass distinguishes preemptive steering input from deferred
// follow-up input in the Message Queue.
type QueueClass string

const (
	ClassSteering QueueClass = "steering"
	ClassFollowUp QueueClass = "followup"
)

// QueuedMessage is one entry held by the Message Queue component.
type QueuedMessage struct {
	Content    string     `json:"content"`
	Class      QueueClass `json:"class"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// Attachment is a file or media reference carried on a UniversalMessage.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// UniversalMessage is the platform-neutral shape every chat adapter MUST
// produce on input and accept on output.
type UniversalMessage struct {
	ID          string       `json:"id"`
	Platform    string       `json:"platform"`
	ChannelID   string       `json:"channel_id"`
	ThreadID    string       `json:"thread_id,omitempty"`
	UserID      string       `json:"user_id"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	IsMention   bool         `json:"is_mention"`
	IsDM        bool         `json:"is_dm"`
	IsThread    bool         `json:"is_thread"`
	Raw         any          `json:"-"`
}

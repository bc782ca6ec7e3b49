package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/pkg/models"
)

// CohereConfig configures the Cohere provider.
type CohereConfig struct {
	// APIKey is the Cohere API authentication key (required).
	APIKey string

	// DefaultModel is used when a request doesn't specify one.
	// Default: command-r-plus
	DefaultModel string

	// BaseURL overrides the default Cohere API base URL.
	BaseURL string

	// Timeout bounds each request (default: 2 minutes).
	Timeout time.Duration
}

// CohereProvider implements the agent.Provider interface for Cohere's
// Command model family via its v1 chat endpoint.
type CohereProvider struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	defaultModel string
}

var _ agent.Provider = (*CohereProvider)(nil)

// NewCohereProvider creates a new Cohere provider.
func NewCohereProvider(cfg CohereConfig) (*CohereProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cohere: API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	defaultModel := strings.TrimSpace(cfg.DefaultModel)
	if defaultModel == "" {
		defaultModel = "command-r-plus"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CohereProvider{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}, nil
}

// Name returns the provider name.
func (p *CohereProvider) Name() string {
	return "cohere"
}

// Models returns the default configured model.
func (p *CohereProvider) Models() []agent.Model {
	return []agent.Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

// SupportsTools returns false: the v1 chat endpoint's tool-use contract
// diverges enough from the shared ToolDescriptor schema that it isn't
// wired here.
func (p *CohereProvider) SupportsTools() bool {
	return false
}

// Complete sends a streaming chat request to Cohere.
func (p *CohereProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	preamble, message, history := convertCohereMessages(req)
	if message == "" {
		return nil, NewProviderError("cohere", model, errors.New("no user message to send"))
	}

	payload := cohereChatRequest{
		Model:       model,
		Message:     message,
		Preamble:    preamble,
		ChatHistory: history,
		Stream:      true,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("cohere", model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("cohere", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("cohere", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("cohere", model, fmt.Errorf("cohere status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.streamResponse(ctx, resp.Body, chunks, model)
	return chunks, nil
}

func (p *CohereProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan *agent.CompletionChunk, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 1024*64)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event cohereStreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			out <- &agent.CompletionChunk{Error: NewProviderError("cohere", model, fmt.Errorf("decode event: %w", err)), Done: true}
			return
		}

		switch event.EventType {
		case "text-generation":
			if event.Text != "" {
				out <- &agent.CompletionChunk{Text: event.Text}
			}
		case "stream-end":
			usage := &models.Usage{}
			if event.Response != nil && event.Response.Meta != nil {
				usage.PromptTokens = event.Response.Meta.Tokens.InputTokens
				usage.CompletionTokens = event.Response.Meta.Tokens.OutputTokens
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
			out <- &agent.CompletionChunk{Done: true, Usage: usage}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- &agent.CompletionChunk{Error: NewProviderError("cohere", model, err), Done: true}
		return
	}
}

type cohereChatRequest struct {
	Model       string              `json:"model"`
	Message     string              `json:"message"`
	Preamble    string              `json:"preamble,omitempty"`
	ChatHistory []cohereHistoryTurn `json:"chat_history,omitempty"`
	Stream      bool                `json:"stream"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type cohereHistoryTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereStreamEvent struct {
	EventType string          `json:"event_type"`
	Text      string          `json:"text"`
	Response  *cohereResponse `json:"response,omitempty"`
}

type cohereResponse struct {
	Meta *cohereMeta `json:"meta,omitempty"`
}

type cohereMeta struct {
	Tokens cohereTokens `json:"tokens"`
}

type cohereTokens struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// convertCohereMessages splits the message history into a preamble
// (system prompt), the final user message, and a USER/CHATBOT chat
// history for everything before it.
func convertCohereMessages(req *agent.CompletionRequest) (preamble string, message string, history []cohereHistoryTurn) {
	if system := strings.TrimSpace(req.System); system != "" {
		preamble = system
	}

	lastUserIdx := -1
	for i, msg := range req.Messages {
		if msg.Role == models.RoleUser {
			lastUserIdx = i
		}
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			if preamble == "" {
				preamble = msg.Content
			}
		case models.RoleUser:
			if i == lastUserIdx {
				message = msg.Content
			} else {
				history = append(history, cohereHistoryTurn{Role: "USER", Message: msg.Content})
			}
		case models.RoleAssistant:
			history = append(history, cohereHistoryTurn{Role: "CHATBOT", Message: msg.Content})
		case models.RoleTool:
			// Tool results fold into the chatbot turn preceding them since
			// the v1 chat endpoint has no distinct tool-result role.
			history = append(history, cohereHistoryTurn{Role: "CHATBOT", Message: msg.Content})
		}
	}
	return preamble, message, history
}

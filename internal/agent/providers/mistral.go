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

// MistralConfig configures the Mistral AI provider.
type MistralConfig struct {
	// APIKey is the Mistral API authentication key (required).
	APIKey string

	// DefaultModel is used when a request doesn't specify one.
	// Default: mistral-large-latest
	DefaultModel string

	// BaseURL overrides the default Mistral API base URL.
	BaseURL string

	// Timeout bounds each request (default: 2 minutes).
	Timeout time.Duration
}

// MistralProvider implements the agent.Provider interface for Mistral AI's
// chat completions endpoint, which streams OpenAI-shaped SSE events.
type MistralProvider struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	defaultModel string
}

var _ agent.Provider = (*MistralProvider)(nil)

// NewMistralProvider creates a new Mistral provider.
func NewMistralProvider(cfg MistralConfig) (*MistralProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mistral: API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.mistral.ai"
	}
	defaultModel := strings.TrimSpace(cfg.DefaultModel)
	if defaultModel == "" {
		defaultModel = "mistral-large-latest"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &MistralProvider{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}, nil
}

// Name returns the provider name.
func (p *MistralProvider) Name() string {
	return "mistral"
}

// Models returns the default configured model.
func (p *MistralProvider) Models() []agent.Model {
	return []agent.Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

// SupportsTools returns false: tool calling isn't wired for this provider.
func (p *MistralProvider) SupportsTools() bool {
	return false
}

// Complete sends a streaming chat request to Mistral.
func (p *MistralProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	payload := mistralChatRequest{
		Model:       model,
		Messages:    convertMistralMessages(req),
		Stream:      true,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("mistral", model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("mistral", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("mistral", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("mistral", model, fmt.Errorf("mistral status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.streamResponse(ctx, resp.Body, chunks, model)
	return chunks, nil
}

func (p *MistralProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan *agent.CompletionChunk, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 1024*64)
	scanner.Buffer(buf, 1024*1024)

	var usage *models.Usage
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			out <- &agent.CompletionChunk{Done: true, Usage: usage}
			return
		}

		var chunk mistralStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			out <- &agent.CompletionChunk{Error: NewProviderError("mistral", model, fmt.Errorf("decode chunk: %w", err)), Done: true}
			return
		}
		if chunk.Usage != nil {
			usage = &models.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			out <- &agent.CompletionChunk{Text: delta.Content}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- &agent.CompletionChunk{Error: NewProviderError("mistral", model, err), Done: true}
		return
	}
	out <- &agent.CompletionChunk{Done: true, Usage: usage}
}

type mistralChatRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralStreamChunk struct {
	Choices []mistralStreamChoice `json:"choices"`
	Usage   *mistralUsage         `json:"usage,omitempty"`
}

type mistralStreamChoice struct {
	Delta mistralDelta `json:"delta"`
}

type mistralDelta struct {
	Content string `json:"content"`
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// convertMistralMessages flattens a tool-result message into a plain user
// turn, since the chat-completions contract exercised here carries no
// distinct tool role.
func convertMistralMessages(req *agent.CompletionRequest) []mistralMessage {
	out := make([]mistralMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		out = append(out, mistralMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		role := string(msg.Role)
		if msg.Role == models.RoleTool {
			role = "user"
		}
		out = append(out, mistralMessage{Role: role, Content: msg.Content})
	}
	return out
}

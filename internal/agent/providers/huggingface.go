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

// HuggingFaceConfig configures the Hugging Face Text Generation Inference provider.
type HuggingFaceConfig struct {
	// APIKey is the Hugging Face access token (required for hosted inference
	// endpoints; optional for a self-hosted TGI server with no auth).
	APIKey string

	// DefaultModel names the model repo id used when a request doesn't
	// specify one (only meaningful against the hosted router; a
	// single-model TGI server ignores it).
	DefaultModel string

	// BaseURL is the TGI server's base URL (required).
	// Example: "https://api-inference.huggingface.co/models/meta-llama/Llama-3.1-8B-Instruct"
	BaseURL string

	// Timeout bounds each request (default: 2 minutes).
	Timeout time.Duration
}

// HuggingFaceProvider implements the agent.Provider interface against a
// Text Generation Inference server's native /generate_stream endpoint.
type HuggingFaceProvider struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	defaultModel string
}

var _ agent.Provider = (*HuggingFaceProvider)(nil)

// NewHuggingFaceProvider creates a new Hugging Face TGI provider.
func NewHuggingFaceProvider(cfg HuggingFaceConfig) (*HuggingFaceProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("huggingface: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HuggingFaceProvider{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}, nil
}

// Name returns the provider name.
func (p *HuggingFaceProvider) Name() string {
	return "huggingface"
}

// Models returns the configured default model, if any.
func (p *HuggingFaceProvider) Models() []agent.Model {
	if p.defaultModel == "" {
		return nil
	}
	return []agent.Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

// SupportsTools returns false: TGI's raw-text generation contract has no
// structured tool-call surface.
func (p *HuggingFaceProvider) SupportsTools() bool {
	return false
}

// Complete sends a streaming generation request to the TGI server.
func (p *HuggingFaceProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	prompt := renderHuggingFacePrompt(req)
	payload := tgiGenerateRequest{
		Inputs: prompt,
		Parameters: tgiParameters{
			Temperature:  req.Temperature,
			MaxNewTokens: req.MaxTokens,
		},
		Stream: true,
	}
	if payload.Parameters.MaxNewTokens <= 0 {
		payload.Parameters.MaxNewTokens = 1024
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("huggingface", model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate_stream", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("huggingface", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("huggingface", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("huggingface", model, fmt.Errorf("huggingface status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.streamResponse(ctx, resp.Body, chunks, model)
	return chunks, nil
}

func (p *HuggingFaceProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan *agent.CompletionChunk, model string) {
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
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event tgiStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			out <- &agent.CompletionChunk{Error: NewProviderError("huggingface", model, fmt.Errorf("decode event: %w", err)), Done: true}
			return
		}
		if event.Token.Text != "" && !event.Token.Special {
			out <- &agent.CompletionChunk{Text: event.Token.Text}
		}
		if event.GeneratedText != nil {
			out <- &agent.CompletionChunk{Done: true}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- &agent.CompletionChunk{Error: NewProviderError("huggingface", model, err), Done: true}
		return
	}
	out <- &agent.CompletionChunk{Done: true}
}

type tgiGenerateRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
	Stream     bool          `json:"stream"`
}

type tgiParameters struct {
	Temperature  float64 `json:"temperature,omitempty"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
}

type tgiStreamEvent struct {
	Token         tgiToken `json:"token"`
	GeneratedText *string  `json:"generated_text"`
}

type tgiToken struct {
	Text    string `json:"text"`
	Special bool   `json:"special"`
}

// renderHuggingFacePrompt flattens the message history into a single plain
// text prompt, since raw text generation has no structured chat turns.
func renderHuggingFacePrompt(req *agent.CompletionRequest) string {
	var b strings.Builder
	if system := strings.TrimSpace(req.System); system != "" {
		b.WriteString("System: ")
		b.WriteString(system)
		b.WriteString("\n")
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleUser:
			b.WriteString("User: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		case models.RoleTool:
			b.WriteString("Tool result: ")
		default:
			b.WriteString(string(msg.Role) + ": ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant: ")
	return b.String()
}

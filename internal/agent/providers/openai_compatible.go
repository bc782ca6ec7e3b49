package providers

import (
	"context"
	"errors"
	"io"

	"github.com/outpostrun/conductor/internal/agent"
	"github.com/outpostrun/conductor/internal/agent/toolconv"
	"github.com/outpostrun/conductor/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// openAICompatibleProvider backs every provider whose wire format is an
// unmodified OpenAI chat-completions API behind a different base URL and
// API key — DeepSeek, Perplexity, and xAI all qualify, so rather than
// triplicate convertMessages/convertTools/processStream (as copilot_proxy.go
// and openrouter.go do for providers with their own quirks), they share
// this one implementation.
type openAICompatibleProvider struct {
	name          string
	client        *openai.Client
	defaultModel  string
	supportsTools bool
}

func newOpenAICompatibleProvider(name, apiKey, baseURL, defaultModel string, supportsTools bool) (*openAICompatibleProvider, error) {
	if apiKey == "" {
		return nil, errors.New(name + ": API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAICompatibleProvider{
		name:          name,
		client:        openai.NewClientWithConfig(cfg),
		defaultModel:  defaultModel,
		supportsTools: supportsTools,
	}, nil
}

func (p *openAICompatibleProvider) Name() string { return p.name }

func (p *openAICompatibleProvider) Models() []agent.Model {
	if p.defaultModel == "" {
		return nil
	}
	return []agent.Model{{ID: p.defaultModel, Name: p.defaultModel}}
}

func (p *openAICompatibleProvider) SupportsTools() bool { return p.supportsTools }

func (p *openAICompatibleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		return nil, NewProviderError(p.name, "", errors.New("model is required"))
	}

	messages, err := p.convertMessages(req.Messages, req.System)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if p.supportsTools && len(req.Tools) > 0 {
		chatReq.Tools = toolconv.ToOpenAITools(req.Tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError(p.name, model, err)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *openAICompatibleProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				for _, tc := range toolCalls {
					if tc.ID != "" && tc.Name != "" {
						chunks <- &agent.CompletionChunk{ToolCall: tc}
					}
				}
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
			chunks <- &agent.CompletionChunk{Error: NewProviderError(p.name, model, err), Done: true}
			return
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		if delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: delta.Content}
		}

		if len(delta.ToolCalls) > 0 {
			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				if toolCalls[index] == nil {
					toolCalls[index] = &models.ToolCall{}
				}
				if tc.ID != "" {
					toolCalls[index].ID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCalls[index].Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					toolCalls[index].Arguments += tc.Function.Arguments
				}
				if toolCalls[index].Type == "" && toolCalls[index].Name != "" {
					toolCalls[index].Type = "function"
				}
			}
		}

		if response.Choices[0].FinishReason == "tool_calls" {
			for _, tc := range toolCalls {
				if tc.ID != "" && tc.Name != "" {
					chunks <- &agent.CompletionChunk{ToolCall: tc}
				}
			}
			toolCalls = make(map[int]*models.ToolCall)
		}
	}
}

func (p *openAICompatibleProvider) convertMessages(messages []models.Message, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{Role: string(msg.Role)}

		switch msg.Role {
		case models.RoleUser, models.RoleSystem:
			oaiMsg.Content = msg.Content

		case models.RoleAssistant:
			oaiMsg.Content = msg.Content
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					}
				}
			}

		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
			continue
		}

		result = append(result, oaiMsg)
	}

	return result, nil
}

// DeepSeekConfig configures the DeepSeek provider.
type DeepSeekConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
}

// NewDeepSeekProvider creates a provider for DeepSeek's OpenAI-compatible API.
func NewDeepSeekProvider(cfg DeepSeekConfig) (agent.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return newOpenAICompatibleProvider("deepseek", cfg.APIKey, baseURL, defaultModel, true)
}

// PerplexityConfig configures the Perplexity provider.
type PerplexityConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
}

// NewPerplexityProvider creates a provider for Perplexity's OpenAI-compatible API.
func NewPerplexityProvider(cfg PerplexityConfig) (agent.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "sonar"
	}
	// Perplexity's sonar models don't support function calling.
	return newOpenAICompatibleProvider("perplexity", cfg.APIKey, baseURL, defaultModel, false)
}

// XAIConfig configures the xAI (Grok) provider.
type XAIConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
}

// NewXAIProvider creates a provider for xAI's OpenAI-compatible API.
func NewXAIProvider(cfg XAIConfig) (agent.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "grok-4"
	}
	return newOpenAICompatibleProvider("xai", cfg.APIKey, baseURL, defaultModel, true)
}
